/*
Copyright 2025 The goARRG Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package manager provides a reference implementation of pipeline.Manager:
// it deduplicates VertexInputLibrary and FragmentOutputLibrary creation by
// sub-vector equality (Section 4.2), coalescing concurrent requests for the
// same sub-vector into a single GPU-side creation call.
package manager

import (
	"strconv"
	"sync"

	pipeline "github.com/dxvk-go/pipelinecore"
	"golang.org/x/sync/singleflight"
)

// Manager is the reference pipeline.Manager: two append-only library
// tables, each guarded by a mutex for the rescan and a singleflight.Group
// so concurrent lookups that miss the rescan collapse into one creation.
type Manager struct {
	dev  pipeline.Device
	pool pipeline.WorkerPool

	viMtx   sync.Mutex
	viLibs  []*pipeline.VertexInputLibrary
	viGroup singleflight.Group

	foMtx   sync.Mutex
	foLibs  []*pipeline.FragmentOutputLibrary
	foGroup singleflight.Group
}

// New builds a Manager backed by dev for library creation and pool for the
// background compile jobs pipeline.GraphicsPipeline submits.
func New(dev pipeline.Device, pool pipeline.WorkerPool) *Manager {
	return &Manager{dev: dev, pool: pool}
}

func (m *Manager) WorkerPool() pipeline.WorkerPool { return m.pool }

func (m *Manager) findVertexInput(sv *pipeline.VertexInput) *pipeline.VertexInputLibrary {
	for _, lib := range m.viLibs {
		state := lib.State()
		if state.Equal(sv) {
			return lib
		}
	}
	return nil
}

// CreateVertexInputLibrary implements pipeline.Manager.
func (m *Manager) CreateVertexInputLibrary(sv pipeline.VertexInput) (*pipeline.VertexInputLibrary, error) {
	m.viMtx.Lock()
	if lib := m.findVertexInput(&sv); lib != nil {
		m.viMtx.Unlock()
		return lib, nil
	}
	m.viMtx.Unlock()

	key := strconv.FormatUint(sv.Hash(), 16)
	v, err, _ := m.viGroup.Do(key, func() (any, error) {
		m.viMtx.Lock()
		defer m.viMtx.Unlock()

		if lib := m.findVertexInput(&sv); lib != nil {
			return lib, nil
		}

		lib, err := pipeline.NewVertexInputLibrary(m.dev, sv)
		if err != nil {
			return nil, err
		}
		m.viLibs = append(m.viLibs, lib)
		return lib, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*pipeline.VertexInputLibrary), nil
}

func (m *Manager) findFragmentOutput(sv *pipeline.FragmentOutput) *pipeline.FragmentOutputLibrary {
	for _, lib := range m.foLibs {
		state := lib.State()
		if state.Equal(sv) {
			return lib
		}
	}
	return nil
}

// CreateFragmentOutputLibrary implements pipeline.Manager.
func (m *Manager) CreateFragmentOutputLibrary(sv pipeline.FragmentOutput) (*pipeline.FragmentOutputLibrary, error) {
	m.foMtx.Lock()
	if lib := m.findFragmentOutput(&sv); lib != nil {
		m.foMtx.Unlock()
		return lib, nil
	}
	m.foMtx.Unlock()

	key := strconv.FormatUint(sv.Hash(), 16)
	v, err, _ := m.foGroup.Do(key, func() (any, error) {
		m.foMtx.Lock()
		defer m.foMtx.Unlock()

		if lib := m.findFragmentOutput(&sv); lib != nil {
			return lib, nil
		}

		lib, err := pipeline.NewFragmentOutputLibrary(m.dev, sv)
		if err != nil {
			return nil, err
		}
		m.foLibs = append(m.foLibs, lib)
		return lib, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*pipeline.FragmentOutputLibrary), nil
}

// Drop destroys every library the manager has created. Callers must ensure
// no GraphicsPipeline still references these handles.
func (m *Manager) Drop() {
	m.viMtx.Lock()
	for _, lib := range m.viLibs {
		lib.Drop()
	}
	m.viLibs = nil
	m.viMtx.Unlock()

	m.foMtx.Lock()
	for _, lib := range m.foLibs {
		lib.Drop()
	}
	m.foLibs = nil
	m.foMtx.Unlock()
}
