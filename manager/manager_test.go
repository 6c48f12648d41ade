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

package manager

import (
	"sync"
	"sync/atomic"
	"testing"

	pipeline "github.com/dxvk-go/pipelinecore"
)

type fakeDevice struct {
	created atomic.Int32
	nextH   atomic.Uint64
}

func (d *fakeDevice) CreateGraphicsPipelines(info pipeline.GraphicsPipelineCreateInfo) (pipeline.PipelineHandle, error) {
	d.created.Add(1)
	return pipeline.PipelineHandle(d.nextH.Add(1)), nil
}
func (d *fakeDevice) DestroyPipeline(h pipeline.PipelineHandle) {}
func (d *fakeDevice) Features() pipeline.DeviceFeatures         { return pipeline.DeviceFeatures{} }
func (d *fakeDevice) FormatProperties(f pipeline.Format) pipeline.FormatFeatureFlags {
	return 0
}
func (d *fakeDevice) DepthStencilFormatProperties(f pipeline.DepthStencilFormat) pipeline.FormatFeatureFlags {
	return 0
}
func (d *fakeDevice) ColorComponentMask(f pipeline.Format) pipeline.ColorComponentFlags {
	return pipeline.ColorComponentRGBA
}
func (d *fakeDevice) Extensions() []string { return nil }

type inlinePool struct{}

func (inlinePool) Submit(job func()) { job() }

func TestCreateVertexInputLibraryDeduplicates(t *testing.T) {
	dev := &fakeDevice{}
	m := New(dev, inlinePool{})

	sv := pipeline.VertexInput{Topology: pipeline.TopologyTriangleList}

	lib1, err := m.CreateVertexInputLibrary(sv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lib2, err := m.CreateVertexInputLibrary(sv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if lib1 != lib2 {
		t.Fatalf("expected the same library instance for an equal sub-vector")
	}
	if dev.created.Load() != 1 {
		t.Fatalf("expected exactly one GPU creation, got %d", dev.created.Load())
	}
}

func TestCreateVertexInputLibraryConcurrentDeduplicates(t *testing.T) {
	dev := &fakeDevice{}
	m := New(dev, inlinePool{})
	sv := pipeline.VertexInput{Topology: pipeline.TopologyLineList}

	var wg sync.WaitGroup
	libs := make([]*pipeline.VertexInputLibrary, 32)
	for i := range libs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lib, err := m.CreateVertexInputLibrary(sv)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			libs[i] = lib
		}(i)
	}
	wg.Wait()

	for _, lib := range libs[1:] {
		if lib != libs[0] {
			t.Fatalf("concurrent calls with an equal sub-vector produced distinct libraries")
		}
	}
	if dev.created.Load() != 1 {
		t.Fatalf("expected exactly one GPU creation under concurrency, got %d", dev.created.Load())
	}
}

func TestCreateFragmentOutputLibraryDistinguishesStates(t *testing.T) {
	dev := &fakeDevice{}
	m := New(dev, inlinePool{})

	a, err := m.CreateFragmentOutputLibrary(pipeline.FragmentOutput{SampleCount: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := m.CreateFragmentOutputLibrary(pipeline.FragmentOutput{SampleCount: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a == b {
		t.Fatalf("expected distinct libraries for distinct sub-vectors")
	}
	if dev.created.Load() != 2 {
		t.Fatalf("expected two GPU creations, got %d", dev.created.Load())
	}
}
