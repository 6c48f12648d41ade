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

package pipeline

import "sync"
import "sync/atomic"

// Instance is {state, baseHandle, fastHandle, isCompiling} from Section 3.
// Handles are published with atomic stores/loads (Go's atomic package is
// sequentially consistent, which is a strictly stronger guarantee than the
// release/acquire pair Section 5 asks for) so a reader observing a
// non-null fastHandle always sees a fully-initialized pipeline.
type Instance struct {
	state       StateVector
	fastHandle  atomic.Uint64
	baseHandle  atomic.Uint64
	isCompiling atomic.Bool
}

func (i *Instance) State() StateVector { return i.state }

func (i *Instance) FastHandle() PipelineHandle { return PipelineHandle(i.fastHandle.Load()) }
func (i *Instance) BaseHandle() PipelineHandle { return PipelineHandle(i.baseHandle.Load()) }

// publishFast is called at most twice in an instance's life: once,
// optionally, at creation, and once from a background compile. The
// invariant "fastHandle, once published non-null, is never cleared" is
// upheld by every call site, not by this method.
func (i *Instance) publishFast(h PipelineHandle) { i.fastHandle.Store(uint64(h)) }
func (i *Instance) publishBase(h PipelineHandle) { i.baseHandle.Store(uint64(h)) }

// beginCompiling transitions isCompiling false->true exactly once; callers
// that lose the race must abort without recompiling.
func (i *Instance) beginCompiling() bool { return i.isCompiling.CompareAndSwap(false, true) }

// instanceStore is the append-only, lock-light "instances" container from
// Section 4.3. Reads snapshot an immutable slice through an atomic
// pointer so lookup never blocks on the append mutex; appends build a new
// slice under the mutex and publish it in one atomic store, grounded on
// the optimistic-read/locked-create idiom in the teacher's
// graphicsPipelineCache.createOrRetrievePipeline (graphics.go).
type instanceStore struct {
	mtx      sync.Mutex
	snapshot atomic.Pointer[[]*Instance]
}

func newInstanceStore() *instanceStore {
	s := &instanceStore{}
	empty := []*Instance{}
	s.snapshot.Store(&empty)
	return s
}

func (s *instanceStore) find(state *StateVector) *Instance {
	for _, inst := range *s.snapshot.Load() {
		if inst.state.Equal(state) {
			return inst
		}
	}
	return nil
}

// getOrCreate implements steps 1, 3 and 4 of getHandle/compile: lock-free
// pre-scan, then a locked rescan-then-create. create is only invoked while
// holding the mutex and only if the rescan still misses.
func (s *instanceStore) getOrCreate(state *StateVector, create func() *Instance) (inst *Instance, created bool) {
	if found := s.find(state); found != nil {
		return found, false
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if found := s.find(state); found != nil {
		return found, false
	}

	inst = create()
	old := *s.snapshot.Load()
	next := make([]*Instance, len(old)+1)
	copy(next, old)
	next[len(old)] = inst
	s.snapshot.Store(&next)
	return inst, true
}

func (s *instanceStore) all() []*Instance {
	return *s.snapshot.Load()
}

// BaseInstanceKey identifies a linked base pipeline by its two library
// handles plus the shader-pipeline-library args that vary the link
// (currently only depthClipEnable, Section 4.6).
type BaseInstanceKey struct {
	VILibraryHandle PipelineHandle
	FOLibraryHandle PipelineHandle
	DepthClipEnable bool
}

// BaseInstance's handle is written once at construction and read
// unsynchronized thereafter (Section 3); visibility across goroutines
// comes from the store's snapshot publication, not from an atomic field
// on BaseInstance itself.
type BaseInstance struct {
	Key    BaseInstanceKey
	Handle PipelineHandle
}

type baseInstanceStore struct {
	mtx      sync.Mutex
	snapshot atomic.Pointer[[]*BaseInstance]
}

func newBaseInstanceStore() *baseInstanceStore {
	s := &baseInstanceStore{}
	empty := []*BaseInstance{}
	s.snapshot.Store(&empty)
	return s
}

func (s *baseInstanceStore) find(key BaseInstanceKey) *BaseInstance {
	for _, b := range *s.snapshot.Load() {
		if b.Key == key {
			return b
		}
	}
	return nil
}

func (s *baseInstanceStore) getOrCreate(key BaseInstanceKey, create func() (PipelineHandle, error)) (*BaseInstance, error) {
	if found := s.find(key); found != nil {
		return found, nil
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if found := s.find(key); found != nil {
		return found, nil
	}

	h, err := create()
	if err != nil {
		return nil, err
	}

	b := &BaseInstance{Key: key, Handle: h}
	old := *s.snapshot.Load()
	next := make([]*BaseInstance, len(old)+1)
	copy(next, old)
	next[len(old)] = b
	s.snapshot.Store(&next)
	return b, nil
}

func (s *baseInstanceStore) all() []*BaseInstance {
	return *s.snapshot.Load()
}
