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

import (
	"sync"
	"sync/atomic"
	"testing"
)

// --- fakes ---

type fakeShader struct {
	stage     ShaderStage
	in, out   uint64
	flags     ShaderFlags
	key       ShaderKey
	name      string
	xfbStream int32
}

func (s *fakeShader) Info() ShaderInfo {
	return ShaderInfo{Stage: s.stage, InputMask: s.in, OutputMask: s.out, XfbRasterizedStream: s.xfbStream}
}
func (s *fakeShader) Flags() ShaderFlags { return s.flags }
func (s *fakeShader) GetCode(BindingLayout, PatchOptions) ([]byte, error) {
	return []byte("code"), nil
}
func (s *fakeShader) GetShaderKey() ShaderKey { return s.key }
func (s *fakeShader) DebugName() string       { return s.name }

type fakeBindingLayout struct{ barrier Barrier }

func (b fakeBindingLayout) GlobalBarrier() Barrier { return b.barrier }
func (b fakeBindingLayout) Handle() uintptr        { return 1 }

type fakeShaderPipelineLibrary struct{ h PipelineHandle }

func (l *fakeShaderPipelineLibrary) GetPipelineHandle(ShaderPipelineLibraryArgs) (PipelineHandle, error) {
	return l.h, nil
}
func (l *fakeShaderPipelineLibrary) GetModuleIdentifier() (ModuleIdentifier, bool) {
	return ModuleIdentifier{}, false
}

// fakeDevice hands out incrementing handles and simulates a
// FAIL_ON_PIPELINE_COMPILE_REQUIRED miss whenever the caller asks for one.
type fakeDevice struct {
	next          atomic.Uint64
	totalCreates  atomic.Int32
	baseLinkCalls atomic.Int32
	features      DeviceFeatures
	colorMask     ColorComponentFlags
}

func (d *fakeDevice) CreateGraphicsPipelines(info GraphicsPipelineCreateInfo) (PipelineHandle, error) {
	d.totalCreates.Add(1)
	if len(info.Libraries) > 0 {
		d.baseLinkCalls.Add(1)
	}
	if info.FailOnCompileRequired {
		return 0, &Error{Kind: ErrCachedCompileMissed}
	}
	return PipelineHandle(d.next.Add(1)), nil
}
func (d *fakeDevice) DestroyPipeline(PipelineHandle) {}
func (d *fakeDevice) Features() DeviceFeatures        { return d.features }
func (d *fakeDevice) FormatProperties(Format) FormatFeatureFlags {
	return FormatFeatureVertexBuffer | FormatFeatureColorAttachment | FormatFeatureColorAttachmentBlend
}
func (d *fakeDevice) DepthStencilFormatProperties(DepthStencilFormat) FormatFeatureFlags {
	return FormatFeatureDepthStencilAttachment
}
func (d *fakeDevice) ColorComponentMask(Format) ColorComponentFlags {
	if d.colorMask != 0 {
		return d.colorMask
	}
	return ColorComponentRGBA
}
func (d *fakeDevice) Extensions() []string                          { return nil }

type fakeManager struct {
	dev  Device
	pool WorkerPool
}

func (m *fakeManager) CreateVertexInputLibrary(sv VertexInput) (*VertexInputLibrary, error) {
	return NewVertexInputLibrary(m.dev, sv)
}
func (m *fakeManager) CreateFragmentOutputLibrary(sv FragmentOutput) (*FragmentOutputLibrary, error) {
	return NewFragmentOutputLibrary(m.dev, sv)
}
func (m *fakeManager) WorkerPool() WorkerPool { return m.pool }

type syncPool struct{}

func (syncPool) Submit(job func()) { job() }

// deferredPool queues jobs until RunAll is called, modeling a background
// worker that hasn't gotten around to the job yet.
type deferredPool struct {
	mtx  sync.Mutex
	jobs []func()
}

func (p *deferredPool) Submit(job func()) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.jobs = append(p.jobs, job)
}

func (p *deferredPool) RunAll() {
	p.mtx.Lock()
	jobs := p.jobs
	p.jobs = nil
	p.mtx.Unlock()
	for _, j := range jobs {
		j()
	}
}

func vsOnlyShaders() Shaders {
	return Shaders{VS: &fakeShader{stage: StageVertex, out: 0x1, key: ShaderKey{1}, name: "vs"}}
}

func vsFsShaders() Shaders {
	return Shaders{
		VS: &fakeShader{stage: StageVertex, out: 0x1, key: ShaderKey{1}, name: "vs"},
		FS: &fakeShader{stage: StageFragment, in: 0x1, out: 0x1, key: ShaderKey{2}, name: "fs"},
	}
}

func basicState() StateVector {
	var s StateVector
	s.IA.Topology = TopologyTriangleList
	s.RS.PolygonMode = PolygonModeFill
	s.RT.ColorFormats[0] = Format(1)
	return s
}

// --- tests ---

func TestGetHandleEligibleForBaseThenUpgrades(t *testing.T) {
	dev := &fakeDevice{}
	pool := &deferredPool{}
	mgr := &fakeManager{dev: dev, pool: pool}
	vsLib := &fakeShaderPipelineLibrary{h: 999}
	fsLib := &fakeShaderPipelineLibrary{h: 998}

	gp := New(dev, mgr, vsOnlyShaders(), fakeBindingLayout{}, vsLib, fsLib, nil, Config{})
	state := basicState()

	h1, kind1 := gp.GetHandle(state)
	if kind1 != BasePipeline {
		t.Fatalf("expected an initial Base handle for a base-eligible state, got %s", kind1)
	}
	if !h1.Valid() {
		t.Fatalf("expected a valid base handle")
	}

	pool.RunAll()

	h2, kind2 := gp.GetHandle(state)
	if kind2 != FastPipeline {
		t.Fatalf("expected an upgraded Fast handle after background compile, got %s", kind2)
	}
	if !h2.Valid() {
		t.Fatalf("expected a valid fast handle")
	}
}

func TestGetHandleIneligibleForBaseCompilesImmediately(t *testing.T) {
	dev := &fakeDevice{features: DeviceFeatures{ConservativeRasterization: true}}
	pool := &deferredPool{}
	mgr := &fakeManager{dev: dev, pool: pool}

	gp := New(dev, mgr, vsOnlyShaders(), fakeBindingLayout{}, nil, nil, nil, Config{})
	state := basicState()
	state.RS.ConservativeMode = ConservativeModeOverestimate

	h, kind := gp.GetHandle(state)
	if kind != FastPipeline {
		t.Fatalf("expected an immediate Fast handle for a base-ineligible state, got %s", kind)
	}
	if !h.Valid() {
		t.Fatalf("expected a valid handle")
	}
}

func TestGetHandleRejectsInvalidState(t *testing.T) {
	dev := &fakeDevice{}
	mgr := &fakeManager{dev: dev, pool: syncPool{}}
	gp := New(dev, mgr, vsOnlyShaders(), fakeBindingLayout{}, nil, nil, nil, Config{})

	state := basicState()
	state.IL.NumAttributes = MaxNumVertexAttributes + 1

	h, _ := gp.GetHandle(state)
	if h.Valid() {
		t.Fatalf("expected an invalid handle for a state that fails validation")
	}
}

func TestGetHandleIsIdempotentPerState(t *testing.T) {
	dev := &fakeDevice{}
	mgr := &fakeManager{dev: dev, pool: syncPool{}}
	vsLib := &fakeShaderPipelineLibrary{h: 1}
	fsLib := &fakeShaderPipelineLibrary{h: 2}
	gp := New(dev, mgr, vsOnlyShaders(), fakeBindingLayout{}, vsLib, fsLib, nil, Config{})

	state := basicState()
	h1, _ := gp.GetHandle(state)
	h2, _ := gp.GetHandle(state)

	if h1 != h2 {
		t.Fatalf("expected repeated lookups of the same state to return the same handle")
	}
	if len(gp.instances.all()) != 1 {
		t.Fatalf("expected exactly one Instance for one distinct state, got %d", len(gp.instances.all()))
	}
}

func TestGetHandleConcurrentLookupsCreateOneInstance(t *testing.T) {
	dev := &fakeDevice{}
	// Background compiles stay queued so every caller sees the same base
	// handle; with an inline pool the creator's upgrade to a fast handle
	// races the other callers' lookups.
	mgr := &fakeManager{dev: dev, pool: &deferredPool{}}
	vsLib := &fakeShaderPipelineLibrary{h: 1}
	fsLib := &fakeShaderPipelineLibrary{h: 2}
	gp := New(dev, mgr, vsOnlyShaders(), fakeBindingLayout{}, vsLib, fsLib, nil, Config{})

	state := basicState()

	var wg sync.WaitGroup
	handles := make([]PipelineHandle, 64)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, _ := gp.GetHandle(state)
			handles[i] = h
		}(i)
	}
	wg.Wait()

	for _, h := range handles[1:] {
		if h != handles[0] {
			t.Fatalf("concurrent GetHandle calls for the same state produced different handles")
		}
	}
	if len(gp.instances.all()) != 1 {
		t.Fatalf("expected exactly one Instance to survive the race, got %d", len(gp.instances.all()))
	}
	if dev.baseLinkCalls.Load() != 1 {
		t.Fatalf("expected exactly one base-link creation despite concurrent callers, got %d", dev.baseLinkCalls.Load())
	}
}

func TestCompileIsIdempotent(t *testing.T) {
	dev := &fakeDevice{features: DeviceFeatures{ConservativeRasterization: true}}
	mgr := &fakeManager{dev: dev, pool: syncPool{}}
	gp := New(dev, mgr, vsOnlyShaders(), fakeBindingLayout{}, nil, nil, nil, Config{})

	state := basicState()
	state.RS.ConservativeMode = ConservativeModeOverestimate // ineligible for the base path

	// Drive Compile directly, without a prior GetHandle, as statecache.Replay does.
	gp.Compile(state)
	inst := gp.instances.find(&state)
	if inst == nil {
		t.Fatalf("expected Compile to create an instance when none existed yet")
	}
	before := inst.FastHandle()
	if !before.Valid() {
		t.Fatalf("expected Compile to publish a fast handle")
	}

	gp.Compile(state)

	if inst.FastHandle() != before {
		t.Fatalf("a second Compile call should not replace an already-published fast handle")
	}
	if dev.totalCreates.Load() != 1 {
		t.Fatalf("expected exactly one pipeline compile across both Compile calls, got %d", dev.totalCreates.Load())
	}
}

func TestCompileNoOpWhenLibraryForced(t *testing.T) {
	dev := &fakeDevice{}
	pool := &deferredPool{}
	mgr := &fakeManager{dev: dev, pool: pool}
	vsLib := &fakeShaderPipelineLibrary{h: 1}
	fsLib := &fakeShaderPipelineLibrary{h: 2}

	gp := New(dev, mgr, vsOnlyShaders(), fakeBindingLayout{}, vsLib, fsLib, nil, Config{EnableGraphicsPipelineLibrary: True})
	state := basicState()

	h, kind := gp.GetHandle(state)
	if kind != BasePipeline || !h.Valid() {
		t.Fatalf("expected an initial Base handle, got %s valid=%v", kind, h.Valid())
	}

	pool.RunAll()

	_, kind2 := gp.GetHandle(state)
	if kind2 != BasePipeline {
		t.Fatalf("EnableGraphicsPipelineLibrary=True should keep serving Base handles, got %s", kind2)
	}
}

func TestGetGlobalBarrierAddsVertexInputAndTransformFeedback(t *testing.T) {
	dev := &fakeDevice{}
	mgr := &fakeManager{dev: dev, pool: syncPool{}}
	bindings := fakeBindingLayout{barrier: Barrier{AccessMask: AccessShaderWrite}}
	shaders := vsOnlyShaders()
	shaders.GS = &fakeShader{stage: StageGeometry, flags: ShaderFlags{HasTransformFeedback: true}}

	gp := New(dev, mgr, shaders, bindings, nil, nil, nil, Config{})

	state := basicState()
	state.IL.NumBindings = 1

	barrier := gp.GetGlobalBarrier(state)
	if barrier.AccessMask&AccessShaderWrite == 0 {
		t.Fatalf("expected the binding layout's own barrier to be included")
	}
	if barrier.AccessMask&AccessVertexAttributeRead == 0 {
		t.Fatalf("expected a vertex-attribute-read barrier for a state with bound vertex buffers")
	}
	if barrier.StageMask&StageTransformFeedback == 0 {
		t.Fatalf("expected a transform-feedback barrier for a pipeline whose gs declares it")
	}
	if !gp.HasStorageDescriptors() {
		t.Fatalf("expected HasStorageDescriptors to reflect the binding layout's shader-write access")
	}
}

func TestHasStorageDescriptorsFalseWithoutShaderWrite(t *testing.T) {
	dev := &fakeDevice{}
	mgr := &fakeManager{dev: dev, pool: syncPool{}}
	gp := New(dev, mgr, vsOnlyShaders(), fakeBindingLayout{}, nil, nil, nil, Config{})

	if gp.HasStorageDescriptors() {
		t.Fatalf("expected HasStorageDescriptors to be false for a binding layout with no shader-write access")
	}
}

func TestUseAfterDropPanics(t *testing.T) {
	dev := &fakeDevice{}
	mgr := &fakeManager{dev: dev, pool: syncPool{}}
	vsLib := &fakeShaderPipelineLibrary{h: 1}
	gp := New(dev, mgr, vsOnlyShaders(), fakeBindingLayout{}, vsLib, nil, nil, Config{})

	gp.GetHandle(basicState())

	gp.Drop()

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected a panic from using a dropped GraphicsPipeline")
		}
	}()
	gp.GetHandle(basicState())
}

func TestFragmentOutputEmulatesAlphaOnlyRenderTarget(t *testing.T) {
	dev := &fakeDevice{colorMask: ColorComponentR}
	shaders := vsFsShaders()

	state := basicState()
	state.OMBlend[0] = ColorBlendAttachment{
		BlendEnable:         true,
		SrcColorBlendFactor: BlendFactorOne,
		DstColorBlendFactor: BlendFactorZero,
		ColorBlendOp:        BlendOpMax,
		SrcAlphaBlendFactor: BlendFactorSrcAlpha,
		DstAlphaBlendFactor: BlendFactorOneMinusSrcAlpha,
		AlphaBlendOp:        BlendOpSubtract,
		WriteMask:           ColorComponentA,
	}
	state.OMSwizzle[0] = ComponentMapping{R: 3, G: 3, B: 3, A: 3}

	fo := DeriveFragmentOutput(&state, shaders.FS, dev)

	blend := fo.Blend[0]
	if blend.SrcColorBlendFactor != BlendFactorSrcColor {
		t.Fatalf("expected the old alpha src factor, remapped, to land in the color slot, got %v", blend.SrcColorBlendFactor)
	}
	if blend.DstColorBlendFactor != BlendFactorOneMinusSrcColor {
		t.Fatalf("expected the old alpha dst factor, remapped, to land in the color slot, got %v", blend.DstColorBlendFactor)
	}
	if blend.ColorBlendOp != BlendOpSubtract {
		t.Fatalf("expected the old alpha blend op to land in the color slot, got %v", blend.ColorBlendOp)
	}
	if blend.SrcAlphaBlendFactor != BlendFactorOne || blend.DstAlphaBlendFactor != BlendFactorZero || blend.AlphaBlendOp != BlendOpAdd {
		t.Fatalf("expected alpha factors/op to be forced to ONE/ZERO/ADD, got %+v", blend)
	}
}
