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

import "goarrg.com/debug"

// GraphicsPipeline is the Core API's Pipeline object (Section 6): one per
// application-facing pipeline identity (shader bundle + binding layout),
// owning every Instance and BaseInstance it has ever created.
type GraphicsPipeline struct {
	noCopy noCopy

	logger *debug.Logger

	dev      Device
	manager  Manager
	shaders  Shaders
	bindings BindingLayout

	vsLibrary  ShaderPipelineLibrary
	fsLibrary  ShaderPipelineLibrary
	stateCache StateCache
	cfg        Config

	instances *instanceStore
	bases     *baseInstanceStore

	hasTransformFeedback  bool
	hasRasterizerDiscard  bool
	hasStorageDescriptors bool
}

// New implements `new(device, manager, shaders, bindings, vsLibrary?, fsLibrary?)`
// from Section 6. vsLibrary/fsLibrary and stateCache may be nil: a nil
// vsLibrary/fsLibrary simply makes canCreateBasePipeline always false for
// this pipeline (the base fast path degrades to always-optimized); a nil
// stateCache makes state-cache publication a no-op.
func New(dev Device, manager Manager, shaders Shaders, bindings BindingLayout, vsLibrary, fsLibrary ShaderPipelineLibrary, stateCache StateCache, cfg Config) *GraphicsPipeline {
	cfg.validate()

	p := &GraphicsPipeline{
		logger:     newLogger("graphics"),
		dev:        dev,
		manager:    manager,
		shaders:    shaders,
		bindings:   bindings,
		vsLibrary:  vsLibrary,
		fsLibrary:  fsLibrary,
		stateCache: stateCache,
		cfg:        cfg,
		instances:  newInstanceStore(),
		bases:      newBaseInstanceStore(),
	}

	if shaders.GS != nil {
		p.hasTransformFeedback = shaders.GS.Flags().HasTransformFeedback
		p.hasRasterizerDiscard = shaders.GS.Info().XfbRasterizedStream < 0
	}
	p.hasStorageDescriptors = bindings.GlobalBarrier().AccessMask&AccessShaderWrite != 0

	p.noCopy.init()
	return p
}

// Key identifies the shader bundle this pipeline was constructed for, for
// matching persisted state-cache entries during replay (see the statecache
// package's Replay).
func (p *GraphicsPipeline) Key() StateCacheKey {
	return stateCacheKey(p.shaders)
}

// HasStorageDescriptors reports whether this pipeline's binding layout
// declares shader-write access (Section 4.9), set once at New() rather
// than recomputed per call. A command-recording layer consults this to
// decide whether a draw using this pipeline needs a storage-hazard
// barrier at all, without re-deriving it from the binding layout itself.
func (p *GraphicsPipeline) HasStorageDescriptors() bool {
	p.noCopy.check()
	return p.hasStorageDescriptors
}

// GetGlobalBarrier implements Section 4.9.
func (p *GraphicsPipeline) GetGlobalBarrier(state StateVector) Barrier {
	p.noCopy.check()

	barrier := p.bindings.GlobalBarrier()
	if state.IL.NumBindings > 0 {
		barrier = barrier.Or(Barrier{StageMask: StageVertexInput, AccessMask: AccessVertexAttributeRead})
	}
	if p.hasTransformFeedback {
		barrier = barrier.Or(Barrier{StageMask: StageTransformFeedback, AccessMask: AccessTransformFeedbackWrite})
	}
	return barrier
}

// buildLibraries requests the two sub-vector libraries through the
// Manager collaborator, which is responsible for deduplicating them by
// sub-vector equality (Section 4.2). A construction failure degrades the
// pipeline to the optimized-only path for this state rather than failing
// the whole lookup.
func (p *GraphicsPipeline) buildLibraries(state *StateVector, vi VertexInput, fo FragmentOutput) (*VertexInputLibrary, *FragmentOutputLibrary) {
	viLib, err := p.manager.CreateVertexInputLibrary(vi)
	if err != nil {
		p.logger.WPrintf("VertexInputLibrary creation failed, falling back to optimized path: %v", err)
		viLib = nil
	}
	foLib, err := p.manager.CreateFragmentOutputLibrary(fo)
	if err != nil {
		p.logger.WPrintf("FragmentOutputLibrary creation failed, falling back to optimized path: %v", err)
		foLib = nil
	}
	return viLib, foLib
}

func (p *GraphicsPipeline) derive(state *StateVector) (VertexInput, FragmentOutput, PreRasterization, FragmentShader) {
	vi := DeriveVertexInput(state, p.shaders.VS.Info().InputMask)
	fo := DeriveFragmentOutput(state, p.shaders.FS, p.dev)
	pr := DerivePreRasterization(state, p.shaders.GS, p.dev)
	fss := DeriveFragmentShader(state)
	return vi, fo, pr, fss
}

// createInstance implements step 4 of getHandle (Section 4.7).
func (p *GraphicsPipeline) createInstance(state *StateVector) (*Instance, bool) {
	vi, fo, pr, fss := p.derive(state)
	viLib, foLib := p.buildLibraries(state, vi, fo)
	canBase := canCreateBasePipeline(state, p.shaders, viLib, foLib, p.vsLibrary, p.fsLibrary)

	inst := &Instance{state: *state}
	optIn := optimizedPipelineInputs{dev: p.dev, bindings: p.bindings, shaders: p.shaders, state: state, vi: vi, pr: pr, fss: fss, fo: fo, vsLibrary: p.vsLibrary, fsLibrary: p.fsLibrary}

	if canBase {
		h, err := createOptimizedPipeline(optIn, true)
		if err == nil && h.Valid() {
			inst.publishFast(h)
			return inst, canBase
		}
		// A cache-warm miss (ErrCachedCompileMissed) is normal cache-miss
		// behavior (Section 7); link a base pipeline instead.
		h, err = createBasePipeline(p.dev, p.bases, viLib, foLib, p.vsLibrary, p.fsLibrary, state.RS.DepthClipEnable)
		if err != nil {
			p.logger.EPrintf("base pipeline link failed: %v\n%s", err, dumpText(state, p.shaders))
			return inst, canBase
		}
		inst.publishBase(h)
		return inst, canBase
	}

	h, err := createOptimizedPipeline(optIn, false)
	if err != nil {
		p.logger.EPrintf("optimized pipeline compile failed: %v\n%s", err, dumpText(state, p.shaders))
		return inst, canBase
	}
	inst.publishFast(h)
	return inst, canBase
}

// GetHandle implements `getHandle(state) -> (handle, kind)`, Section 4.7.
func (p *GraphicsPipeline) GetHandle(state StateVector) (PipelineHandle, PipelineKind) {
	p.noCopy.check()

	if inst := p.instances.find(&state); inst != nil {
		return handleFromInstance(inst)
	}

	if !validate(&state, p.shaders, p.dev, true, p.cfg) {
		return 0, FastPipeline
	}

	var canBase bool
	inst, created := p.instances.getOrCreate(&state, func() *Instance {
		var i *Instance
		i, canBase = p.createInstance(&state)
		return i
	})

	if created {
		if !inst.FastHandle().Valid() {
			pool := p.manager.WorkerPool()
			s := state
			pool.Submit(func() { p.Compile(s) })
		}
		if !canBase && p.cfg.StateCacheEnabled && p.stateCache != nil {
			p.stateCache.AddGraphicsPipeline(stateCacheKey(p.shaders), state)
		}
	}

	return handleFromInstance(inst)
}

func handleFromInstance(inst *Instance) (PipelineHandle, PipelineKind) {
	if h := inst.FastHandle(); h.Valid() {
		return h, FastPipeline
	}
	return inst.BaseHandle(), BasePipeline
}

// Compile implements the background worker's `compile(state)`, Section 4.7.
// It is safe to call directly to replay a persisted state-cache entry.
func (p *GraphicsPipeline) Compile(state StateVector) {
	p.noCopy.check()

	// Open Question decision: EnableGraphicsPipelineLibrary == True makes
	// the caller rely exclusively on the base/linked fast path; compile()
	// becomes a no-op rather than paying for a monolithic compile no one
	// asked for. See SPEC_FULL.md Section 6.
	if p.cfg.EnableGraphicsPipelineLibrary == True {
		return
	}

	inst := p.instances.find(&state)
	if inst == nil {
		if !validate(&state, p.shaders, p.dev, false, p.cfg) {
			return
		}

		// Without both shader pipeline libraries the base path is never
		// possible, so the stage libraries are not built just to check.
		if p.vsLibrary != nil && p.fsLibrary != nil {
			vi, fo, _, _ := p.derive(&state)
			viLib, foLib := p.buildLibraries(&state, vi, fo)
			if canCreateBasePipeline(&state, p.shaders, viLib, foLib, p.vsLibrary, p.fsLibrary) {
				// fast-linkable pipelines are not cached on disk / replayed
				return
			}
		}

		inst, _ = p.instances.getOrCreate(&state, func() *Instance {
			return &Instance{state: state}
		})
	}

	if !inst.beginCompiling() {
		return
	}

	vi, fo, pr, fss := p.derive(&state)
	optIn := optimizedPipelineInputs{dev: p.dev, bindings: p.bindings, shaders: p.shaders, state: &state, vi: vi, pr: pr, fss: fss, fo: fo, vsLibrary: p.vsLibrary, fsLibrary: p.fsLibrary}

	h, err := createOptimizedPipeline(optIn, false)
	if err != nil {
		p.logger.EPrintf("OptimizedCompileFailed: %v\n%s", err, dumpText(&state, p.shaders))
		return
	}
	inst.publishFast(h)
}

// Drop implements `drop()`: destroys every handle the pipeline owns.
// Per Section 5, this only runs once all references are dropped and no
// compilation is in flight.
func (p *GraphicsPipeline) Drop() {
	p.noCopy.check()

	for _, inst := range p.instances.all() {
		if h := inst.FastHandle(); h.Valid() {
			p.dev.DestroyPipeline(h)
		}
		if h := inst.BaseHandle(); h.Valid() {
			p.dev.DestroyPipeline(h)
		}
	}
	for _, b := range p.bases.all() {
		if b.Handle.Valid() {
			p.dev.DestroyPipeline(b.Handle)
		}
	}

	p.noCopy.close()
}
