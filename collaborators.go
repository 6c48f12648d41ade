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

// This file declares the narrow interfaces the core consumes from its
// external collaborators (Section 1 / Section 6). Nothing here reaches
// into a real GPU driver: it is the seam a concrete backend implements.

type ShaderStage int

const (
	StageVertex ShaderStage = iota
	StageTessControl
	StageTessEval
	StageGeometry
	StageFragment
)

func (s ShaderStage) String() string {
	switch s {
	case StageVertex:
		return "Vertex"
	case StageTessControl:
		return "TessControl"
	case StageTessEval:
		return "TessEval"
	case StageGeometry:
		return "Geometry"
	case StageFragment:
		return "Fragment"
	default:
		return "Unknown"
	}
}

type ShaderKey [16]byte

type ShaderInfo struct {
	Stage             ShaderStage
	InputMask         uint64
	OutputMask        uint64
	XfbRasterizedStream int32 // negative means rasterizer-discard
}

type ShaderFlags struct {
	HasTransformFeedback bool
	HasSampleRateShading bool
}

// PatchOptions is passed to Shader.GetCode for every stage of the
// optimized (monolithic) path. DualSourceBlend and Swizzle are set only
// for the fragment stage; UndefinedInputMask is always zero for vs and
// tes, which never patch their input mask (Section 4.5).
type PatchOptions struct {
	DualSourceBlend   bool
	Swizzle           [MaxNumRenderTargets]ComponentMapping
	UndefinedInputMask uint64
}

type ModuleIdentifier struct {
	Data  []byte
	Valid bool
}

type Shader interface {
	Info() ShaderInfo
	Flags() ShaderFlags
	GetCode(bindings BindingLayout, opts PatchOptions) ([]byte, error)
	GetShaderKey() ShaderKey
	DebugName() string
}

// Shaders is the ordered stage bundle; VS is required, the rest may be nil.
type Shaders struct {
	VS  Shader
	TCS Shader
	TES Shader
	GS  Shader
	FS  Shader
}

type BarrierStageFlags uint32

const (
	StageVertexInput BarrierStageFlags = 1 << iota
	StageTransformFeedback
)

type BarrierAccessFlags uint32

const (
	AccessVertexAttributeRead BarrierAccessFlags = 1 << iota
	AccessTransformFeedbackWrite
	AccessShaderWrite
)

type Barrier struct {
	StageMask  BarrierStageFlags
	AccessMask BarrierAccessFlags
}

func (b Barrier) Or(o Barrier) Barrier {
	return Barrier{StageMask: b.StageMask | o.StageMask, AccessMask: b.AccessMask | o.AccessMask}
}

// BindingLayout is the descriptor/push-constant layout collaborator.
type BindingLayout interface {
	GlobalBarrier() Barrier
	Handle() uintptr
}

type DeviceFeatures struct {
	DepthClipEnable                    bool
	VertexAttributeInstanceRateDivisor bool
	PipelineCacheControl               bool
	ConservativeRasterization          bool
	PrimitiveUnderestimation           bool
	DepthBoundsTest                    bool
}

// ShaderStageCreateInfo is one entry of the vs,tcs?,tes?,gs?,fs? sequence
// assembled by the optimized path.
type ShaderStageCreateInfo struct {
	Stage            ShaderStage
	Code             []byte
	ModuleIdentifier ModuleIdentifier
	UseModuleIdentifier bool
}

// GraphicsPipelineCreateInfo is the concrete input handed to
// Device.CreateGraphicsPipelines, equivalent to a populated
// VkGraphicsPipelineCreateInfo chain.
type GraphicsPipelineCreateInfo struct {
	DynamicVertexStrides  bool
	DynamicDepthBias      bool
	DynamicDepthBounds    bool
	DynamicBlendConstants bool
	DynamicStencilRef     bool
	// Viewport/scissor-with-count are unconditional per Section 4.5; not
	// modeled as a field since every optimized pipeline sets them.

	Stages []ShaderStageCreateInfo

	VertexInput      *VertexInput
	PreRasterization *PreRasterization
	FragmentShader   *FragmentShader
	FragmentOutput   *FragmentOutput

	SpecConstants []uint32
	Layout        BindingLayout

	// Libraries, when non-empty, requests a library-linking create
	// (Section 4.6) instead of a monolithic one.
	Libraries []PipelineHandle

	FailOnCompileRequired bool
}

// Device is the underlying GPU driver collaborator.
type Device interface {
	CreateGraphicsPipelines(info GraphicsPipelineCreateInfo) (PipelineHandle, error)
	DestroyPipeline(h PipelineHandle)
	Features() DeviceFeatures
	FormatProperties(f Format) FormatFeatureFlags
	DepthStencilFormatProperties(f DepthStencilFormat) FormatFeatureFlags
	// ColorComponentMask reports which of R,G,B,A a color format actually
	// stores; used by FragmentOutput derivation (Section 4.1) to compute
	// the effective write mask and detect emulated single-channel formats.
	ColorComponentMask(f Format) ColorComponentFlags
	Extensions() []string
}

type ShaderPipelineLibraryArgs struct {
	DepthClipEnable bool
}

// ShaderPipelineLibrary is the pre-compiled vertex- or fragment-stage
// library collaborator, keyed by shader and args (Section 4.6).
type ShaderPipelineLibrary interface {
	GetPipelineHandle(args ShaderPipelineLibraryArgs) (PipelineHandle, error)
	GetModuleIdentifier() (ModuleIdentifier, bool)
}

type StateCacheKey struct {
	VS, TCS, TES, GS, FS ShaderKey
}

// StateCache is the on-disk persistence collaborator; the core only ever
// writes to it (Section 6 lists no read method on this contract — replay
// is driven externally through compile(), see statecache.Replay).
type StateCache interface {
	AddGraphicsPipeline(key StateCacheKey, state StateVector)
}

type WorkerPool interface {
	Submit(job func())
}

// Manager creates and deduplicates the two stage-library types (Section 4.2).
type Manager interface {
	CreateVertexInputLibrary(sv VertexInput) (*VertexInputLibrary, error)
	CreateFragmentOutputLibrary(sv FragmentOutput) (*FragmentOutputLibrary, error)
	WorkerPool() WorkerPool
}

func stateCacheKey(s Shaders) StateCacheKey {
	key := StateCacheKey{VS: s.VS.GetShaderKey()}
	if s.TCS != nil {
		key.TCS = s.TCS.GetShaderKey()
	}
	if s.TES != nil {
		key.TES = s.TES.GetShaderKey()
	}
	if s.GS != nil {
		key.GS = s.GS.GetShaderKey()
	}
	if s.FS != nil {
		key.FS = s.FS.GetShaderKey()
	}
	return key
}
