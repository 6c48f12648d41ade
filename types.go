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

// Package pipeline implements the graphics pipeline compilation and
// caching core of a Vulkan-based translation layer: it turns an
// application-facing state vector into a compiled GPU pipeline handle,
// exploiting a library-linking fast path where the state allows it and
// falling back to a monolithic optimized compile otherwise.
package pipeline

import "fmt"

// Fixed capacities mirror the original implementation's std::array bounds:
// generous enough for any legacy fixed-function pipeline, small enough to
// keep StateVector directly comparable with ==.
const (
	MaxNumVertexAttributes = 32
	MaxNumVertexBindings   = 32
	MaxNumRenderTargets    = 8
	MaxNumSpecConstants    = 32
)

type PipelineHandle uint64

func (h PipelineHandle) Valid() bool { return h != 0 }

type PipelineKind int

const (
	FastPipeline PipelineKind = iota
	BasePipeline
)

func (k PipelineKind) String() string {
	if k == BasePipeline {
		return "Base"
	}
	return "Fast"
}

type PrimitiveTopology uint32

const (
	TopologyPointList PrimitiveTopology = iota
	TopologyLineList
	TopologyLineStrip
	TopologyTriangleList
	TopologyTriangleStrip
	TopologyTriangleFan
	TopologyPatchList
)

type PolygonMode uint32

const (
	PolygonModeFill PolygonMode = iota
	PolygonModeLine
	PolygonModePoint
)

type ConservativeMode uint32

const (
	ConservativeModeDisabled ConservativeMode = iota
	ConservativeModeOverestimate
	ConservativeModeUnderestimate
)

type VertexInputRate uint32

const (
	InputRateVertex VertexInputRate = iota
	InputRateInstance
)

type CompareOp uint32

const (
	CompareOpNever CompareOp = iota
	CompareOpLess
	CompareOpEqual
	CompareOpLessOrEqual
	CompareOpGreater
	CompareOpNotEqual
	CompareOpGreaterOrEqual
	CompareOpAlways
)

type StencilOp uint32

const (
	StencilOpKeep StencilOp = iota
	StencilOpZero
	StencilOpReplace
	StencilOpIncrementClamp
	StencilOpDecrementClamp
	StencilOpInvert
	StencilOpIncrementWrap
	StencilOpDecrementWrap
)

type LogicOp uint32

type BlendFactor uint32

const (
	BlendFactorZero BlendFactor = iota
	BlendFactorOne
	BlendFactorSrcColor
	BlendFactorOneMinusSrcColor
	BlendFactorDstColor
	BlendFactorOneMinusDstColor
	BlendFactorSrcAlpha
	BlendFactorOneMinusSrcAlpha
	BlendFactorDstAlpha
	BlendFactorOneMinusDstAlpha
)

type BlendOp uint32

const (
	BlendOpAdd BlendOp = iota
	BlendOpSubtract
	BlendOpReverseSubtract
	BlendOpMin
	BlendOpMax
)

type ColorComponentFlags uint32

const (
	ColorComponentR ColorComponentFlags = 1 << iota
	ColorComponentG
	ColorComponentB
	ColorComponentA
)

const ColorComponentRGBA = ColorComponentR | ColorComponentG | ColorComponentB | ColorComponentA

type Format uint32

// Which of R,G,B,A a format actually stores is reported by
// Device.ColorComponentMask. Real formats are supplied by the Device
// collaborator; the zero value
// is the "undefined" format used for unused render target slots.
const FormatUndefined Format = 0

type DepthStencilFormat uint32

const DepthStencilFormatUndefined DepthStencilFormat = 0

type ImageAspectFlags uint32

const (
	AspectDepth ImageAspectFlags = 1 << iota
	AspectStencil
)

type FormatFeatureFlags uint32

const (
	FormatFeatureVertexBuffer FormatFeatureFlags = 1 << iota
	FormatFeatureColorAttachment
	FormatFeatureColorAttachmentBlend
	FormatFeatureDepthStencilAttachment
)

// ComponentMapping resolves an already-normalized swizzle: each field is
// the source channel (0=R,1=G,2=B,3=A) feeding the named destination
// channel. Identity is {0,1,2,3}.
type ComponentMapping struct {
	R, G, B, A uint8
}

var IdentitySwizzle = ComponentMapping{R: 0, G: 1, B: 2, A: 3}

func (m ComponentMapping) IsIdentity() bool { return m == IdentitySwizzle }

type (
	VertexAttribute struct {
		Location uint32
		Binding  uint32
		Format   Format
		Offset   uint32
	}

	VertexBinding struct {
		Binding   uint32
		Stride    uint32
		InputRate VertexInputRate
		Divisor   uint32
	}

	InputAssemblyState struct {
		Topology            PrimitiveTopology
		PrimitiveRestart    bool
		PatchControlPoints  uint32
	}

	InputLayoutState struct {
		NumAttributes uint32
		Attributes    [MaxNumVertexAttributes]VertexAttribute
		NumBindings   uint32
		Bindings      [MaxNumVertexBindings]VertexBinding
	}

	RasterizationState struct {
		PolygonMode            PolygonMode
		DepthBiasEnable        bool
		DepthClipEnable        bool
		ConservativeMode       ConservativeMode
		SampleCount            uint32
		DynamicVertexStrides   bool
		DynamicDepthBias       bool
		DynamicDepthBounds     bool
		DynamicBlendConstants  bool
		DynamicStencilRef      bool
	}

	MultisampleState struct {
		SampleCount          uint32
		SampleMask           uint32
		AlphaToCoverageEnable bool
	}

	StencilOpState struct {
		FailOp      StencilOp
		PassOp      StencilOp
		DepthFailOp StencilOp
		CompareOp   CompareOp
	}

	DepthStencilState struct {
		DepthTestEnable        bool
		DepthWriteEnable       bool
		DepthCompareOp         CompareOp
		DepthBoundsTestEnable  bool
		StencilTestEnable      bool
	}

	OutputMergerState struct {
		LogicOpEnable   bool
		LogicOp         LogicOp
		DualSourceBlend bool
	}

	ColorBlendAttachment struct {
		BlendEnable         bool
		SrcColorBlendFactor BlendFactor
		DstColorBlendFactor BlendFactor
		ColorBlendOp        BlendOp
		SrcAlphaBlendFactor BlendFactor
		DstAlphaBlendFactor BlendFactor
		AlphaBlendOp        BlendOp
		WriteMask           ColorComponentFlags
	}

	RenderTargetState struct {
		NumColorAttachments uint32
		ColorFormats        [MaxNumRenderTargets]Format
		DepthStencilFormat  DepthStencilFormat
		ReadOnlyAspects     ImageAspectFlags
	}

	SpecConstantState struct {
		NumConstants uint32
		Constants    [MaxNumSpecConstants]uint32
	}

	// StateVector is the application-facing, input-only description of
	// one pipeline configuration. Every field is a value type or fixed
	// array, so two StateVectors are compared with plain ==.
	StateVector struct {
		IA       InputAssemblyState
		IL       InputLayoutState
		RS       RasterizationState
		MS       MultisampleState
		DS       DepthStencilState
		DSFront  StencilOpState
		DSBack   StencilOpState
		OM       OutputMergerState
		OMBlend  [MaxNumRenderTargets]ColorBlendAttachment
		OMSwizzle [MaxNumRenderTargets]ComponentMapping
		RT       RenderTargetState
		SC       SpecConstantState
	}
)

func (s *StateVector) Equal(o *StateVector) bool {
	return *s == *o
}

func (s *StateVector) String() string {
	return fmt.Sprintf("%+v", *s)
}
