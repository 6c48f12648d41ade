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

// This file implements the compilation engine (Section 4.4-4.6):
// eligibility for the base/linked fast path, the monolithic optimized
// path, and the linked base path, grounded line-for-line on
// dxvk_graphics.cpp's canCreateBasePipeline/createOptimizedPipeline/
// createBasePipeline.

// canCreateBasePipeline implements Section 4.4.
func canCreateBasePipeline(state *StateVector, shaders Shaders, viLib *VertexInputLibrary, foLib *FragmentOutputLibrary, vsLibrary, fsLibrary ShaderPipelineLibrary) bool {
	if vsLibrary == nil || fsLibrary == nil {
		return false
	}
	if viLib == nil || foLib == nil {
		return false
	}
	if state.RS.PolygonMode != PolygonModeFill || state.RS.ConservativeMode != ConservativeModeDisabled {
		return false
	}

	if shaders.FS != nil {
		vsOut := shaders.VS.Info().OutputMask
		fsIn := shaders.FS.Info().InputMask
		if vsOut&fsIn != fsIn {
			return false
		}
		if state.OM.DualSourceBlend {
			return false
		}
		if shaders.FS.Flags().HasSampleRateShading {
			effectiveSamples := state.MS.SampleCount
			if effectiveSamples == 0 {
				effectiveSamples = state.RS.SampleCount
			}
			if effectiveSamples == 0 {
				effectiveSamples = 1
			}
			if effectiveSamples != 1 || state.MS.SampleMask == 0 || state.MS.AlphaToCoverageEnable {
				return false
			}
		}

		fsOut := shaders.FS.Info().OutputMask
		for i := 0; i < MaxNumRenderTargets; i++ {
			if state.RT.ColorFormats[i] == FormatUndefined {
				continue
			}
			if fsOut&(1<<uint(i)) == 0 {
				continue
			}
			if state.OMBlend[i].WriteMask == 0 {
				continue
			}
			if !state.OMSwizzle[i].IsIdentity() {
				return false
			}
		}
	}

	return true
}

// getPrevStageShader implements Section 4.5's "previous stage" table.
func getPrevStageShader(shaders Shaders, stage ShaderStage) Shader {
	switch stage {
	case StageTessControl:
		return shaders.VS
	case StageTessEval:
		return shaders.TCS
	case StageGeometry:
		if shaders.TES != nil {
			return shaders.TES
		}
		return shaders.VS
	case StageFragment:
		if shaders.GS != nil {
			return shaders.GS
		}
		if shaders.TES != nil {
			return shaders.TES
		}
		return shaders.VS
	default:
		return nil
	}
}

func shaderForStage(shaders Shaders, stage ShaderStage) Shader {
	switch stage {
	case StageVertex:
		return shaders.VS
	case StageTessControl:
		return shaders.TCS
	case StageTessEval:
		return shaders.TES
	case StageGeometry:
		return shaders.GS
	case StageFragment:
		return shaders.FS
	default:
		return nil
	}
}

func stageOrder(shaders Shaders) []ShaderStage {
	order := []ShaderStage{StageVertex}
	if shaders.TCS != nil {
		order = append(order, StageTessControl)
	}
	if shaders.TES != nil {
		order = append(order, StageTessEval)
	}
	if shaders.GS != nil {
		order = append(order, StageGeometry)
	}
	if shaders.FS != nil {
		order = append(order, StageFragment)
	}
	return order
}

// getShaderCode implements Section 4.5's per-stage patchOptions assembly.
//
// Design Note (preserved as-is, not fixed): for the tessellation-evaluation
// stage, providedInputs is set equal to consumedInputs, which the source
// this design was distilled from explicitly flags as "technically not
// correct, but this would need a lot of extra care". We do not infer
// alternative semantics; tes's undefined-input mask is always zero.
func getShaderCode(bindings BindingLayout, shaders Shaders, stage ShaderStage, swizzle [MaxNumRenderTargets]ComponentMapping, dualSourceBlend bool) ([]byte, error) {
	sh := shaderForStage(shaders, stage)
	if sh == nil {
		return nil, nil
	}

	opts := PatchOptions{}

	if stage == StageFragment {
		opts.DualSourceBlend = dualSourceBlend
		opts.Swizzle = swizzle
	}

	if stage != StageVertex && stage != StageTessEval {
		consumed := sh.Info().InputMask
		var provided uint64
		if prev := getPrevStageShader(shaders, stage); prev != nil {
			provided = prev.Info().OutputMask
		}
		opts.UndefinedInputMask = consumed &^ provided
	}

	return sh.GetCode(bindings, opts)
}

// dynamicStates enumerates the always-on and conditional dynamic states
// for the optimized path (Section 4.5). Viewport/scissor-with-count are
// unconditional and are asserted by the Device collaborator, not modeled
// as flags here.
func dynamicStates(state *StateVector, pr PreRasterization) (vertexStrides, depthBias, depthBounds, blendConstants, stencilRef, cullFace bool) {
	vertexStrides = state.RS.DynamicVertexStrides
	depthBias = state.RS.DynamicDepthBias
	depthBounds = state.RS.DynamicDepthBounds
	blendConstants = state.RS.DynamicBlendConstants
	stencilRef = state.RS.DynamicStencilRef
	cullFace = !pr.RasterizerDiscardEnable
	return
}

type optimizedPipelineInputs struct {
	dev       Device
	bindings  BindingLayout
	shaders   Shaders
	state     *StateVector
	vi        VertexInput
	pr        PreRasterization
	fss       FragmentShader
	fo        FragmentOutput
	vsLibrary ShaderPipelineLibrary
	fsLibrary ShaderPipelineLibrary
}

// createOptimizedPipeline implements Section 4.5. When cacheWarm is true
// it asks the vs/fs shader-pipeline-library collaborators for their
// module identifiers and requests FAIL_ON_PIPELINE_COMPILE_REQUIRED
// instead of supplying SPIR-V, per dxvk_graphics.cpp's
// FAIL_ON_PIPELINE_COMPILE_REQUIRED branch, which substitutes exactly the
// vs and fs stages this way; a driver-reported miss in that mode is
// swallowed by the caller (ErrCachedCompileMissed), not surfaced here.
func createOptimizedPipeline(in optimizedPipelineInputs, cacheWarm bool) (PipelineHandle, error) {
	vertexStrides, depthBias, depthBounds, blendConstants, stencilRef, _ := dynamicStates(in.state, in.pr)

	info := GraphicsPipelineCreateInfo{
		DynamicVertexStrides:  vertexStrides,
		DynamicDepthBias:      depthBias,
		DynamicDepthBounds:    depthBounds,
		DynamicBlendConstants: blendConstants,
		DynamicStencilRef:     stencilRef,
		VertexInput:           &in.vi,
		PreRasterization:      &in.pr,
		FragmentShader:        &in.fss,
		FragmentOutput:        &in.fo,
		Layout:                in.bindings,
		FailOnCompileRequired: cacheWarm,
	}

	if n := in.state.SC.NumConstants; n > 0 {
		info.SpecConstants = append([]uint32(nil), in.state.SC.Constants[:n]...)
	}

	if cacheWarm && in.vsLibrary != nil && in.fsLibrary != nil {
		vsID, vsOK := in.vsLibrary.GetModuleIdentifier()
		fsID, fsOK := in.fsLibrary.GetModuleIdentifier()
		if vsOK && fsOK {
			info.Stages = []ShaderStageCreateInfo{
				{Stage: StageVertex, ModuleIdentifier: vsID, UseModuleIdentifier: true},
				{Stage: StageFragment, ModuleIdentifier: fsID, UseModuleIdentifier: true},
			}
			return in.dev.CreateGraphicsPipelines(info)
		}
	}

	for _, stage := range stageOrder(in.shaders) {
		code, err := getShaderCode(in.bindings, in.shaders, stage, in.state.OMSwizzle, in.state.OM.DualSourceBlend)
		if err != nil {
			return 0, err
		}
		info.Stages = append(info.Stages, ShaderStageCreateInfo{Stage: stage, Code: code})
	}

	return in.dev.CreateGraphicsPipelines(info)
}

// createBasePipeline implements Section 4.6: link the two cached
// sub-vector libraries plus the two precompiled shader-pipeline libraries
// into one pipeline, deduplicated in basePipelines by key equality.
func createBasePipeline(dev Device, bases *baseInstanceStore, viLib *VertexInputLibrary, foLib *FragmentOutputLibrary,
	vsLib, fsLib ShaderPipelineLibrary, depthClipEnable bool,
) (PipelineHandle, error) {
	key := BaseInstanceKey{
		VILibraryHandle: viLib.Handle(),
		FOLibraryHandle: foLib.Handle(),
		DepthClipEnable: depthClipEnable,
	}

	b, err := bases.getOrCreate(key, func() (PipelineHandle, error) {
		args := ShaderPipelineLibraryArgs{DepthClipEnable: depthClipEnable}

		vsHandle, err := vsLib.GetPipelineHandle(args)
		if err != nil {
			return 0, err
		}
		var fsHandle PipelineHandle
		if fsLib != nil {
			fsHandle, err = fsLib.GetPipelineHandle(args)
			if err != nil {
				return 0, err
			}
		}

		info := GraphicsPipelineCreateInfo{
			Libraries: []PipelineHandle{viLib.Handle(), vsHandle, fsHandle, foLib.Handle()},
		}
		return dev.CreateGraphicsPipelines(info)
	})
	if err != nil {
		return 0, err
	}
	return b.Handle, nil
}
