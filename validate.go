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

// validate implements Section 4.8. Trusted mode is the fast path taken on
// the getHandle hot path; untrusted mode runs from the background
// compile() worker and does the fuller set of checks against Device
// capabilities, per the original implementation's validatePipelineState.
func validate(state *StateVector, shaders Shaders, dev Device, trusted bool, cfg Config) bool {
	hasPatches := state.IA.Topology == TopologyPatchList
	if hasPatches != (shaders.TCS != nil) || hasPatches != (shaders.TES != nil) {
		return false
	}
	if !isDefinedTopology(state.IA.Topology) {
		return false
	}
	if state.IL.NumAttributes > MaxNumVertexAttributes || state.IL.NumBindings > MaxNumVertexBindings {
		return false
	}

	if trusted && !cfg.DescriptorHazardChecks {
		return true
	}

	if shaders.VS.Info().Stage != StageVertex {
		return false
	}
	if shaders.TCS != nil && shaders.TCS.Info().Stage != StageTessControl {
		return false
	}
	if shaders.TES != nil && shaders.TES.Info().Stage != StageTessEval {
		return false
	}
	if shaders.GS != nil && shaders.GS.Info().Stage != StageGeometry {
		return false
	}
	if shaders.FS != nil && shaders.FS.Info().Stage != StageFragment {
		return false
	}

	seenLocations := map[uint32]struct{}{}
	for i := uint32(0); i < state.IL.NumAttributes; i++ {
		attr := state.IL.Attributes[i]
		if _, dup := seenLocations[attr.Location]; dup {
			return false
		}
		seenLocations[attr.Location] = struct{}{}

		bindingDefined := false
		for b := uint32(0); b < state.IL.NumBindings; b++ {
			if state.IL.Bindings[b].Binding == attr.Binding {
				bindingDefined = true
				break
			}
		}
		if !bindingDefined {
			return false
		}

		if !hasBits(dev.FormatProperties(attr.Format), FormatFeatureVertexBuffer) {
			return false
		}
	}

	if state.RS.ConservativeMode != ConservativeModeDisabled && !dev.Features().ConservativeRasterization {
		return false
	}
	if state.RS.ConservativeMode == ConservativeModeUnderestimate && !dev.Features().PrimitiveUnderestimation {
		return false
	}
	if state.DS.DepthBoundsTestEnable && !dev.Features().DepthBoundsTest {
		return false
	}

	for i := 0; i < MaxNumRenderTargets; i++ {
		format := state.RT.ColorFormats[i]
		if format == FormatUndefined {
			continue
		}
		features := dev.FormatProperties(format)
		if !hasBits(features, FormatFeatureColorAttachment) {
			return false
		}
		if state.OMBlend[i].BlendEnable && !hasBits(features, FormatFeatureColorAttachmentBlend) {
			return false
		}
	}
	if state.RT.DepthStencilFormat != DepthStencilFormatUndefined {
		if !hasBits(dev.DepthStencilFormatProperties(state.RT.DepthStencilFormat), FormatFeatureDepthStencilAttachment) {
			return false
		}
	}

	return true
}

func isDefinedTopology(t PrimitiveTopology) bool {
	return t <= TopologyPatchList
}
