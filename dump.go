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
	"bytes"
	"fmt"
)

// MarshalJSON gives StateVector the teacher's structured-diagnostics
// shape (util.go's jsonString idiom) for logging to structured sinks.
func (s *StateVector) MarshalJSON() ([]byte, error) {
	buff := bytes.Buffer{}
	buff.WriteString("{")
	fmt.Fprintf(&buff, "\"ia\": %s,", jsonString(s.IA))
	fmt.Fprintf(&buff, "\"il\": {\"numAttributes\": %d, \"numBindings\": %d},", s.IL.NumAttributes, s.IL.NumBindings)
	fmt.Fprintf(&buff, "\"rs\": %s,", jsonString(s.RS))
	fmt.Fprintf(&buff, "\"ms\": %s,", jsonString(s.MS))
	fmt.Fprintf(&buff, "\"ds\": %s,", jsonString(s.DS))
	fmt.Fprintf(&buff, "\"om\": %s,", jsonString(s.OM))
	fmt.Fprintf(&buff, "\"rt\": %s", jsonString(s.RT))
	buff.WriteString("}")
	return buff.Bytes(), nil
}

// dumpText produces the plain-text form used at the OptimizedCompileFailed
// error-level log line, modeled on the original implementation's
// logPipelineState stringstream dump: one line per state-vector field
// group, each holding that group's attribute-value pairs, followed by one
// line per present shader.
func dumpText(state *StateVector, shaders Shaders) string {
	buff := bytes.Buffer{}
	fmt.Fprintf(&buff, "ia: topology=%d restart=%t patchControlPoints=%d\n", state.IA.Topology, state.IA.PrimitiveRestart, state.IA.PatchControlPoints)
	fmt.Fprintf(&buff, "il: numAttributes=%d numBindings=%d\n", state.IL.NumAttributes, state.IL.NumBindings)
	fmt.Fprintf(&buff, "rs: polygonMode=%d depthBias=%t depthClip=%t conservative=%d sampleCount=%d\n",
		state.RS.PolygonMode, state.RS.DepthBiasEnable, state.RS.DepthClipEnable, state.RS.ConservativeMode, state.RS.SampleCount)
	fmt.Fprintf(&buff, "ms: sampleCount=%d sampleMask=0x%X alphaToCoverage=%t\n", state.MS.SampleCount, state.MS.SampleMask, state.MS.AlphaToCoverageEnable)
	fmt.Fprintf(&buff, "ds: test=%t write=%t compareOp=%d boundsTest=%t stencilTest=%t\n",
		state.DS.DepthTestEnable, state.DS.DepthWriteEnable, state.DS.DepthCompareOp, state.DS.DepthBoundsTestEnable, state.DS.StencilTestEnable)
	fmt.Fprintf(&buff, "om: logicOpEnable=%t dualSourceBlend=%t\n", state.OM.LogicOpEnable, state.OM.DualSourceBlend)
	fmt.Fprintf(&buff, "rt: depthStencilFormat=%d\n", state.RT.DepthStencilFormat)

	if shaders.VS != nil {
		fmt.Fprintf(&buff, "vs: %s\n", shaders.VS.DebugName())
	}
	if shaders.TCS != nil {
		fmt.Fprintf(&buff, "tcs: %s\n", shaders.TCS.DebugName())
	}
	if shaders.TES != nil {
		fmt.Fprintf(&buff, "tes: %s\n", shaders.TES.DebugName())
	}
	if shaders.GS != nil {
		fmt.Fprintf(&buff, "gs: %s\n", shaders.GS.DebugName())
	}
	if shaders.FS != nil {
		fmt.Fprintf(&buff, "fs: %s\n", shaders.FS.DebugName())
	}

	return buff.String()
}
