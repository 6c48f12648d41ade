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

// VertexInputLibrary owns one GPU pipeline-library handle built from a
// single VertexInput sub-vector (Section 4.2). Grounded on the teacher's
// VertexInputPipeline (graphics_pipeline.go), generalized from a
// name-keyed cache entry to a move-only value the Manager deduplicates.
type VertexInputLibrary struct {
	noCopy  noCopy
	dev     Device
	state   VertexInput
	handle  PipelineHandle
}

func NewVertexInputLibrary(dev Device, sv VertexInput) (*VertexInputLibrary, error) {
	info := GraphicsPipelineCreateInfo{
		DynamicVertexStrides: sv.UseDynamicVertexStrides,
		VertexInput:          &sv,
	}
	h, err := dev.CreateGraphicsPipelines(info)
	if err != nil {
		return nil, &Error{Kind: ErrPipelineLibraryCreationFailed, Cause: err}
	}
	lib := &VertexInputLibrary{dev: dev, state: sv, handle: h}
	lib.noCopy.init()
	return lib, nil
}

func (l *VertexInputLibrary) Handle() PipelineHandle { l.noCopy.check(); return l.handle }
func (l *VertexInputLibrary) State() VertexInput     { l.noCopy.check(); return l.state }

func (l *VertexInputLibrary) Drop() {
	l.noCopy.check()
	l.dev.DestroyPipeline(l.handle)
	l.noCopy.close()
}

// FragmentOutputLibrary owns one GPU pipeline-library handle built from a
// single FragmentOutput sub-vector.
type FragmentOutputLibrary struct {
	noCopy noCopy
	dev    Device
	state  FragmentOutput
	handle PipelineHandle
}

func NewFragmentOutputLibrary(dev Device, sv FragmentOutput) (*FragmentOutputLibrary, error) {
	info := GraphicsPipelineCreateInfo{
		DynamicBlendConstants: sv.UseDynamicBlendConstants,
		FragmentOutput:        &sv,
	}
	h, err := dev.CreateGraphicsPipelines(info)
	if err != nil {
		return nil, &Error{Kind: ErrPipelineLibraryCreationFailed, Cause: err}
	}
	lib := &FragmentOutputLibrary{dev: dev, state: sv, handle: h}
	lib.noCopy.init()
	return lib, nil
}

func (l *FragmentOutputLibrary) Handle() PipelineHandle { l.noCopy.check(); return l.handle }
func (l *FragmentOutputLibrary) State() FragmentOutput  { l.noCopy.check(); return l.state }

func (l *FragmentOutputLibrary) Drop() {
	l.noCopy.check()
	l.dev.DestroyPipeline(l.handle)
	l.noCopy.close()
}
