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

// noCopy detects illegal copy-by-value of the pipeline core's move-only
// handle wrappers (GraphicsPipeline, VertexInputLibrary,
// FragmentOutputLibrary). A copy silently
// duplicates ownership of a live GPU handle, which is the exact failure
// the append-only, atomic-publication design in Section 5 depends on
// never happening.
type noCopy struct {
	addr *noCopy
}

func (n *noCopy) init() {
	if n.addr != nil {
		abort("init called on non zero value")
	}
	n.addr = n
}

func (n *noCopy) check() {
	if n.addr != n {
		abort("Illegal copy by value or use of zero/dead value: \n%s", debug.StackTrace(0))
	}
}

func (n *noCopy) close() {
	n.addr = nil
}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
