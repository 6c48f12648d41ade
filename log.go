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

// newLogger is called once per Pipeline at New(). Unlike the teacher's
// single process-wide instance.logger, a process may host several
// unrelated GraphicsPipeline objects (one per Device), so logging is
// attached per-pipeline rather than shared through a package singleton.
func newLogger(name string) *debug.Logger {
	return debug.NewLogger("pipeline", name)
}

// abort is reserved for programmer-error conditions treated as fatal:
// illegal copy of a noCopy-guarded value, or use of a Pipeline after
// drop(). It is never used for the four recoverable kinds in errors.go,
// which are always returned as values.
func abort(format string, args ...any) {
	panic(debug.Errorf(format, args...))
}
