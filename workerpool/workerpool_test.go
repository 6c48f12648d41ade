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

package workerpool

import (
	"sync/atomic"
	"testing"
)

func TestPoolRunsAllJobs(t *testing.T) {
	p := New(2)

	var n atomic.Int32
	for i := 0; i < 50; i++ {
		p.Submit(func() { n.Add(1) })
	}
	p.Wait()

	if got := n.Load(); got != 50 {
		t.Fatalf("expected 50 completed jobs, got %d", got)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := New(3)

	var cur, max atomic.Int32
	for i := 0; i < 20; i++ {
		p.Submit(func() {
			c := cur.Add(1)
			for {
				m := max.Load()
				if c <= m || max.CompareAndSwap(m, c) {
					break
				}
			}
			cur.Add(-1)
		})
	}
	p.Wait()

	if max.Load() > 3 {
		t.Fatalf("observed concurrency %d exceeds bound of 3", max.Load())
	}
}

func TestPoolRecoversPanickingJob(t *testing.T) {
	p := New(1)

	var ran atomic.Bool
	p.Submit(func() { panic("boom") })
	p.Submit(func() { ran.Store(true) })
	p.Wait()

	if !ran.Load() {
		t.Fatalf("panic in one job should not prevent later jobs from running")
	}
}
