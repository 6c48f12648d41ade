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

// Package statecache provides a reference implementation of
// pipeline.StateCache: an append-only on-disk log of the states that were
// not eligible for the base/linked fast path (Section 4.7 step 4), plus a
// Replay entry point that feeds a persisted log back through a
// GraphicsPipeline's compile() on a subsequent run so its optimized
// pipelines are warm before the first draw that needs them.
package statecache

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"sync"

	pipeline "github.com/dxvk-go/pipelinecore"
	"goarrg.com/debug"
	lru "github.com/hashicorp/golang-lru/v2"
)

// entry is the on-disk record. gob requires exported fields, which both
// pipeline.StateCacheKey and pipeline.StateVector already have.
type entry struct {
	Key   pipeline.StateCacheKey
	State pipeline.StateVector
}

func hashEntry(e entry) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%+v", e)
	return h.Sum64()
}

// Cache appends AddGraphicsPipeline calls to a gob-encoded log file,
// deduplicating writes against a bounded LRU of recently seen entries so a
// hot state does not grow the file on every getHandle miss it can't avoid
// (Section 4.7 calls AddGraphicsPipeline once per new instance, but a
// process may create and destroy the same GraphicsPipeline many times).
type Cache struct {
	logger *debug.Logger

	mtx  sync.Mutex
	file *os.File
	enc  *gob.Encoder
	seen *lru.Cache[uint64, struct{}]
}

// Open appends to (creating if necessary) the log at path. dedupSize bounds
// the recently-seen LRU; 0 uses a 4096-entry default.
func Open(path string, dedupSize int) (*Cache, error) {
	if dedupSize <= 0 {
		dedupSize = 4096
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, debug.ErrorWrapf(err, "Failed to open state cache %q", path)
	}

	seen, err := lru.New[uint64, struct{}](dedupSize)
	if err != nil {
		f.Close()
		return nil, debug.ErrorWrapf(err, "Failed to allocate state cache dedup LRU")
	}

	return &Cache{
		logger: debug.NewLogger("pipeline", "statecache"),
		file:   f,
		enc:    gob.NewEncoder(f),
		seen:   seen,
	}, nil
}

// AddGraphicsPipeline implements pipeline.StateCache.
func (c *Cache) AddGraphicsPipeline(key pipeline.StateCacheKey, state pipeline.StateVector) {
	e := entry{Key: key, State: state}
	h := hashEntry(e)

	if _, ok := c.seen.Get(h); ok {
		return
	}
	c.seen.Add(h, struct{}{})

	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := c.enc.Encode(e); err != nil {
		c.logger.EPrintf("Failed to append state cache entry: %v", err)
	}
}

// Close flushes and closes the underlying file.
func (c *Cache) Close() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.file.Close()
}

// Compiler is the subset of pipeline.GraphicsPipeline that Replay drives.
type Compiler interface {
	Key() pipeline.StateCacheKey
	Compile(state pipeline.StateVector)
}

// Replay reads every entry in the log at path whose key matches core.Key()
// and feeds its state through core.Compile, warming the optimized-pipeline
// path ahead of the first draw call that would otherwise take it cold. A
// missing file is not an error: a fresh cache has nothing to replay.
func Replay(ctx context.Context, path string, core Compiler) (int, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, debug.ErrorWrapf(err, "Failed to open state cache %q", path)
	}
	defer f.Close()

	dec := gob.NewDecoder(f)
	key := core.Key()
	n := 0

	for {
		select {
		case <-ctx.Done():
			return n, ctx.Err()
		default:
		}

		var e entry
		if err := dec.Decode(&e); err != nil {
			if err == io.EOF {
				return n, nil
			}
			return n, debug.ErrorWrapf(err, "Failed to decode state cache entry %d", n)
		}
		if e.Key != key {
			continue
		}

		core.Compile(e.State)
		n++
	}
}
