/*
Copyright 2024 The Streambatch Authors.

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

// Package batch selects the files of the next micro-batch. Planning is a
// pure function of (candidates, cap), so a retried cycle plans the same
// batch again.
package batch

import (
	"github.com/streamproj/streambatch/pkg/objstore"
)

// Batch is the bounded set of source objects one cycle processes. It is
// never persisted, membership is reconstructed from checkpoint deltas on
// recovery.
type Batch struct {
	// ID is the monotonic batch id, also the sink idempotency key.
	ID int64
	// Files in planned order, oldest first.
	Files []objstore.ObjectInfo
}

// IsEmpty reports whether there is nothing to do this cycle.
func (b Batch) IsEmpty() bool {
	return len(b.Files) == 0
}

// Keys returns the source object keys of the batch, in order.
func (b Batch) Keys() []string {
	keys := make([]string, len(b.Files))
	for i, f := range b.Files {
		keys[i] = f.Key
	}
	return keys
}

// Planner plans batches under the maxFilesPerTrigger cap. Higher caps
// mean larger batches and higher peak memory, lower caps mean more
// checkpoint overhead.
type Planner struct {
	maxFilesPerTrigger int
}

// NewPlanner returns a Planner with the given per-trigger file cap.
func NewPlanner(maxFilesPerTrigger int) *Planner {
	return &Planner{maxFilesPerTrigger: maxFilesPerTrigger}
}

// Plan takes the first maxFilesPerTrigger candidates (or all, if fewer)
// as the batch with the given id. An empty candidate list yields an empty
// batch, which the driver treats as "nothing to do".
func (p *Planner) Plan(batchID int64, candidates []objstore.ObjectInfo) Batch {
	n := len(candidates)
	if n > p.maxFilesPerTrigger {
		n = p.maxFilesPerTrigger
	}
	files := make([]objstore.ObjectInfo, n)
	copy(files, candidates[:n])
	return Batch{ID: batchID, Files: files}
}
