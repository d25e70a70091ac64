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

// Package inmem implements the checkpoint store on a map, for tests. It
// supports injecting commit failures to exercise the driver's retry and
// halt paths.
package inmem

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/streamproj/streambatch/pkg/checkpoint"
)

// Store is an in-memory checkpoint.Store.
type Store struct {
	mu          sync.Mutex
	commits     map[int64]*checkpoint.Commit
	leaseHolder string
	failCommits int
}

var _ checkpoint.Store = (*Store)(nil)

// NewStore returns an empty in-memory checkpoint store.
func NewStore() *Store {
	return &Store{commits: make(map[int64]*checkpoint.Commit)}
}

func (s *Store) Commit(_ context.Context, batchID int64, processed []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCommits != 0 {
		if s.failCommits > 0 {
			s.failCommits--
		}
		return fmt.Errorf("%w: injected failure", checkpoint.ErrCommitFailed)
	}
	keys := make([]string, len(processed))
	copy(keys, processed)
	s.commits[batchID] = &checkpoint.Commit{
		BatchID:     batchID,
		Processed:   keys,
		CommittedAt: time.Now().UTC(),
	}
	return nil
}

func (s *Store) Load(_ context.Context) (int64, checkpoint.ProcessedSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	commits := make([]*checkpoint.Commit, 0, len(s.commits))
	for _, c := range s.commits {
		commits = append(commits, c)
	}
	lastBatchID, processed := checkpoint.Replay(commits)
	return lastBatchID, processed, nil
}

func (s *Store) AcquireLease(_ context.Context, instanceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.leaseHolder == "" || s.leaseHolder == instanceID {
		s.leaseHolder = instanceID
		return nil
	}
	return fmt.Errorf("%w: held by %q", checkpoint.ErrLeaseHeld, s.leaseHolder)
}

func (s *Store) ReleaseLease(_ context.Context, instanceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.leaseHolder == instanceID {
		s.leaseHolder = ""
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

// FailCommits makes the next n Commit calls fail; n < 0 fails all until
// healed with FailCommits(0).
func (s *Store) FailCommits(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCommits = n
}

// CommitCount returns the number of committed batches.
func (s *Store) CommitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.commits)
}
