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

// Package checkpoint defines the durable record of processing progress.
// Each commit is a single self-contained record, so any backend that can
// write one key atomically gives the driver an atomic commit; recovery
// replays all commit records to rebuild the processed set.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

var (
	// ErrCommitFailed wraps backend failures of Commit. Exhausting commit
	// retries on this class is process-fatal for the driver.
	ErrCommitFailed = errors.New("checkpoint commit failed")
	// ErrLeaseHeld is returned by AcquireLease when another instance owns
	// the single-writer lease.
	ErrLeaseHeld = errors.New("checkpoint lease held by another instance")
)

// LeaseKey is the advisory single-writer lease key within a store.
const LeaseKey = "lease"

const commitKeyPrefix = "commit."

// ProcessedSet maps a consumed source object key to the time its batch
// was committed. Membership means the corresponding output is durably
// written; the set only ever grows.
type ProcessedSet map[string]time.Time

// Contains reports whether the source object key has been consumed.
func (s ProcessedSet) Contains(key string) bool {
	_, ok := s[key]
	return ok
}

// CommittedAt returns the commit time for a processed key.
func (s ProcessedSet) CommittedAt(key string) (time.Time, bool) {
	t, ok := s[key]
	return t, ok
}

// Commit is one durable checkpoint record: the batch id and the source
// object keys that batch consumed.
type Commit struct {
	BatchID     int64     `json:"batch_id"`
	Processed   []string  `json:"processed"`
	CommittedAt time.Time `json:"committed_at"`
}

// Store is the durable progress record. Commit must be atomic: either the
// full record is visible after a crash or none of it. Load is the sole
// recovery mechanism.
type Store interface {
	// Commit durably records that batchID consumed the given source keys.
	Commit(ctx context.Context, batchID int64, processed []string) error
	// Load returns the last committed batch id (-1 when none) and the
	// union of all committed processed deltas.
	Load(ctx context.Context) (int64, ProcessedSet, error)
	// AcquireLease takes the advisory single-writer lease for instanceID.
	// Re-acquiring a lease already held by the same instanceID succeeds,
	// so a restarted process under a stable instance id can resume.
	AcquireLease(ctx context.Context, instanceID string) error
	// ReleaseLease gives up the lease if it is held by instanceID.
	ReleaseLease(ctx context.Context, instanceID string) error
	// Close releases backend resources. It does not release the lease.
	Close() error
}

// CommitKey formats the backend key for a batch commit record. Zero
// padding keeps lexical and numeric ordering identical.
func CommitKey(batchID int64) string {
	return fmt.Sprintf("%s%020d", commitKeyPrefix, batchID)
}

// IsCommitKey reports whether a backend key holds a commit record.
func IsCommitKey(key string) bool {
	return strings.HasPrefix(key, commitKeyPrefix)
}

// ParseCommitKey returns the batch id encoded in a commit key.
func ParseCommitKey(key string) (int64, error) {
	if !IsCommitKey(key) {
		return 0, fmt.Errorf("not a commit key: %q", key)
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(key, commitKeyPrefix), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed commit key %q: %w", key, err)
	}
	return id, nil
}

// MarshalCommit encodes a commit record for storage.
func MarshalCommit(c *Commit) ([]byte, error) {
	return json.Marshal(c)
}

// UnmarshalCommit decodes a stored commit record.
func UnmarshalCommit(data []byte) (*Commit, error) {
	var c Commit
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("malformed commit record: %w", err)
	}
	return &c, nil
}

// Replay folds a set of commit records into the recovery state.
func Replay(commits []*Commit) (int64, ProcessedSet) {
	lastBatchID := int64(-1)
	processed := ProcessedSet{}
	for _, c := range commits {
		if c.BatchID > lastBatchID {
			lastBatchID = c.BatchID
		}
		for _, key := range c.Processed {
			processed[key] = c.CommittedAt
		}
	}
	return lastBatchID, processed
}
