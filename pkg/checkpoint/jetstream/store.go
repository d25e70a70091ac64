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

// Package jetstream implements the checkpoint store on a NATS JetStream
// KV bucket. A commit is one KV put, which JetStream applies atomically;
// the lease uses the bucket's create (put-if-absent) semantics.
package jetstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/streamproj/streambatch/pkg/checkpoint"
	jsclient "github.com/streamproj/streambatch/pkg/shared/clients/nats"
	"github.com/streamproj/streambatch/pkg/shared/logging"
)

type store struct {
	kv     nats.KeyValue
	bucket string
	log    *zap.SugaredLogger
}

var _ checkpoint.Store = (*store)(nil)

// NewStore binds the checkpoint store to the named KV bucket, creating
// the bucket when missing. The client connection stays owned by the
// caller.
func NewStore(ctx context.Context, client *jsclient.Client, bucket string) (checkpoint.Store, error) {
	kv, err := client.CreateOrBindKVStore(bucket)
	if err != nil {
		return nil, err
	}
	return &store{
		kv:     kv,
		bucket: bucket,
		log:    logging.FromContext(ctx).With("bucket", bucket),
	}, nil
}

func (s *store) Commit(_ context.Context, batchID int64, processed []string) error {
	data, err := checkpoint.MarshalCommit(&checkpoint.Commit{
		BatchID:     batchID,
		Processed:   processed,
		CommittedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", checkpoint.ErrCommitFailed, err)
	}
	if _, err := s.kv.Put(checkpoint.CommitKey(batchID), data); err != nil {
		return fmt.Errorf("%w: %v", checkpoint.ErrCommitFailed, err)
	}
	return nil
}

func (s *store) Load(_ context.Context) (int64, checkpoint.ProcessedSet, error) {
	keys, err := s.kv.Keys()
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return -1, checkpoint.ProcessedSet{}, nil
		}
		return -1, nil, fmt.Errorf("failed to list bucket %q: %w", s.bucket, err)
	}
	var commits []*checkpoint.Commit
	for _, key := range keys {
		if !checkpoint.IsCommitKey(key) {
			continue
		}
		entry, err := s.kv.Get(key)
		if err != nil {
			return -1, nil, fmt.Errorf("failed to read commit %q: %w", key, err)
		}
		c, err := checkpoint.UnmarshalCommit(entry.Value())
		if err != nil {
			return -1, nil, fmt.Errorf("commit %q: %w", key, err)
		}
		commits = append(commits, c)
	}
	lastBatchID, processed := checkpoint.Replay(commits)
	return lastBatchID, processed, nil
}

func (s *store) AcquireLease(_ context.Context, instanceID string) error {
	_, err := s.kv.Create(checkpoint.LeaseKey, []byte(instanceID))
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrKeyExists) {
		return err
	}
	entry, err := s.kv.Get(checkpoint.LeaseKey)
	if err != nil {
		return err
	}
	if string(entry.Value()) == instanceID {
		return nil
	}
	return fmt.Errorf("%w: held by %q", checkpoint.ErrLeaseHeld, string(entry.Value()))
}

func (s *store) ReleaseLease(_ context.Context, instanceID string) error {
	entry, err := s.kv.Get(checkpoint.LeaseKey)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return nil
		}
		return err
	}
	if string(entry.Value()) != instanceID {
		return nil
	}
	return s.kv.Delete(checkpoint.LeaseKey)
}

func (s *store) Close() error {
	return nil
}
