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

// Package fs implements the checkpoint store on a local directory. One
// file per commit, written to a temp name and renamed, so a commit is
// either fully on disk or absent.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/streamproj/streambatch/pkg/checkpoint"
	sharedutil "github.com/streamproj/streambatch/pkg/shared/util"
)

type store struct {
	dir string
}

var _ checkpoint.Store = (*store)(nil)

// NewStore returns a checkpoint store rooted at dir, creating it if needed.
func NewStore(dir string) (checkpoint.Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint dir %q: %w", dir, err)
	}
	return &store{dir: dir}, nil
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
	target := filepath.Join(s.dir, checkpoint.CommitKey(batchID)+".json")
	tmp := filepath.Join(s.dir, ".tmp-"+sharedutil.RandomLowerCaseString(8))
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", checkpoint.ErrCommitFailed, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", checkpoint.ErrCommitFailed, err)
	}
	return nil
}

func (s *store) Load(_ context.Context) (int64, checkpoint.ProcessedSet, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return -1, nil, fmt.Errorf("failed to read checkpoint dir %q: %w", s.dir, err)
	}
	var commits []*checkpoint.Commit
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !checkpoint.IsCommitKey(name) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return -1, nil, err
		}
		c, err := checkpoint.UnmarshalCommit(data)
		if err != nil {
			return -1, nil, fmt.Errorf("commit file %q: %w", name, err)
		}
		commits = append(commits, c)
	}
	lastBatchID, processed := checkpoint.Replay(commits)
	return lastBatchID, processed, nil
}

func (s *store) AcquireLease(_ context.Context, instanceID string) error {
	leasePath := filepath.Join(s.dir, checkpoint.LeaseKey)
	f, err := os.OpenFile(leasePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err == nil {
		_, werr := f.WriteString(instanceID)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		return werr
	}
	if !os.IsExist(err) {
		return err
	}
	holder, err := os.ReadFile(leasePath)
	if err != nil {
		return err
	}
	if string(holder) == instanceID {
		return nil
	}
	return fmt.Errorf("%w: held by %q", checkpoint.ErrLeaseHeld, string(holder))
}

func (s *store) ReleaseLease(_ context.Context, instanceID string) error {
	leasePath := filepath.Join(s.dir, checkpoint.LeaseKey)
	holder, err := os.ReadFile(leasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if string(holder) != instanceID {
		return nil
	}
	return os.Remove(leasePath)
}

func (s *store) Close() error {
	return nil
}
