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

// Package fs implements the object store on a local directory tree.
// Put writes to a temp file and renames, so a published object is never
// observable half-written.
package fs

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/streamproj/streambatch/pkg/objstore"
	sharedutil "github.com/streamproj/streambatch/pkg/shared/util"
)

const tmpPrefix = ".tmp-"

type store struct {
	root string
}

var _ objstore.ObjectStorer = (*store)(nil)

// NewStore returns a store rooted at dir, creating it if needed.
func NewStore(dir string) (objstore.ObjectStorer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store root %q: %w", dir, err)
	}
	return &store{root: dir}, nil
}

func (s *store) List(_ context.Context, prefix string) ([]objstore.ObjectInfo, error) {
	var objects []objstore.ObjectInfo
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tmpPrefix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, objstore.ObjectInfo{
			Key:          key,
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %q under %q: %w", prefix, s.root, err)
	}
	return objects, nil
}

func (s *store) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", objstore.ErrNotFound, key)
		}
		return nil, err
	}
	return data, nil
}

func (s *store) Put(_ context.Context, key string, data []byte) error {
	target := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	// temp file lives next to the target so the rename stays on one filesystem
	tmp := filepath.Join(filepath.Dir(target), tmpPrefix+sharedutil.RandomLowerCaseString(8))
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to publish %q: %w", key, err)
	}
	return nil
}
