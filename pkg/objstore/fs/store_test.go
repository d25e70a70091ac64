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

package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/streamproj/streambatch/pkg/objstore"
)

func TestPutGetList(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(t.TempDir())
	assert.NoError(t, err)

	assert.NoError(t, s.Put(ctx, "input/a.json", []byte("one")))
	assert.NoError(t, s.Put(ctx, "input/nested/b.json", []byte("two")))
	assert.NoError(t, s.Put(ctx, "other/c.json", []byte("three")))

	data, err := s.Get(ctx, "input/nested/b.json")
	assert.NoError(t, err)
	assert.Equal(t, []byte("two"), data)

	listing, err := s.List(ctx, "input/")
	assert.NoError(t, err)
	assert.Len(t, listing, 2)
	keys := []string{listing[0].Key, listing[1].Key}
	assert.Contains(t, keys, "input/a.json")
	assert.Contains(t, keys, "input/nested/b.json")
	for _, obj := range listing {
		assert.Greater(t, obj.Size, int64(0))
		assert.False(t, obj.LastModified.IsZero())
	}

	all, err := s.List(ctx, "")
	assert.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGetNotFound(t *testing.T) {
	s, err := NewStore(t.TempDir())
	assert.NoError(t, err)
	_, err = s.Get(context.Background(), "missing.json")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, objstore.ErrNotFound))
}

func TestPutOverwrite(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(t.TempDir())
	assert.NoError(t, err)

	assert.NoError(t, s.Put(ctx, "a.json", []byte("first")))
	assert.NoError(t, s.Put(ctx, "a.json", []byte("second")))
	data, err := s.Get(ctx, "a.json")
	assert.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
}

func TestListSkipsTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewStore(dir)
	assert.NoError(t, err)

	assert.NoError(t, s.Put(ctx, "a.json", []byte("one")))
	// a crashed writer leaves its temp file behind
	assert.NoError(t, os.WriteFile(filepath.Join(dir, ".tmp-leftover"), []byte("junk"), 0644))

	listing, err := s.List(ctx, "")
	assert.NoError(t, err)
	assert.Len(t, listing, 1)
	assert.Equal(t, "a.json", listing[0].Key)
}
