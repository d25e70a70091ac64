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

// Package objstore defines the object store collaborators the engine reads
// source files from and publishes batch output to.
package objstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get for a key that does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectInfo describes one immutable source object.
type ObjectInfo struct {
	// Key is the full key relative to the store root.
	Key string
	// Size in bytes.
	Size int64
	// LastModified is the store-side modification timestamp.
	LastModified time.Time
}

// ObjectStorer is the minimal surface the engine needs from an object
// store: list a prefix, read an object, publish an object.
type ObjectStorer interface {
	// List returns all objects under the given prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// Get returns the full content of the object at key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put publishes an object atomically. A concurrent reader observes
	// either nothing at the key or the complete object, never a partial
	// write. Re-putting an existing key overwrites it.
	Put(ctx context.Context, key string, data []byte) error
}
