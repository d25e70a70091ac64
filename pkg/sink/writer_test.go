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

package sink

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"

	"github.com/streamproj/streambatch/pkg/codec"
	"github.com/streamproj/streambatch/pkg/objstore/inmem"
)

func windowed(id, name string, ts time.Time, rank int64) codec.WindowedRecord {
	return codec.NewWindowedRecord(codec.Record{ID: id, Name: name, Value: 1, Timestamp: ts}, rank, ts)
}

func TestWriteLayout(t *testing.T) {
	ctx := context.Background()
	store := inmem.NewStore()
	w := NewWriter(ctx, store)

	day1 := time.Date(2024, 3, 7, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 8, 9, 0, 0, 0, time.UTC)
	records := []codec.WindowedRecord{
		windowed("r1", "alpha", day1, 1),
		windowed("r2", "alpha", day1, 2),
		windowed("r3", "beta", day2, 1),
	}
	assert.NoError(t, w.Write(ctx, 0, records))

	keys := store.Keys()
	assert.Equal(t, []string{
		"batch-00000000000000000000/manifest.json",
		"batch-00000000000000000000/year=2024/month=03/day=07/part-0000.json",
		"batch-00000000000000000000/year=2024/month=03/day=08/part-0000.json",
	}, keys)

	raw, err := store.Get(ctx, "batch-00000000000000000000/manifest.json")
	assert.NoError(t, err)
	var m Manifest
	assert.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, int64(0), m.BatchID)
	assert.Equal(t, int64(3), m.RecordCount)
	assert.Len(t, m.Files, 2)
	assert.Equal(t, int64(2), m.Files[0].Records)
	assert.Equal(t, int64(1), m.Files[1].Records)

	data, err := store.Get(ctx, "batch-00000000000000000000/year=2024/month=03/day=07/part-0000.json")
	assert.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"id":"r1"`)
	assert.Contains(t, lines[0], `"rank":1`)
	assert.Contains(t, lines[1], `"rank":2`)
}

func TestWriteIdempotentRetry(t *testing.T) {
	ctx := context.Background()
	store := inmem.NewStore()
	w := NewWriter(ctx, store)

	ts := time.Date(2024, 3, 7, 9, 0, 0, 0, time.UTC)
	records := []codec.WindowedRecord{windowed("r1", "alpha", ts, 1)}

	assert.NoError(t, w.Write(ctx, 5, records))
	first, err := store.Get(ctx, "batch-00000000000000000005/year=2024/month=03/day=07/part-0000.json")
	assert.NoError(t, err)

	// a retried write of the same batch overwrites its own output
	assert.NoError(t, w.Write(ctx, 5, records))
	second, err := store.Get(ctx, "batch-00000000000000000005/year=2024/month=03/day=07/part-0000.json")
	assert.NoError(t, err)
	assert.True(t, bytes.Equal(first, second))
	assert.Len(t, store.Keys(), 2)
}

func TestWriteEmptyBatch(t *testing.T) {
	ctx := context.Background()
	store := inmem.NewStore()
	w := NewWriter(ctx, store)

	assert.NoError(t, w.Write(ctx, 0, nil))
	// even an empty batch publishes its manifest
	keys := store.Keys()
	assert.Equal(t, []string{"batch-00000000000000000000/manifest.json"}, keys)
}
