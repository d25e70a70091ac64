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

// Package transform computes the windowed analytic over one batch.
// Records are hashed by partition key onto partitionConcurrency slot
// workers; each worker buffers its slot's records until the batch is
// fully decoded, then sorts and ranks every partition it holds.
//
// Ranking needs the entire partition resident before any of its records
// can be emitted. With partitionConcurrency=1 every record of the batch
// lands on one slot, so peak resident memory for this stage is the whole
// decoded batch. That is a property of the window computation, not an
// implementation accident.
package transform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/cespare/xxhash"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/streamproj/streambatch/pkg/batch"
	"github.com/streamproj/streambatch/pkg/codec"
	"github.com/streamproj/streambatch/pkg/shared/logging"
)

// slotChannelBufferSize is the routing channel depth per slot worker.
const slotChannelBufferSize = 64

// FetchFunc reads the full content of one source object.
type FetchFunc func(ctx context.Context, key string) ([]byte, error)

// Result is the outcome of transforming one batch.
type Result struct {
	// Records carries every windowed record of the batch. Order across
	// partitions is unspecified but deterministic for a given batch.
	Records []codec.WindowedRecord
	// DecodedRecords is the number of records successfully decoded.
	DecodedRecords int64
	// SkippedRecords is the number of malformed records skipped.
	SkippedRecords int64
	// PeakResidentPerSlot is the maximum number of records each slot
	// worker held at once.
	PeakResidentPerSlot []int64
}

// PeakResident returns the largest per-slot peak of the batch.
func (r *Result) PeakResident() int64 {
	var peak int64
	for _, p := range r.PeakResidentPerSlot {
		if p > peak {
			peak = p
		}
	}
	return peak
}

// Engine is the windowed transform engine for micro-batches.
type Engine struct {
	concurrency       int
	failOnDecodeError bool
	clock             func() time.Time
	log               *zap.SugaredLogger
}

// Option is an Engine option.
type Option func(*Engine) error

// WithPartitionConcurrency sets how many slot workers share the batch.
func WithPartitionConcurrency(n int) Option {
	return func(e *Engine) error {
		if n < 1 {
			return fmt.Errorf("partition concurrency must be >= 1, got %d", n)
		}
		e.concurrency = n
		return nil
	}
}

// WithFailOnDecodeError makes a malformed record abort the batch instead
// of being skipped and counted.
func WithFailOnDecodeError(fail bool) Option {
	return func(e *Engine) error {
		e.failOnDecodeError = fail
		return nil
	}
}

// WithClock overrides the processed-at timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) error {
		e.clock = clock
		return nil
	}
}

// NewEngine returns an Engine with the given options applied.
func NewEngine(ctx context.Context, opts ...Option) (*Engine, error) {
	e := &Engine{
		concurrency: 1,
		clock:       time.Now,
		log:         logging.FromContext(ctx),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// routedRecord carries a decoded record plus its position in batch decode
// order, the stable tie-break for equal ordering keys.
type routedRecord struct {
	rec codec.Record
	pos int64
}

// Transform decodes every file of the batch and computes each record's
// rank within its partition. Re-running it on the same batch yields
// identical rank assignments, including tie-break order.
func (e *Engine) Transform(ctx context.Context, b batch.Batch, fetch FetchFunc) (*Result, error) {
	slots := e.concurrency
	slotChs := make([]chan routedRecord, slots)
	for i := range slotChs {
		slotChs[i] = make(chan routedRecord, slotChannelBufferSize)
	}
	slotOut := make([][]codec.WindowedRecord, slots)
	slotPeak := make([]int64, slots)

	var decoded, skipped int64

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < slots; i++ {
		i := i
		g.Go(func() error {
			slotOut[i], slotPeak[i] = e.rankSlot(slotChs[i])
			return nil
		})
	}
	g.Go(func() error {
		// close-of-book for the slot workers, also on error
		defer func() {
			for _, ch := range slotChs {
				close(ch)
			}
		}()
		var err error
		decoded, skipped, err = e.routeBatch(gctx, b, fetch, slotChs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{
		DecodedRecords:      decoded,
		SkippedRecords:      skipped,
		PeakResidentPerSlot: slotPeak,
	}
	for _, out := range slotOut {
		result.Records = append(result.Records, out...)
	}
	recordsDecoded.Add(float64(decoded))
	recordsSkipped.Add(float64(skipped))
	residentPeak.Set(float64(result.PeakResident()))
	return result, nil
}

// routeBatch decodes the batch's files in planned order and routes every
// record to its slot by partition key hash. Decode position is assigned
// here, in strict decode order across the whole batch.
func (e *Engine) routeBatch(ctx context.Context, b batch.Batch, fetch FetchFunc, slotChs []chan routedRecord) (decoded, skipped int64, _ error) {
	slots := uint64(len(slotChs))
	var pos int64
	for _, file := range b.Files {
		data, err := fetch(ctx, file.Key)
		if err != nil {
			return decoded, skipped, fmt.Errorf("failed to fetch %q: %w", file.Key, err)
		}
		dec := codec.NewDecoder(bytes.NewReader(data))
		for {
			rec, err := dec.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				if errors.Is(err, codec.ErrMalformedRecord) {
					if e.failOnDecodeError {
						return decoded, skipped, fmt.Errorf("file %q: %w", file.Key, err)
					}
					skipped++
					e.log.Warnw("Skipping malformed record", zap.String("key", file.Key), zap.Error(err))
					continue
				}
				return decoded, skipped, fmt.Errorf("failed to decode %q: %w", file.Key, err)
			}
			slot := xxhash.Sum64String(rec.PartitionKey()) % slots
			select {
			case slotChs[slot] <- routedRecord{rec: rec, pos: pos}:
			case <-ctx.Done():
				return decoded, skipped, ctx.Err()
			}
			pos++
			decoded++
		}
	}
	return decoded, skipped, nil
}

// rankSlot buffers the slot's records until close-of-book, then sorts and
// ranks each partition. Nothing is emitted before the whole slot has been
// read: the window value of the last record depends on all of them.
func (e *Engine) rankSlot(ch <-chan routedRecord) ([]codec.WindowedRecord, int64) {
	groups := make(map[string][]routedRecord)
	var resident, peak int64
	for rr := range ch {
		key := rr.rec.PartitionKey()
		groups[key] = append(groups[key], rr)
		resident++
		if resident > peak {
			peak = resident
		}
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	processedAt := e.clock()
	out := make([]codec.WindowedRecord, 0, resident)
	for _, key := range keys {
		rows := groups[key]
		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].rec.Timestamp.Equal(rows[j].rec.Timestamp) {
				return rows[i].pos < rows[j].pos
			}
			return rows[i].rec.Timestamp.Before(rows[j].rec.Timestamp)
		})
		for idx, rr := range rows {
			out = append(out, codec.NewWindowedRecord(rr.rec, int64(idx+1), processedAt))
		}
	}
	return out, peak
}
