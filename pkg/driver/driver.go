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

// Package driver runs the micro-batch control loop:
// poll, plan, transform, write, commit, sleep, repeat. It is the only
// component holding the authoritative notion of current progress, and
// the only one allowed to halt the process.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/streamproj/streambatch/pkg/batch"
	"github.com/streamproj/streambatch/pkg/checkpoint"
	"github.com/streamproj/streambatch/pkg/objstore"
	"github.com/streamproj/streambatch/pkg/shared/logging"
	"github.com/streamproj/streambatch/pkg/sink"
	"github.com/streamproj/streambatch/pkg/source"
	"github.com/streamproj/streambatch/pkg/transform"
)

// ErrHalted is returned by Run when a bounded write or commit retry is
// exhausted. Continuing without a committed checkpoint would risk silent
// progress loss on the next crash, so the process must stop and be
// restarted by external supervision.
var ErrHalted = errors.New("driver halted")

// State is the driver's position in the cycle state machine.
type State string

const (
	StateIdle         State = "IDLE"
	StateRecovering   State = "RECOVERING"
	StatePolling      State = "POLLING"
	StatePlanning     State = "PLANNING"
	StateTransforming State = "TRANSFORMING"
	StateWriting      State = "WRITING"
	StateCommitting   State = "COMMITTING"
	StateBackoff      State = "BACKOFF"
	StateHalted       State = "HALTED"
)

// Driver owns the micro-batch loop and its recovery.
type Driver struct {
	src     objstore.ObjectStorer
	monitor *source.Monitor
	planner *batch.Planner
	engine  *transform.Engine
	writer  *sink.Writer
	ckpt    checkpoint.Store
	opts    *options
	log     *zap.SugaredLogger

	mu          sync.RWMutex
	state       State
	lastBatchID int64
	processed   checkpoint.ProcessedSet
}

// New returns a Driver wired to the given collaborators.
func New(ctx context.Context, src objstore.ObjectStorer, monitor *source.Monitor, planner *batch.Planner,
	engine *transform.Engine, writer *sink.Writer, ckpt checkpoint.Store, opts ...Option) (*Driver, error) {
	options := defaultOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	return &Driver{
		src:         src,
		monitor:     monitor,
		planner:     planner,
		engine:      engine,
		writer:      writer,
		ckpt:        ckpt,
		opts:        options,
		log:         logging.FromContext(ctx),
		state:       StateIdle,
		lastBatchID: -1,
	}, nil
}

// State returns the driver's current state.
func (d *Driver) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// LastBatchID returns the id of the last committed batch, -1 when none.
func (d *Driver) LastBatchID() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastBatchID
}

func (d *Driver) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// Run executes the loop until ctx is cancelled (clean shutdown, returns
// nil) or the driver halts (returns an ErrHalted wrapped error). It
// starts by loading the checkpoint; no other component may infer
// progress independently.
func (d *Driver) Run(ctx context.Context) error {
	runID := uuid.New().String()
	log := logging.WithRunID(d.log, runID)
	log.Infow("Starting micro-batch driver",
		zap.Duration("triggerInterval", d.opts.triggerInterval),
		zap.Bool("leaseEnabled", d.opts.leaseEnabled))

	if d.opts.leaseEnabled {
		if err := d.ckpt.AcquireLease(ctx, d.opts.instanceID); err != nil {
			return fmt.Errorf("failed to acquire single-writer lease for %q: %w", d.opts.instanceID, err)
		}
		defer func() {
			if err := d.ckpt.ReleaseLease(context.Background(), d.opts.instanceID); err != nil {
				log.Warnw("Failed to release lease", zap.Error(err))
			}
		}()
	}

	d.setState(StateRecovering)
	lastBatchID, processed, err := d.ckpt.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	d.mu.Lock()
	d.lastBatchID = lastBatchID
	d.processed = processed
	d.mu.Unlock()
	log.Infow("Recovered checkpoint state",
		zap.Int64("lastBatchID", lastBatchID),
		zap.Int("processedFiles", len(processed)))

	d.monitor.LogInventory(ctx)

	var wg sync.WaitGroup
	if d.opts.memoryLogInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.monitorMemory(ctx, log)
		}()
	}
	defer wg.Wait()

	cycleBackoff := d.opts.cycleBackoff
	for {
		select {
		case <-ctx.Done():
			d.setState(StateIdle)
			log.Info("Shutdown signal received, stopping driver")
			return nil
		default:
		}

		worked, err := d.runCycle(ctx, log)
		if err != nil {
			if ctx.Err() != nil {
				// aborted mid-step by shutdown; nothing was half-committed
				log.Info("Cycle aborted by shutdown")
				return nil
			}
			if errors.Is(err, ErrHalted) {
				d.setState(StateHalted)
				log.Errorw("Driver halted", zap.Error(err))
				return err
			}
			d.setState(StateBackoff)
			cyclesFailed.Inc()
			step := cycleBackoff.Step()
			log.Errorw("Cycle failed, backing off", zap.Duration("backoff", step), zap.Error(err))
			if !d.sleep(ctx, step) {
				return nil
			}
			continue
		}
		// transient trouble is over once a cycle completes
		cycleBackoff = d.opts.cycleBackoff

		d.setState(StateIdle)
		if !worked {
			log.Debugw("Query idle, no new files")
		}
		if !d.sleep(ctx, d.opts.triggerInterval) {
			log.Info("Shutdown signal received, stopping driver")
			return nil
		}
	}
}

// runCycle runs one poll-to-commit sequence. It reports whether a batch
// was processed. Errors wrapped with ErrHalted are process-fatal, all
// others are transient and retried by the caller after a backoff.
func (d *Driver) runCycle(ctx context.Context, log *zap.SugaredLogger) (bool, error) {
	cycleStart := time.Now()

	d.setState(StatePolling)
	candidates, err := d.monitor.Poll(ctx, d.processed)
	if err != nil {
		return false, err
	}

	d.setState(StatePlanning)
	b := d.planner.Plan(d.lastBatchID+1, candidates)
	if b.IsEmpty() {
		return false, nil
	}
	log.Infow("Planned batch",
		zap.Int64("batchID", b.ID),
		zap.Int("files", len(b.Files)),
		zap.Strings("keys", b.Keys()))

	d.setState(StateTransforming)
	result, err := d.engine.Transform(ctx, b, d.src.Get)
	if err != nil {
		return false, fmt.Errorf("transform of batch %d failed: %w", b.ID, err)
	}

	d.setState(StateWriting)
	if err := d.retryBounded(ctx, log, d.opts.publishBackoff, "write", func() error {
		return d.writer.Write(ctx, b.ID, result.Records)
	}); err != nil {
		return false, fmt.Errorf("%w: write of batch %d: %v", ErrHalted, b.ID, err)
	}

	d.setState(StateCommitting)
	if err := d.retryBounded(ctx, log, d.opts.publishBackoff, "commit", func() error {
		return d.ckpt.Commit(ctx, b.ID, b.Keys())
	}); err != nil {
		return false, fmt.Errorf("%w: commit of batch %d: %v", ErrHalted, b.ID, err)
	}

	committedAt := time.Now().UTC()
	d.mu.Lock()
	d.lastBatchID = b.ID
	for _, key := range b.Keys() {
		d.processed[key] = committedAt
	}
	d.mu.Unlock()

	elapsed := time.Since(cycleStart)
	rate := 0.0
	if elapsed.Seconds() > 0 {
		rate = float64(result.DecodedRecords) / elapsed.Seconds()
	}
	log.Infow("Batch committed",
		zap.Int64("batchID", b.ID),
		zap.Int("inputFiles", len(b.Files)),
		zap.Int64("inputRecords", result.DecodedRecords),
		zap.Int64("skippedRecords", result.SkippedRecords),
		zap.Int64("peakResidentRecords", result.PeakResident()),
		zap.Float64("recordsPerSecond", rate),
		zap.Duration("elapsed", elapsed))
	batchesCommitted.Inc()
	filesProcessed.Add(float64(len(b.Files)))
	lastCommittedBatch.Set(float64(b.ID))
	return true, nil
}

// retryBounded runs op under the bounded publish backoff. When ctx is
// cancelled it stops immediately; when the retries are exhausted it
// returns the last error.
func (d *Driver) retryBounded(ctx context.Context, log *zap.SugaredLogger, backoff wait.Backoff, name string, op func() error) error {
	var lastErr error
	err := wait.ExponentialBackoff(backoff, func() (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if lastErr = op(); lastErr != nil {
			log.Warnw("Retryable step failed", zap.String("step", name), zap.Error(lastErr))
			return false, nil
		}
		return true, nil
	})
	if err == nil {
		return nil
	}
	if lastErr != nil && wait.Interrupted(err) {
		return lastErr
	}
	return err
}

// sleep waits for the given duration, returning false when interrupted
// by shutdown. This is the loop's only intentional suspension point.
func (d *Driver) sleep(ctx context.Context, duration time.Duration) bool {
	if duration <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(duration)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
