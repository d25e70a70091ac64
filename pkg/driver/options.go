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

package driver

import (
	"fmt"
	"os"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	sharedutil "github.com/streamproj/streambatch/pkg/shared/util"
)

// Options for the micro-batch loop
type options struct {
	// triggerInterval is the poll-sleep between cycles
	triggerInterval time.Duration
	// cycleBackoff is the wait sequence after a transient cycle failure
	cycleBackoff wait.Backoff
	// publishBackoff bounds write and commit retries; exhausting it halts
	publishBackoff wait.Backoff
	// leaseEnabled guards the advisory single-writer lease
	leaseEnabled bool
	// instanceID identifies this driver for the lease
	instanceID string
	// memoryLogInterval is the period of the memory usage log, 0 disables
	memoryLogInterval time.Duration
}

type Option func(*options) error

func defaultOptions() *options {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = sharedutil.RandomLowerCaseString(8)
	}
	return &options{
		triggerInterval:   10 * time.Second,
		cycleBackoff:      sharedutil.DefaultRetryBackoff,
		publishBackoff:    sharedutil.DefaultPublishBackoff,
		leaseEnabled:      true,
		instanceID:        hostname,
		memoryLogInterval: 5 * time.Second,
	}
}

// WithTriggerInterval sets the sleep between cycles.
func WithTriggerInterval(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return fmt.Errorf("trigger interval must be >= 0, got %v", d)
		}
		o.triggerInterval = d
		return nil
	}
}

// WithCycleBackoff sets the backoff for transient cycle failures.
func WithCycleBackoff(b wait.Backoff) Option {
	return func(o *options) error {
		o.cycleBackoff = b
		return nil
	}
}

// WithPublishBackoff sets the bounded backoff for write and commit.
func WithPublishBackoff(b wait.Backoff) Option {
	return func(o *options) error {
		o.publishBackoff = b
		return nil
	}
}

// WithLeaseEnabled toggles the advisory single-writer lease.
func WithLeaseEnabled(enabled bool) Option {
	return func(o *options) error {
		o.leaseEnabled = enabled
		return nil
	}
}

// WithInstanceID sets the lease identity. It should be stable across
// restarts of the same deployment so a restarted process can reclaim
// its own lease.
func WithInstanceID(id string) Option {
	return func(o *options) error {
		if id == "" {
			return fmt.Errorf("instance id must not be empty")
		}
		o.instanceID = id
		return nil
	}
}

// WithMemoryLogInterval sets the period of the memory usage log. Zero
// disables the monitor.
func WithMemoryLogInterval(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return fmt.Errorf("memory log interval must be >= 0, got %v", d)
		}
		o.memoryLogInterval = d
		return nil
	}
}
