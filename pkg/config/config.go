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

// Package config resolves the runtime configuration from the environment
// and an optional config file. Validation failures are fatal at startup
// and never retried.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// ErrInvalid wraps configuration validation failures.
var ErrInvalid = errors.New("invalid configuration")

// Config is the engine's configuration surface.
type Config struct {
	// SourceURL is the location polled for input files,
	// e.g. s3://bucket/input/ or file:///data/input
	SourceURL string
	// DestURL is the location batch output is published to.
	DestURL string
	// CheckpointURL is the durable progress store,
	// e.g. nats://host:4222/bucket or file:///data/checkpoint
	CheckpointURL string
	// MaxFilesPerTrigger caps the files of one batch. Higher means more
	// throughput and more peak memory.
	MaxFilesPerTrigger int
	// PartitionConcurrency is the number of transform slot workers. At 1
	// the whole batch must be resident to compute the window.
	PartitionConcurrency int
	// TriggerIntervalSeconds is the sleep between cycles.
	TriggerIntervalSeconds int
	// FailOnDecodeError aborts a batch on the first malformed record.
	FailOnDecodeError bool
	// MetricsPort is the metrics/health HTTP port.
	MetricsPort int
	// InstanceID is the single-writer lease identity, defaults to the
	// hostname in the driver when empty.
	InstanceID string
	// LeaseEnabled toggles the advisory single-writer lease.
	LeaseEnabled bool
}

// Load reads the configuration. Environment variables take the original
// deployment's names (SOURCE_BUCKET, DEST_BUCKET, CHECKPOINT_LOCATION,
// MAX_FILES_PER_TRIGGER, ...); a config file can set the same keys.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetDefault("source_bucket", "")
	v.SetDefault("dest_bucket", "")
	v.SetDefault("checkpoint_location", "")
	v.SetDefault("max_files_per_trigger", 20000)
	v.SetDefault("partition_concurrency", 4)
	v.SetDefault("trigger_interval_seconds", 10)
	v.SetDefault("fail_on_decode_error", false)
	v.SetDefault("metrics_port", 2470)
	v.SetDefault("instance_id", "")
	v.SetDefault("single_writer_lease", true)
	v.AutomaticEnv()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: failed to read config file %q: %v", ErrInvalid, configFile, err)
		}
	}
	c := &Config{
		SourceURL:              v.GetString("source_bucket"),
		DestURL:                v.GetString("dest_bucket"),
		CheckpointURL:          v.GetString("checkpoint_location"),
		MaxFilesPerTrigger:     v.GetInt("max_files_per_trigger"),
		PartitionConcurrency:   v.GetInt("partition_concurrency"),
		TriggerIntervalSeconds: v.GetInt("trigger_interval_seconds"),
		FailOnDecodeError:      v.GetBool("fail_on_decode_error"),
		MetricsPort:            v.GetInt("metrics_port"),
		InstanceID:             v.GetString("instance_id"),
		LeaseEnabled:           v.GetBool("single_writer_lease"),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	if c.SourceURL == "" {
		return fmt.Errorf("%w: source location is required (SOURCE_BUCKET)", ErrInvalid)
	}
	if c.DestURL == "" {
		return fmt.Errorf("%w: destination location is required (DEST_BUCKET)", ErrInvalid)
	}
	if c.CheckpointURL == "" {
		return fmt.Errorf("%w: checkpoint location is required (CHECKPOINT_LOCATION)", ErrInvalid)
	}
	if c.MaxFilesPerTrigger < 1 {
		return fmt.Errorf("%w: max files per trigger must be >= 1, got %d", ErrInvalid, c.MaxFilesPerTrigger)
	}
	if c.PartitionConcurrency < 1 {
		return fmt.Errorf("%w: partition concurrency must be >= 1, got %d", ErrInvalid, c.PartitionConcurrency)
	}
	if c.TriggerIntervalSeconds < 0 {
		return fmt.Errorf("%w: trigger interval must be >= 0, got %d", ErrInvalid, c.TriggerIntervalSeconds)
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("%w: metrics port must be in [0, 65535], got %d", ErrInvalid, c.MetricsPort)
	}
	return nil
}
