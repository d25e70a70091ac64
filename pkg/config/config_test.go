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

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SOURCE_BUCKET", "s3://my-bucket/input/")
	t.Setenv("DEST_BUCKET", "s3://my-bucket/output/")
	t.Setenv("CHECKPOINT_LOCATION", "nats://localhost:4222/ckpt")
	t.Setenv("MAX_FILES_PER_TRIGGER", "50")
	t.Setenv("PARTITION_CONCURRENCY", "1")

	c, err := Load("")
	assert.NoError(t, err)
	assert.Equal(t, "s3://my-bucket/input/", c.SourceURL)
	assert.Equal(t, "s3://my-bucket/output/", c.DestURL)
	assert.Equal(t, "nats://localhost:4222/ckpt", c.CheckpointURL)
	assert.Equal(t, 50, c.MaxFilesPerTrigger)
	assert.Equal(t, 1, c.PartitionConcurrency)
	// untouched keys keep their defaults
	assert.Equal(t, 10, c.TriggerIntervalSeconds)
	assert.Equal(t, 2470, c.MetricsPort)
	assert.True(t, c.LeaseEnabled)
	assert.False(t, c.FailOnDecodeError)
}

func TestLoadDefaultMaxFilesPerTrigger(t *testing.T) {
	t.Setenv("SOURCE_BUCKET", "file:///tmp/in")
	t.Setenv("DEST_BUCKET", "file:///tmp/out")
	t.Setenv("CHECKPOINT_LOCATION", "file:///tmp/ckpt")

	c, err := Load("")
	assert.NoError(t, err)
	assert.Equal(t, 20000, c.MaxFilesPerTrigger)
	assert.Equal(t, 4, c.PartitionConcurrency)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(`
source_bucket: file:///data/in
dest_bucket: file:///data/out
checkpoint_location: file:///data/ckpt
max_files_per_trigger: 7
fail_on_decode_error: true
`), 0644))

	c, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, "file:///data/in", c.SourceURL)
	assert.Equal(t, 7, c.MaxFilesPerTrigger)
	assert.True(t, c.FailOnDecodeError)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("SOURCE_BUCKET", "file:///tmp/in")
	t.Setenv("DEST_BUCKET", "file:///tmp/out")
	t.Setenv("CHECKPOINT_LOCATION", "file:///tmp/ckpt")
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestValidate(t *testing.T) {
	valid := Config{
		SourceURL:            "file:///in",
		DestURL:              "file:///out",
		CheckpointURL:        "file:///ckpt",
		MaxFilesPerTrigger:   1,
		PartitionConcurrency: 1,
		MetricsPort:          2470,
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing source", func(c *Config) { c.SourceURL = "" }},
		{"missing dest", func(c *Config) { c.DestURL = "" }},
		{"missing checkpoint", func(c *Config) { c.CheckpointURL = "" }},
		{"zero max files", func(c *Config) { c.MaxFilesPerTrigger = 0 }},
		{"zero concurrency", func(c *Config) { c.PartitionConcurrency = 0 }},
		{"negative interval", func(c *Config) { c.TriggerIntervalSeconds = -1 }},
		{"bad port", func(c *Config) { c.MetricsPort = 70000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			assert.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
		})
	}
}
