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

package commands

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/streamproj/streambatch/pkg/batch"
	"github.com/streamproj/streambatch/pkg/checkpoint"
	ckptfs "github.com/streamproj/streambatch/pkg/checkpoint/fs"
	ckptinmem "github.com/streamproj/streambatch/pkg/checkpoint/inmem"
	"github.com/streamproj/streambatch/pkg/checkpoint/jetstream"
	"github.com/streamproj/streambatch/pkg/config"
	"github.com/streamproj/streambatch/pkg/driver"
	"github.com/streamproj/streambatch/pkg/metrics"
	"github.com/streamproj/streambatch/pkg/objstore"
	objfs "github.com/streamproj/streambatch/pkg/objstore/fs"
	objinmem "github.com/streamproj/streambatch/pkg/objstore/inmem"
	objs3 "github.com/streamproj/streambatch/pkg/objstore/s3"
	jsclient "github.com/streamproj/streambatch/pkg/shared/clients/nats"
	"github.com/streamproj/streambatch/pkg/shared/logging"
	"github.com/streamproj/streambatch/pkg/shared/signals"
	"github.com/streamproj/streambatch/pkg/sink"
	"github.com/streamproj/streambatch/pkg/source"
	"github.com/streamproj/streambatch/pkg/transform"
)

func NewRunCommand() *cobra.Command {
	var configFile string
	command := &cobra.Command{
		Use:   "run",
		Short: "Run the micro-batch driver until shutdown or halt",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := config.Load(configFile)
			if err != nil {
				return err
			}
			log := logging.NewLogger().Named("run")
			ctx := logging.WithLogger(signals.SetupSignalHandler(), log)
			return run(ctx, conf)
		},
	}
	command.Flags().StringVarP(&configFile, "config", "c", "", "Path to an optional config file")
	return command
}

func run(ctx context.Context, conf *config.Config) error {
	log := logging.FromContext(ctx)
	log.Infow("Resolved configuration",
		"source", conf.SourceURL,
		"dest", conf.DestURL,
		"checkpoint", conf.CheckpointURL,
		"maxFilesPerTrigger", conf.MaxFilesPerTrigger,
		"partitionConcurrency", conf.PartitionConcurrency)

	srcStore, err := buildObjectStore(conf.SourceURL)
	if err != nil {
		return fmt.Errorf("failed to build source store: %w", err)
	}
	destStore, err := buildObjectStore(conf.DestURL)
	if err != nil {
		return fmt.Errorf("failed to build destination store: %w", err)
	}
	ckptStore, closeCkpt, err := buildCheckpointStore(ctx, conf.CheckpointURL)
	if err != nil {
		return fmt.Errorf("failed to build checkpoint store: %w", err)
	}
	defer closeCkpt()

	ms := metrics.NewMetricsServer(conf.MetricsPort)
	shutdown, err := ms.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Warnw("Failed to shut down metrics server", "err", err)
		}
	}()

	monitor := source.NewMonitor(ctx, srcStore, "", source.WithListingCap(conf.MaxFilesPerTrigger*2))
	planner := batch.NewPlanner(conf.MaxFilesPerTrigger)
	engine, err := transform.NewEngine(ctx,
		transform.WithPartitionConcurrency(conf.PartitionConcurrency),
		transform.WithFailOnDecodeError(conf.FailOnDecodeError))
	if err != nil {
		return fmt.Errorf("failed to build transform engine: %w", err)
	}
	writer := sink.NewWriter(ctx, destStore)

	driverOpts := []driver.Option{
		driver.WithTriggerInterval(time.Duration(conf.TriggerIntervalSeconds) * time.Second),
		driver.WithLeaseEnabled(conf.LeaseEnabled),
	}
	if conf.InstanceID != "" {
		driverOpts = append(driverOpts, driver.WithInstanceID(conf.InstanceID))
	}
	d, err := driver.New(ctx, srcStore, monitor, planner, engine, writer, ckptStore, driverOpts...)
	if err != nil {
		return fmt.Errorf("failed to build driver: %w", err)
	}
	return d.Run(ctx)
}

// buildObjectStore maps a location URL to a store implementation.
// Supported schemes are s3://bucket/prefix, file:///dir and mem://name;
// a bare path is treated as a local directory.
func buildObjectStore(location string) (objstore.ObjectStorer, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("invalid store location %q: %w", location, err)
	}
	switch u.Scheme {
	case "s3":
		return objs3.NewStore(u.Host, strings.TrimPrefix(u.Path, "/"))
	case "file":
		return objfs.NewStore(u.Path)
	case "mem":
		return objinmem.NewStore(), nil
	case "":
		return objfs.NewStore(location)
	default:
		return nil, fmt.Errorf("unsupported store scheme %q in %q", u.Scheme, location)
	}
}

// buildCheckpointStore maps a checkpoint URL to a store implementation.
// nats://host:port/bucket selects a JetStream KV bucket, file:///dir or
// a bare path a local directory, mem://name an in-memory store.
func buildCheckpointStore(ctx context.Context, location string) (checkpoint.Store, func(), error) {
	noop := func() {}
	u, err := url.Parse(location)
	if err != nil {
		return nil, noop, fmt.Errorf("invalid checkpoint location %q: %w", location, err)
	}
	switch u.Scheme {
	case "nats":
		bucket := strings.Trim(u.Path, "/")
		if bucket == "" {
			return nil, noop, fmt.Errorf("checkpoint location %q is missing a KV bucket name", location)
		}
		client, err := jsclient.NewClient(ctx, fmt.Sprintf("nats://%s", u.Host))
		if err != nil {
			return nil, noop, err
		}
		s, err := jetstream.NewStore(ctx, client, bucket)
		if err != nil {
			client.Close()
			return nil, noop, err
		}
		return s, client.Close, nil
	case "file":
		s, err := ckptfs.NewStore(u.Path)
		return s, noop, err
	case "mem":
		return ckptinmem.NewStore(), noop, nil
	case "":
		s, err := ckptfs.NewStore(location)
		return s, noop, err
	default:
		return nil, noop, fmt.Errorf("unsupported checkpoint scheme %q in %q", u.Scheme, location)
	}
}
