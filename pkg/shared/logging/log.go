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

// Package logging provides the engine's structured logger. The logger
// travels on the context, so a component logs with whatever fields its
// caller attached (run id, batch id) without threading them explicitly.
package logging

import (
	"context"

	"go.uber.org/zap"

	sharedutil "github.com/streamproj/streambatch/pkg/shared/util"
)

// RunIDKey is the field every log line of one driver lifetime carries,
// so the cycles of a single process can be correlated across restarts
// of the same deployment.
const RunIDKey = "runID"

// NewLogger returns the base logger. STREAMBATCH_DEBUG=true switches to
// the development config with debug level enabled.
func NewLogger() *zap.SugaredLogger {
	var config zap.Config
	if sharedutil.LookupEnvBoolOr("STREAMBATCH_DEBUG", false) {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}
	config.OutputPaths = []string{"stdout"}
	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return logger.Named("streambatch").Sugar()
}

// WithRunID annotates the logger with the driver run id.
func WithRunID(logger *zap.SugaredLogger, runID string) *zap.SugaredLogger {
	return logger.With(RunIDKey, runID)
}

type loggerKey struct{}

// WithLogger returns a copy of parent context in which the
// value associated with logger key is the supplied logger.
func WithLogger(ctx context.Context, logger *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger in the context.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.SugaredLogger); ok {
		return logger
	}
	return NewLogger()
}
