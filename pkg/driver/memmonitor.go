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
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"
)

// monitorMemory periodically logs the process memory profile while the
// loop runs. The transform stage can hold an entire batch resident when
// partition concurrency is low, this log is the first place that shows.
func (d *Driver) monitorMemory(ctx context.Context, log *zap.SugaredLogger) {
	ticker := time.NewTicker(d.opts.memoryLogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			heapAllocBytes.Set(float64(stats.HeapAlloc))
			heapSysBytes.Set(float64(stats.HeapSys))
			log.Infow("Memory usage",
				zap.Float64("heapAllocMB", float64(stats.HeapAlloc)/(1024*1024)),
				zap.Float64("heapSysMB", float64(stats.HeapSys)/(1024*1024)),
				zap.Float64("sysMB", float64(stats.Sys)/(1024*1024)),
				zap.Uint32("numGC", stats.NumGC),
				zap.Int("goroutines", runtime.NumGoroutine()))
		}
	}
}
