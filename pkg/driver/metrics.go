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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// batchesCommitted is used to indicate the number of committed batches
var batchesCommitted = promauto.NewCounter(prometheus.CounterOpts{
	Subsystem: "driver",
	Name:      "batches_committed_total",
	Help:      "Total number of committed batches",
})

// filesProcessed is used to indicate the number of consumed source files
var filesProcessed = promauto.NewCounter(prometheus.CounterOpts{
	Subsystem: "driver",
	Name:      "files_processed_total",
	Help:      "Total number of source files consumed",
})

// cyclesFailed is used to indicate the number of failed cycles
var cyclesFailed = promauto.NewCounter(prometheus.CounterOpts{
	Subsystem: "driver",
	Name:      "cycles_failed_total",
	Help:      "Total number of cycles that failed and were retried",
})

// lastCommittedBatch indicates the id of the last committed batch
var lastCommittedBatch = promauto.NewGauge(prometheus.GaugeOpts{
	Subsystem: "driver",
	Name:      "last_committed_batch_id",
	Help:      "Id of the last committed batch",
})

// heapAllocBytes indicates the current heap allocation
var heapAllocBytes = promauto.NewGauge(prometheus.GaugeOpts{
	Subsystem: "driver",
	Name:      "heap_alloc_bytes",
	Help:      "Current heap allocation of the process",
})

// heapSysBytes indicates the heap memory obtained from the OS
var heapSysBytes = promauto.NewGauge(prometheus.GaugeOpts{
	Subsystem: "driver",
	Name:      "heap_sys_bytes",
	Help:      "Heap memory obtained from the OS",
})
