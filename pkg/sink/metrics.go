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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// sinkRecordsWritten is used to indicate the number of records written
var sinkRecordsWritten = promauto.NewCounter(prometheus.CounterOpts{
	Subsystem: "sink",
	Name:      "records_written_total",
	Help:      "Total number of records written to the destination",
})

// sinkBatchesWritten is used to indicate the number of batches published
var sinkBatchesWritten = promauto.NewCounter(prometheus.CounterOpts{
	Subsystem: "sink",
	Name:      "batches_written_total",
	Help:      "Total number of batches published to the destination",
})

// sinkWriteErrors is used to indicate the number of write errors
var sinkWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
	Subsystem: "sink",
	Name:      "write_errors_total",
	Help:      "Total number of destination write errors",
})
