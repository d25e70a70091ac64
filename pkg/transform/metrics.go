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

package transform

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// recordsDecoded is used to indicate the number of records decoded
var recordsDecoded = promauto.NewCounter(prometheus.CounterOpts{
	Subsystem: "transform",
	Name:      "records_decoded_total",
	Help:      "Total number of records decoded",
})

// recordsSkipped is used to indicate the number of malformed records skipped
var recordsSkipped = promauto.NewCounter(prometheus.CounterOpts{
	Subsystem: "transform",
	Name:      "records_skipped_total",
	Help:      "Total number of malformed records skipped",
})

// residentPeak indicates the peak resident record count of the last batch
var residentPeak = promauto.NewGauge(prometheus.GaugeOpts{
	Subsystem: "transform",
	Name:      "resident_records_peak",
	Help:      "Peak number of records held by a single slot worker during the last batch",
})
