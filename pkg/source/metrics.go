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

package source

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// sourcePolls is used to indicate the number of successful source listings
var sourcePolls = promauto.NewCounter(prometheus.CounterOpts{
	Subsystem: "source_monitor",
	Name:      "polls_total",
	Help:      "Total number of successful source polls",
})

// sourcePollErrors is used to indicate the number of failed source listings
var sourcePollErrors = promauto.NewCounter(prometheus.CounterOpts{
	Subsystem: "source_monitor",
	Name:      "poll_errors_total",
	Help:      "Total number of source poll errors",
})

// sourceCandidates indicates the candidate count of the last poll
var sourceCandidates = promauto.NewGauge(prometheus.GaugeOpts{
	Subsystem: "source_monitor",
	Name:      "candidates",
	Help:      "Number of unprocessed candidates returned by the last poll",
})
