// Copyright 2025 Open E-Line Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package consistency

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Checks  *prometheus.CounterVec
	Skipped prometheus.Counter
}

// NewMetrics registers the consistency metrics with the default registerer.
func NewMetrics() Metrics {
	return Metrics{
		Checks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eline_consistency_checks_total",
				Help: "Number of per-circuit consistency outcomes, by result.",
			},
			[]string{"result"},
		),
		Skipped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "eline_consistency_skipped_total",
				Help: "Number of circuits skipped because they were busy.",
			},
		),
	}
}

func (m Metrics) result(result string) {
	if m.Checks != nil {
		m.Checks.WithLabelValues(result).Inc()
	}
}

func (m Metrics) skipped() {
	if m.Skipped != nil {
		m.Skipped.Inc()
	}
}
