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

package protection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Protections *prometheus.CounterVec
}

// NewMetrics registers the protection metrics with the default registerer.
func NewMetrics() Metrics {
	return Metrics{
		Protections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eline_protections_total",
				Help: "Number of protection actions, by outcome.",
			},
			[]string{"outcome"},
		),
	}
}

func (m Metrics) protection(outcome string) {
	if m.Protections != nil {
		m.Protections.WithLabelValues(outcome).Inc()
	}
}
