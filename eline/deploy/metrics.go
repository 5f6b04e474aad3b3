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

package deploy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Deploys        *prometheus.CounterVec
	Removals       prometheus.Counter
	FailoverSetups *prometheus.CounterVec
}

// NewMetrics registers the deployment metrics with the default registerer.
func NewMetrics() Metrics {
	return Metrics{
		Deploys: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eline_deploys_total",
				Help: "Number of circuit deployments, by result.",
			},
			[]string{"result"},
		),
		Removals: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "eline_removals_total",
				Help: "Number of circuit removals.",
			},
		),
		FailoverSetups: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eline_failover_setups_total",
				Help: "Number of failover path provisioning attempts, by result.",
			},
			[]string{"result"},
		),
	}
}

func (m Metrics) deploy(result string) {
	if m.Deploys != nil {
		m.Deploys.WithLabelValues(result).Inc()
	}
}

func (m Metrics) removal() {
	if m.Removals != nil {
		m.Removals.Inc()
	}
}

func (m Metrics) failoverSetup(result string) {
	if m.FailoverSetups != nil {
		m.FailoverSetups.WithLabelValues(result).Inc()
	}
}
