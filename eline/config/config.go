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

// Package config holds the controller configuration.
package config

import (
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/open-eline/eline/eline/topology"
	"github.com/open-eline/eline/pkg/log"
	"github.com/open-eline/eline/pkg/private/serrors"
)

// Duration is a time.Duration with TOML text encoding ("30s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return serrors.Wrap("parsing duration", err, "value", string(text))
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the root configuration.
type Config struct {
	Logging  log.Config     `toml:"log,omitempty"`
	Metrics  MetricsConfig  `toml:"metrics,omitempty"`
	API      APIConfig      `toml:"api,omitempty"`
	Database DatabaseConfig `toml:"database,omitempty"`
	Eline    ElineConfig    `toml:"eline,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the address to serve /metrics on, disabled when empty.
	Addr string `toml:"addr,omitempty"`
}

// APIConfig configures the management API.
type APIConfig struct {
	// Addr is the address to serve the management API on, disabled when
	// empty.
	Addr string `toml:"addr,omitempty"`
}

// DatabaseConfig configures the circuit store.
type DatabaseConfig struct {
	// Path is the sqlite database file.
	Path string `toml:"path,omitempty"`
}

// ElineConfig configures circuit provisioning itself.
type ElineConfig struct {
	// PathfinderURL is the base URL of the path computation collaborator.
	PathfinderURL string `toml:"pathfinder_url,omitempty"`
	// FlowManagerURL is the base URL of the flow programming collaborator.
	FlowManagerURL string `toml:"flow_manager_url,omitempty"`
	// SDNTraceURL is the base URL of the trace collaborator.
	SDNTraceURL string `toml:"sdn_trace_url,omitempty"`

	// TagRangeFirst and TagRangeLast bound the service tag pool per link.
	TagRangeFirst int `toml:"tag_range_first,omitempty"`
	TagRangeLast  int `toml:"tag_range_last,omitempty"`

	// EVPLPriority and EPLPriority are the default southbound rule
	// priorities for tagged and untagged endpoint rules.
	EVPLPriority int `toml:"evpl_priority,omitempty"`
	EPLPriority  int `toml:"epl_priority,omitempty"`

	// MaxPaths bounds dynamic path discovery.
	MaxPaths int `toml:"max_paths,omitempty"`

	// ConsistencyInterval is the period of the consistency pass, which is
	// disabled when 0.
	ConsistencyInterval Duration `toml:"consistency_interval,omitempty"`
	// UpdatedGrace skips consistency checks on recently reconfigured
	// circuits.
	UpdatedGrace Duration `toml:"updated_grace,omitempty"`
	// RemovedFlowGrace skips consistency checks on circuits that recently
	// lost a flow.
	RemovedFlowGrace Duration `toml:"removed_flow_grace,omitempty"`
	// TraceTimeout bounds one bulk trace request.
	TraceTimeout Duration `toml:"trace_timeout,omitempty"`
}

// InitDefaults fills in unset values.
func (cfg *Config) InitDefaults() {
	cfg.Logging.InitDefaults()
	if cfg.Database.Path == "" {
		cfg.Database.Path = "eline.db"
	}
	e := &cfg.Eline
	if e.TagRangeFirst == 0 {
		e.TagRangeFirst = topology.DefaultTagRangeFirst
	}
	if e.TagRangeLast == 0 {
		e.TagRangeLast = topology.DefaultTagRangeLast
	}
	if e.EVPLPriority == 0 {
		e.EVPLPriority = 20000
	}
	if e.EPLPriority == 0 {
		e.EPLPriority = 10000
	}
	if e.MaxPaths == 0 {
		e.MaxPaths = 2
	}
	if e.ConsistencyInterval.Duration == 0 {
		e.ConsistencyInterval.Duration = 60 * time.Second
	}
	if e.UpdatedGrace.Duration == 0 {
		e.UpdatedGrace.Duration = 60 * time.Second
	}
	if e.RemovedFlowGrace.Duration == 0 {
		e.RemovedFlowGrace.Duration = 60 * time.Second
	}
	if e.TraceTimeout.Duration == 0 {
		e.TraceTimeout.Duration = 30 * time.Second
	}
}

// Validate checks the configuration for inconsistencies.
func (cfg *Config) Validate() error {
	if err := cfg.Logging.Validate(); err != nil {
		return err
	}
	e := &cfg.Eline
	if e.PathfinderURL == "" {
		return serrors.New("eline.pathfinder_url must be set")
	}
	if e.FlowManagerURL == "" {
		return serrors.New("eline.flow_manager_url must be set")
	}
	if e.TagRangeFirst < 1 || e.TagRangeLast > 4095 ||
		e.TagRangeFirst > e.TagRangeLast {

		return serrors.New("invalid service tag range",
			"first", e.TagRangeFirst, "last", e.TagRangeLast)
	}
	return nil
}

// Load reads, defaults and validates the configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, serrors.Wrap("reading config", err, "file", path)
	}
	var cfg Config
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return nil, serrors.Wrap("parsing config", err, "file", path)
	}
	cfg.InitDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, serrors.Wrap("validating config", err, "file", path)
	}
	return &cfg, nil
}

// Sample returns a commented sample configuration.
func Sample() string {
	var cfg Config
	cfg.InitDefaults()
	cfg.Eline.PathfinderURL = "http://localhost:8181/pathfinder"
	cfg.Eline.FlowManagerURL = "http://localhost:8181/flow_manager"
	cfg.Eline.SDNTraceURL = "http://localhost:8181/sdntrace_cp"
	cfg.Metrics.Addr = "127.0.0.1:30452"
	cfg.API.Addr = "127.0.0.1:8080"
	out, err := toml.Marshal(&cfg)
	if err != nil {
		// The static sample config always marshals.
		panic(err)
	}
	return string(out)
}
