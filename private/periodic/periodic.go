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

// Package periodic provides a mechanism to run tasks on a fixed cadence.
package periodic

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/open-eline/eline/pkg/log"
)

// Task is a task that has to be run periodically.
type Task interface {
	// Name returns the tasks name, each successive invocation is expected to
	// return the same value.
	Name() string
	// Run executes the task once, it should return within the deadline of
	// the passed context.
	Run(context.Context)
}

// Metrics reports the number of runs per event type. All fields are optional.
type Metrics struct {
	Runs     prometheus.Counter
	Triggers prometheus.Counter
}

// Runner runs a task periodically.
type Runner struct {
	task    Task
	period  time.Duration
	timeout time.Duration
	metrics Metrics

	stop    chan struct{}
	loopee  chan struct{}
	trigger chan struct{}
}

// Start creates and starts a new Runner to run the given task peridiocally.
// The timeout is used for the context timeout of each run. The timeout can be
// larger than the periodicity of the task. That means if a tasks takes a long
// time it will be immediately retriggered once done.
func Start(task Task, period, timeout time.Duration) *Runner {
	return StartWithMetrics(task, Metrics{}, period, timeout)
}

// StartWithMetrics is like Start, with run counters reported on the given
// metrics.
func StartWithMetrics(task Task, m Metrics, period, timeout time.Duration) *Runner {
	r := &Runner{
		task:    task,
		period:  period,
		timeout: timeout,
		metrics: m,
		stop:    make(chan struct{}),
		loopee:  make(chan struct{}),
		trigger: make(chan struct{}, 1),
	}
	go r.runLoop()
	return r
}

// Stop stops the periodic execution of the Runner. If the task is currently
// running, Stop blocks until the run finishes.
func (r *Runner) Stop() {
	close(r.stop)
	<-r.loopee
}

// TriggerRun triggers the task to run immediately, unless a run is already in
// progress, in which case the trigger is coalesced with it.
func (r *Runner) TriggerRun() {
	select {
	case r.trigger <- struct{}{}:
		if c := r.metrics.Triggers; c != nil {
			c.Inc()
		}
	default:
	}
}

func (r *Runner) runLoop() {
	defer close(r.loopee)
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.onTick()
		case <-r.trigger:
			r.onTick()
		}
	}
}

func (r *Runner) onTick() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	ctx = log.CtxWith(ctx, log.FromCtx(ctx).New("task", r.task.Name()))
	r.task.Run(ctx)
	if c := r.metrics.Runs; c != nil {
		c.Inc()
	}
}
