// Copyright 2026 The Procvisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sched provides the scheduling facility shared by supervisors:
// delayed, self re-arming tasks executed on a bounded pool of goroutines.
package sched

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Task is a unit of periodic work.  Tick runs the work once and reports
// whether the task wants to run again after the same delay.
type Task interface {
	Tick() bool
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc func() bool

func (f TaskFunc) Tick() bool {
	return f()
}

// Scheduler arms a task to run once after a delay.  A task that returns
// true from Tick is armed again with the same delay.
type Scheduler interface {
	Schedule(d time.Duration, t Task)
}

// Pool is a Scheduler backed by timers, with at most a fixed number of
// ticks executing concurrently.  A single Pool is meant to be shared by
// every supervisor in a program.
type Pool struct {
	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	timers map[*time.Timer]bool
	closed bool
	mx     sync.Mutex
	wg     sync.WaitGroup
}

// NewPool returns a Pool running at most workers ticks at once.  Zero or
// less selects runtime.NumCPU().
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		sem:    semaphore.NewWeighted(int64(workers)),
		ctx:    ctx,
		cancel: cancel,
		timers: make(map[*time.Timer]bool),
	}
}

// Schedule arms t to run after d.  It is a no-op once the pool is closed.
func (p *Pool) Schedule(d time.Duration, t Task) {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.closed {
		return
	}
	var tm *time.Timer
	p.wg.Add(1)
	tm = time.AfterFunc(d, func() {
		// Schedule holds p.mx until tm is assigned and recorded.
		p.mx.Lock()
		delete(p.timers, tm)
		p.mx.Unlock()
		p.fire(d, t)
	})
	p.timers[tm] = true
}

func (p *Pool) fire(d time.Duration, t Task) {
	defer p.wg.Done()

	if e := p.sem.Acquire(p.ctx, 1); e != nil {
		// closed while waiting for a worker
		return
	}
	again := t.Tick()
	p.sem.Release(1)

	if again {
		p.Schedule(d, t)
	}
}

// Pending returns the number of armed tasks that have not fired yet.
func (p *Pool) Pending() int {
	p.mx.Lock()
	defer p.mx.Unlock()
	return len(p.timers)
}

// Close disarms every pending task, waits for running ticks to finish,
// and stops further scheduling.
func (p *Pool) Close() {
	p.mx.Lock()
	if p.closed {
		p.mx.Unlock()
		return
	}
	p.closed = true
	for tm := range p.timers {
		if tm.Stop() {
			p.wg.Done()
		}
		delete(p.timers, tm)
	}
	p.mx.Unlock()

	p.cancel()
	p.wg.Wait()
}
