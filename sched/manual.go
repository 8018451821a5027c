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

package sched

import (
	"sync"
	"time"
)

type armed struct {
	delay time.Duration
	task  Task
}

// Manual is a deterministic Scheduler.  Tasks never run on their own; the
// caller runs them with Step.  It is intended for tests.
type Manual struct {
	pending []armed
	mx      sync.Mutex
}

func (m *Manual) Schedule(d time.Duration, t Task) {
	m.mx.Lock()
	m.pending = append(m.pending, armed{delay: d, task: t})
	m.mx.Unlock()
}

// Pending returns the number of armed tasks.
func (m *Manual) Pending() int {
	m.mx.Lock()
	defer m.mx.Unlock()
	return len(m.pending)
}

// Delays returns the delay each armed task was scheduled with.
func (m *Manual) Delays() []time.Duration {
	m.mx.Lock()
	defer m.mx.Unlock()
	rv := make([]time.Duration, 0, len(m.pending))
	for _, a := range m.pending {
		rv = append(rv, a.delay)
	}
	return rv
}

// Step runs every task armed so far exactly once, re-arming those that ask
// for it, and returns how many ran.  Tasks armed while stepping wait for
// the next Step.
func (m *Manual) Step() int {
	m.mx.Lock()
	batch := m.pending
	m.pending = nil
	m.mx.Unlock()

	for _, a := range batch {
		if a.task.Tick() {
			m.Schedule(a.delay, a.task)
		}
	}
	return len(batch)
}
