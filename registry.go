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

package procvisor

import (
	"fmt"
	"sync"
	"time"
)

// Registry keeps supervisors by name, in the order they were added.  It
// has no opinion about when they run; that is left to its user.
type Registry struct {
	procs  map[string]*Supervisor
	order  []string
	serial int64
	mx     sync.Mutex
}

func (r *Registry) lock() {
	r.mx.Lock()
}

func (r *Registry) unlock() {
	r.mx.Unlock()
}

// Add registers a supervisor.  Names must be unique.
func (r *Registry) Add(s *Supervisor) error {
	r.lock()
	defer r.unlock()
	if _, ok := r.procs[s.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, s.Name())
	}
	r.procs[s.Name()] = s
	r.order = append(r.order, s.Name())
	r.serial++
	return nil
}

// Find returns the supervisor with the given name.
func (r *Registry) Find(name string) (*Supervisor, error) {
	r.lock()
	defer r.unlock()
	if s, ok := r.procs[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoSuchProcess, name)
}

// Supervisors returns every registered supervisor, in insertion order.
func (r *Registry) Supervisors() []*Supervisor {
	r.lock()
	defer r.unlock()
	rv := make([]*Supervisor, 0, len(r.order))
	for _, n := range r.order {
		rv = append(rv, r.procs[n])
	}
	return rv
}

// Serial changes every time the set of supervisors changes.  It is
// served as the Etag of the process list.
func (r *Registry) Serial() int64 {
	r.lock()
	defer r.unlock()
	return r.serial
}

// KillAll kills every supervisor.  It reports true only if every kill was
// confirmed.
func (r *Registry) KillAll() bool {
	ok := true
	for _, s := range r.Supervisors() {
		if !s.Kill() {
			ok = false
		}
	}
	return ok
}

func NewRegistry() *Registry {
	// Starting the serial at the current time lets clients that cache
	// notice a restarted daemon.
	return &Registry{
		procs:  make(map[string]*Supervisor),
		serial: time.Now().UnixNano(),
	}
}
