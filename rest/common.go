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

// Package rest exposes a Registry of supervisors over HTTP, and provides
// a client for it.
package rest

import (
	"github.com/procvisor/procvisor"
)

const (
	mimeJson = "application/json; charset=UTF-8"
)

// ProcInfo describes one supervisor.
type ProcInfo struct {
	Name     string `json:"name"`
	Command  string `json:"command"`
	Running  bool   `json:"running"`
	On       bool   `json:"on"`
	Quiet    bool   `json:"quiet"`
	PID      string `json:"pid"`
	RunID    string `json:"runId"`
	Buffered int    `json:"buffered"`
}

// LogInfo carries log records newer than the id a client asked about.
// Id is the id to ask about next time.
type LogInfo struct {
	Id      int64                 `json:"id,string"`
	Records []procvisor.LogRecord `json:"records"`
}

type KillResult struct {
	Killed bool `json:"killed"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

func procInfo(s *procvisor.Supervisor) *ProcInfo {
	return &ProcInfo{
		Name:     s.Name(),
		Command:  s.Command(),
		Running:  s.Running(),
		On:       s.IsOn(),
		Quiet:    s.Quiet(),
		PID:      s.PID(),
		RunID:    s.RunID(),
		Buffered: len(s.Buffer()),
	}
}
