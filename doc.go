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

// Package procvisor supervises a single external operating system process
// on behalf of a larger orchestrator.  A Supervisor is built from a
// definition line of the form "<name> : <command>".  It launches the command,
// drains its standard output and standard error into a named logger (or,
// in quiet mode, into a buffer that can be dumped on demand), and offers a
// verified kill that falls back to forceful signalling when a graceful
// termination request does not take effect.
//
// Draining is performed by a periodic task run on a shared scheduling
// facility (see the sched package), which is injected through Config so
// that many supervisors share one bounded pool of workers.
//
// Deciding which processes to run, and in which order, is left to the
// caller.  The Registry type is a convenience for callers that keep several
// supervisors by name.
package procvisor
