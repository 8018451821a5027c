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
	"io"
	"log"
	"os"
	"time"

	"github.com/procvisor/procvisor/sched"
)

const (
	DefaultDrainInterval = time.Second
	DefaultStopTime      = 2 * time.Second
	DefaultWaitDelay     = time.Second
)

// Config is the configuration shared by supervisors.  The zero value of
// any field other than Scheduler selects the default.
type Config struct {
	// Scheduler runs the periodic drain task.  Required.
	Scheduler sched.Scheduler

	// Host resolves, probes and kills processes.  Default: DefaultHost().
	Host Host

	// Shell and ShellFlag are used to run the command line, as in
	// "/bin/sh -c <command>".
	Shell     string
	ShellFlag string

	// DrainInterval is the delay between drain ticks.
	DrainInterval time.Duration

	// StopTime is how long Kill waits after the graceful termination
	// request before checking whether the process is still present.
	StopTime time.Duration

	// WaitDelay bounds how long output is collected after the process
	// exits, for descendants still holding its streams.
	WaitDelay time.Duration

	// LogWriter receives the named logger output, with a "[name] "
	// prefix and LogFlags.  Default: os.Stderr.
	LogWriter io.Writer
	LogFlags  int

	// Console receives quiet mode progress markers.  Default: os.Stdout.
	Console io.Writer

	// LogRecords is the capacity of each supervisor's in-memory Log.
	LogRecords int

	// OnExit, if set, is called once every run has been reaped and
	// cleaned up, however the run was started.  Requested is false when
	// the process went away without a Stop or Kill.
	OnExit func(s *Supervisor, code int, requested bool)
}

// DefaultConfig returns a Config with every default filled in, using the
// given scheduler.
func DefaultConfig(s sched.Scheduler) Config {
	return Config{
		Scheduler:     s,
		Host:          DefaultHost(),
		Shell:         defaultShell,
		ShellFlag:     defaultShellFlag,
		DrainInterval: DefaultDrainInterval,
		StopTime:      DefaultStopTime,
		WaitDelay:     DefaultWaitDelay,
		LogWriter:     os.Stderr,
		LogFlags:      log.LstdFlags,
		Console:       os.Stdout,
		LogRecords:    MaxLogRecords,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig(c.Scheduler)
	if c.Host == nil {
		c.Host = d.Host
	}
	if c.Shell == "" {
		c.Shell = d.Shell
		c.ShellFlag = d.ShellFlag
	}
	if c.DrainInterval <= 0 {
		c.DrainInterval = d.DrainInterval
	}
	if c.StopTime <= 0 {
		c.StopTime = d.StopTime
	}
	if c.WaitDelay <= 0 {
		c.WaitDelay = d.WaitDelay
	}
	if c.LogWriter == nil {
		c.LogWriter = d.LogWriter
		c.LogFlags = d.LogFlags
	}
	if c.Console == nil {
		c.Console = d.Console
	}
	if c.LogRecords <= 0 {
		c.LogRecords = d.LogRecords
	}
	return c
}
