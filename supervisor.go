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
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	// QuietMarker is the first line of a quiet supervisor's buffer.
	QuietMarker = "quiet mode enabled."

	// UnsupportedPID is reported by PID when the platform could not
	// identify the process.
	UnsupportedPID = "[unsupported on this platform]"
)

// Definition is a parsed "<name> : <command>" line.
type Definition struct {
	Name    string
	Command string
}

// Parse splits a definition line on its first colon.  Both the name and
// the command must be non-empty once surrounding white space is removed.
func Parse(line string) (Definition, error) {
	pieces := strings.SplitN(line, ":", 2)
	if len(pieces) < 2 {
		return Definition{}, fmt.Errorf("%w: %q", ErrMalformed, line)
	}
	d := Definition{
		Name:    strings.TrimSpace(pieces[0]),
		Command: strings.TrimSpace(pieces[1]),
	}
	if d.Name == "" || d.Command == "" {
		return Definition{}, fmt.Errorf("%w: %q", ErrMalformed, line)
	}
	return d, nil
}

// run is one started instance of the command.  A new run is created by
// every successful Start.
type run struct {
	id       string
	cmd      *exec.Cmd
	pid      int
	pidOK    bool
	stdout   lineBuffer
	stderr   lineBuffer
	exited   chan struct{} // closed once cmd.Wait returned
	released chan struct{} // closed once post-exit handling is done
	code     int
	err      error
}

func (r *run) pidText() string {
	if !r.pidOK {
		return UnsupportedPID
	}
	return strconv.Itoa(r.pid)
}

// Supervisor owns the lifecycle of one external process.  A Supervisor
// may be started again once its previous run has been cleaned up.
//
// All methods are safe for concurrent use.  Await is the only method that
// blocks for the life of the process.
type Supervisor struct {
	name    string
	command string
	quiet   bool
	cfg     Config
	on      atomic.Bool
	logger  *log.Logger
	mlog    *MultiLogger
	log     *Log

	cur    *run
	last   *run // most recently started, kept after release for Await
	buffer []string
	mx     sync.Mutex

	cleanMx sync.Mutex // serializes cleanup
	pipeMx  sync.Mutex // serializes line delivery, keeping stream order
}

// New constructs a Supervisor from a definition line.  In quiet mode the
// output of the process is buffered, rather than logged, until DumpBuffer
// is called.
func New(line string, cfg Config, quiet bool) (*Supervisor, error) {
	d, e := Parse(line)
	if e != nil {
		return nil, e
	}
	if cfg.Scheduler == nil {
		return nil, ErrNoScheduler
	}
	cfg = cfg.withDefaults()

	s := &Supervisor{
		name:    d.Name,
		command: d.Command,
		quiet:   quiet,
		cfg:     cfg,
	}
	s.log = NewLog(cfg.LogRecords)
	s.mlog = NewMultiLogger(
		log.New(cfg.LogWriter, "["+s.name+"] ", cfg.LogFlags),
		log.New(s.log, "", 0))
	s.logger = s.mlog.Logger()
	if quiet {
		s.buffer = []string{QuietMarker}
	}
	return s, nil
}

// MustNew is like New, but a bad definition is a fatal configuration
// error: the problem is reported and the program exits.
func MustNew(line string, cfg Config, quiet bool) *Supervisor {
	s, e := New(line, cfg, quiet)
	if errors.Is(e, ErrMalformed) {
		log.Fatalf("process definition is malformed:\n --> %s", line)
	} else if e != nil {
		log.Fatalf("process definition %q: %v", line, e)
	}
	return s
}

func (s *Supervisor) Name() string {
	return s.name
}

func (s *Supervisor) Command() string {
	return s.command
}

func (s *Supervisor) Quiet() bool {
	return s.quiet
}

// Logger returns the named logger.  Lines written to it reach the
// configured LogWriter and the in-memory Log.
func (s *Supervisor) Logger() *log.Logger {
	return s.logger
}

// Log returns the in-memory record of recent log lines.
func (s *Supervisor) Log() *Log {
	return s.log
}

func (s *Supervisor) logf(format string, v ...interface{}) {
	s.logger.Printf(format, v...)
}

func (s *Supervisor) current() *run {
	s.mx.Lock()
	r := s.cur
	s.mx.Unlock()
	return r
}

// Running reports whether a process is held, that is, it has been started
// and not yet cleaned up.
func (s *Supervisor) Running() bool {
	return s.current() != nil
}

// IsOn reports whether the supervisor intends its process to be running.
// It is set by Start and cleared by Stop and Kill, regardless of whether
// the process actually exited.
func (s *Supervisor) IsOn() bool {
	return s.on.Load()
}

// Stop records that the process should no longer run, without signalling
// it.  When it later exits it is cleaned up as a requested stop.
func (s *Supervisor) Stop() {
	s.on.Store(false)
}

// PID returns the identifier of the running process, UnsupportedPID if it
// could not be resolved, or the empty string if nothing is running.
func (s *Supervisor) PID() string {
	if r := s.current(); r != nil {
		return r.pidText()
	}
	return ""
}

// RunID returns a unique id of the current run, or the empty string.
func (s *Supervisor) RunID() string {
	if r := s.current(); r != nil {
		return r.id
	}
	return ""
}

// Start launches the command with the given KEY=VALUE environment.  A nil
// environment inherits the environment of this program.  A spawn failure
// is logged and returned; the supervisor is then still "on" but holds no
// process.
func (s *Supervisor) Start(env []string) error {
	s.mx.Lock()
	if s.cur != nil {
		s.mx.Unlock()
		return ErrRunning
	}
	s.on.Store(true)
	if !s.quiet {
		s.logf("environment: %v", env)
	}

	r := &run{
		code:     -1,
		exited:   make(chan struct{}),
		released: make(chan struct{}),
	}
	cmd := exec.Command(s.cfg.Shell, s.cfg.ShellFlag, s.command)
	if env != nil {
		cmd.Env = append(make([]string, 0, len(env)), env...)
	}
	cmd.Stdout = &r.stdout
	cmd.Stderr = &r.stderr
	cmd.WaitDelay = s.cfg.WaitDelay
	setProcGroup(cmd)

	if e := cmd.Start(); e != nil {
		s.mx.Unlock()
		s.logf("%v", e)
		return e
	}
	r.cmd = cmd
	r.id = uuid.NewString()
	if pid, e := s.cfg.Host.PID(cmd.Process); e == nil {
		r.pid = pid
		r.pidOK = true
	}
	s.cur = r
	s.last = r
	s.mx.Unlock()

	s.logf("started with pid %s", r.pidText())
	go s.wait(r)
	s.cfg.Scheduler.Schedule(s.cfg.DrainInterval, &drainTask{s: s, r: r})
	return nil
}

// wait reaps the process and performs the post-exit handling exactly once
// per run.
func (s *Supervisor) wait(r *run) {
	e := r.cmd.Wait()
	var ee *exec.ExitError
	if e != nil && !errors.As(e, &ee) {
		r.err = e
	}
	if ps := r.cmd.ProcessState; ps != nil {
		r.code = ps.ExitCode()
	}
	close(r.exited)

	// Off means a stop was asked for; otherwise the process went away
	// on its own.
	requested := !s.on.Load()
	if !s.cleanup(r, requested) {
		// Kill released the run before the output was complete.
		s.pipeMx.Lock()
		s.flush(r)
		s.pipeMx.Unlock()
	}
	close(r.released)

	if s.cfg.OnExit != nil {
		s.cfg.OnExit(s, r.code, requested)
	}
}

// Await blocks until the most recently started process exits and has
// been cleaned up, then returns its exit code.  A process killed by a
// signal reports -1.  If that process is already gone, its result is
// returned at once.
func (s *Supervisor) Await() (int, error) {
	s.mx.Lock()
	r := s.last
	s.mx.Unlock()
	if r == nil {
		return -1, ErrNotRunning
	}
	<-r.released
	return r.code, r.err
}

// Kill stops the process.  A graceful termination request is sent first;
// if the process can be identified and is still present after StopTime,
// it is forcefully killed.  The result is false only if the forceful kill
// could not be issued.  Killing when nothing runs succeeds immediately.
func (s *Supervisor) Kill() bool {
	s.on.Store(false)
	r := s.current()
	if r == nil {
		return true
	}

	if e := terminate(r.cmd.Process); e != nil {
		s.logf("Failed requesting termination: %v", e)
	}

	if !r.pidOK {
		s.logf("No process identifier, termination not verified")
		return true
	}

	timer := time.NewTimer(s.cfg.StopTime)
	select {
	case <-r.exited:
	case <-timer.C:
	}
	timer.Stop()

	alive, e := s.cfg.Host.Alive(r.pid)
	if e != nil {
		s.logf("Failed checking pid %d: %v", r.pid, e)
		alive = true
	}
	if alive {
		if e := s.cfg.Host.Kill(r.pid); e != nil {
			s.logf("Failed killing pid %d: %v", r.pid, e)
			return false
		}
		return true
	}

	s.cleanup(r, true)
	return true
}

// cleanup delivers any remaining output and releases the run.  It
// reports false, doing nothing, if the run had already been released.
func (s *Supervisor) cleanup(r *run, requested bool) bool {
	s.cleanMx.Lock()
	defer s.cleanMx.Unlock()
	if s.current() != r {
		return false
	}

	timer := time.NewTimer(s.cfg.WaitDelay)
	select {
	case <-r.exited:
	case <-timer.C:
	}
	timer.Stop()

	s.pipe(r, true)
	if !s.quiet {
		if requested {
			s.logf("terminated")
		} else {
			s.logf("exited with status %d", r.code)
		}
	}

	s.mx.Lock()
	s.cur = nil
	s.mx.Unlock()
	return true
}

// pipe delivers the lines collected so far.  When final is set, partial
// trailing lines are included, and in quiet mode the progress markers are
// finished with a newline.
func (s *Supervisor) pipe(r *run, final bool) {
	s.pipeMx.Lock()
	defer s.pipeMx.Unlock()
	if final {
		s.flush(r)
		if s.quiet {
			s.console("\n")
		}
		return
	}
	s.deliver(r.stdout.take())
	s.deliver(r.stderr.take())
}

// flush delivers everything left in the run's buffers, partial lines
// included.  The caller holds pipeMx.
func (s *Supervisor) flush(r *run) {
	s.deliver(r.stdout.flush())
	s.deliver(r.stderr.flush())
}

func (s *Supervisor) deliver(lines []string) {
	for _, line := range lines {
		if !s.quiet {
			s.logger.Print(line)
			continue
		}
		s.mx.Lock()
		s.buffer = append(s.buffer, line)
		s.mx.Unlock()
		s.console(".")
	}
}

func (s *Supervisor) console(str string) {
	if _, e := io.WriteString(s.cfg.Console, str); e != nil {
		s.logf("Failed writing to console: %v", e)
	}
}

// Buffer returns a copy of the quiet mode buffer.
func (s *Supervisor) Buffer() []string {
	s.mx.Lock()
	defer s.mx.Unlock()
	return append([]string{}, s.buffer...)
}

// DumpBuffer sends the buffered lines to the logger in the order they
// were captured, clears the buffer, and returns the lines.
func (s *Supervisor) DumpBuffer() []string {
	s.mx.Lock()
	lines := s.buffer
	s.buffer = nil
	s.mx.Unlock()
	for _, line := range lines {
		s.logger.Print(line)
	}
	return lines
}

// drainTask is the periodic drain of one run.  It stops asking to be
// re-armed once that run is no longer the supervisor's current one.
type drainTask struct {
	s *Supervisor
	r *run
}

func (t *drainTask) Tick() bool {
	if t.s.current() != t.r {
		return false
	}
	t.s.pipe(t.r, false)
	return t.s.current() == t.r
}
