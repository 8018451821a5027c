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

//go:build !windows

package procvisor

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// SignalHost probes and kills through signals sent to the process group
// of the supervised process.  Processes are started as group leaders, so
// the group id is the pid.
type SignalHost struct{}

func (SignalHost) PID(p *os.Process) (int, error) {
	if p == nil || p.Pid <= 0 {
		return 0, ErrUnsupported
	}
	return p.Pid, nil
}

func (SignalHost) Alive(pid int) (bool, error) {
	e := syscall.Kill(-pid, syscall.Signal(0))
	switch {
	case e == nil:
		return true, nil
	case errors.Is(e, syscall.ESRCH):
		return false, nil
	case errors.Is(e, syscall.EPERM):
		// exists, but belongs to someone else
		return true, nil
	}
	return false, e
}

func (SignalHost) Kill(pid int) error {
	if e := syscall.Kill(-pid, syscall.SIGKILL); e != nil && !errors.Is(e, syscall.ESRCH) {
		return e
	}
	return nil
}

// DefaultHost returns the preferred Host for this platform.
func DefaultHost() Host {
	return SignalHost{}
}

const (
	defaultShell     = "/bin/sh"
	defaultShellFlag = "-c"
)

func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminate asks the process group to exit.
func terminate(p *os.Process) error {
	e := syscall.Kill(-p.Pid, syscall.SIGTERM)
	if errors.Is(e, syscall.ESRCH) {
		return nil
	}
	if e != nil {
		// not a group leader after all; signal the process alone
		return p.Signal(syscall.SIGTERM)
	}
	return nil
}
