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
	"bufio"
	"bytes"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Host is the platform facility used to identify a started process and to
// verify and force its termination out of band.
type Host interface {
	// PID resolves the identifier of a started process.  It returns
	// ErrUnsupported when the platform offers no usable identifier.
	PID(p *os.Process) (int, error)

	// Alive reports whether the process (or its group) is still present.
	Alive(pid int) (bool, error)

	// Kill forcefully terminates the process (or its group).
	Kill(pid int) error
}

// UnsupportedHost is used on platforms where no identifier can be used to
// signal a process out of band.  Kill verification is skipped entirely.
type UnsupportedHost struct{}

func (UnsupportedHost) PID(*os.Process) (int, error) {
	return 0, ErrUnsupported
}

func (UnsupportedHost) Alive(int) (bool, error) {
	return false, ErrUnsupported
}

func (UnsupportedHost) Kill(int) error {
	return ErrUnsupported
}

// PsHost inspects the host process table by running a listing command and
// looking for the pid in its second column, and forces termination by
// running an external kill command.  It is a fallback for hosts where
// signal probing is not available.
type PsHost struct {
	ListCmd []string // default: ps ux
	KillCmd []string // default: kill -9; the pid is appended
}

func (h PsHost) PID(p *os.Process) (int, error) {
	if p == nil || p.Pid <= 0 {
		return 0, ErrUnsupported
	}
	return p.Pid, nil
}

func (h PsHost) Alive(pid int) (bool, error) {
	args := h.ListCmd
	if len(args) == 0 {
		args = []string{"ps", "ux"}
	}
	out, e := exec.Command(args[0], args[1:]...).Output()
	if e != nil {
		return false, e
	}
	want := strconv.Itoa(pid)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) > 1 && fields[1] == want {
			return true, nil
		}
	}
	return false, scanner.Err()
}

func (h PsHost) Kill(pid int) error {
	args := h.KillCmd
	if len(args) == 0 {
		args = []string{"kill", "-9"}
	}
	args = append(append([]string{}, args...), strconv.Itoa(pid))
	e := exec.Command(args[0], args[1:]...).Run()
	var ee *exec.ExitError
	if errors.As(e, &ee) {
		// The command ran; a non-zero status means the target was
		// already gone.
		return nil
	}
	return e
}
