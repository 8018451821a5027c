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
)

var (
	ErrMalformed     = errors.New("Process definition is malformed")
	ErrNoScheduler   = errors.New("No scheduler configured")
	ErrRunning       = errors.New("Process is already running")
	ErrNotRunning    = errors.New("Process is not running")
	ErrUnsupported   = errors.New("Unsupported on this platform")
	ErrDuplicate     = errors.New("Duplicate process name")
	ErrNoSuchProcess = errors.New("No such process")
)
