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
	"bytes"
	"strings"
	"sync"
)

// lineBuffer collects one output stream of a process.  The process side
// writes raw bytes; the drain side takes whatever complete lines have
// arrived so far, without ever waiting for more.
type lineBuffer struct {
	partial []byte
	lines   []string
	mx      sync.Mutex
}

func (b *lineBuffer) Write(p []byte) (int, error) {
	b.mx.Lock()
	b.partial = append(b.partial, p...)
	for {
		i := bytes.IndexByte(b.partial, '\n')
		if i < 0 {
			break
		}
		b.lines = append(b.lines, strings.TrimSuffix(string(b.partial[:i]), "\r"))
		b.partial = b.partial[i+1:]
	}
	b.mx.Unlock()
	return len(p), nil
}

// take removes and returns the complete lines received so far.
func (b *lineBuffer) take() []string {
	b.mx.Lock()
	lines := b.lines
	b.lines = nil
	b.mx.Unlock()
	return lines
}

// flush is take, plus any final line that lacks a newline.  Only used once
// the stream is finished.
func (b *lineBuffer) flush() []string {
	b.mx.Lock()
	lines := b.lines
	b.lines = nil
	if len(b.partial) != 0 {
		lines = append(lines, strings.TrimSuffix(string(b.partial), "\r"))
		b.partial = nil
	}
	b.mx.Unlock()
	return lines
}
