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
	"errors"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/procvisor/procvisor/sched"
)

type testLog struct {
	t *testing.T
}

func (tl *testLog) Write(p []byte) (n int, err error) {
	tl.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// syncBuffer stands in for the console; supervisors write to it from
// their own goroutines.
type syncBuffer struct {
	buf bytes.Buffer
	mx  sync.Mutex
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.buf.String()
}

type noScheduler struct{}

func (noScheduler) Schedule(time.Duration, sched.Task) {}

func eventually(d time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(d)
	for {
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func hasLine(lines []string, want string) bool {
	for _, l := range lines {
		if l == want {
			return true
		}
	}
	return false
}

func TestLogRing(t *testing.T) {
	Convey("Given a small log", t, func() {
		l := NewLog(3)
		recs, id := l.GetRecords(0)
		So(recs, ShouldBeEmpty)

		Convey("Multi-line writes become separate records", func() {
			l.Write([]byte("a\nb\n"))
			recs, id2 := l.GetRecords(id)
			So(len(recs), ShouldEqual, 2)
			So(recs[0].Text, ShouldEqual, "a")
			So(recs[1].Text, ShouldEqual, "b")
			So(id2, ShouldNotEqual, id)

			Convey("An unchanged id returns nothing", func() {
				recs, id3 := l.GetRecords(id2)
				So(recs, ShouldBeNil)
				So(id3, ShouldEqual, id2)
			})
		})

		Convey("Only the newest records are kept", func() {
			for _, s := range []string{"1", "2", "3", "4", "5"} {
				l.Write([]byte(s + "\n"))
			}
			So(l.Lines(), ShouldResemble, []string{"3", "4", "5"})
		})

		Convey("Clear empties the log and changes the id", func() {
			l.Write([]byte("x\n"))
			_, before := l.GetRecords(0)
			l.Clear()
			recs, after := l.GetRecords(before)
			So(recs, ShouldBeEmpty)
			So(after, ShouldNotEqual, before)
		})

		Convey("Watch wakes up on a write", func() {
			_, last := l.GetRecords(0)
			go func() {
				time.Sleep(10 * time.Millisecond)
				l.Write([]byte("woken\n"))
			}()
			next := l.Watch(last, 5*time.Second)
			So(next, ShouldNotEqual, last)
			So(l.Lines(), ShouldResemble, []string{"woken"})
		})

		Convey("Watch expires without a write", func() {
			_, last := l.GetRecords(0)
			So(l.Watch(last, 10*time.Millisecond), ShouldEqual, last)
			So(l.Watch(last, 0), ShouldEqual, last)
		})
	})
}

func TestMultiLogger(t *testing.T) {
	Convey("A multilogger fans out to each destination", t, func() {
		var a, b bytes.Buffer
		la := log.New(&a, "[a] ", 0)
		lb := log.New(&b, "", 0)
		m := NewMultiLogger(la, lb, la)
		m.Logger().Print("hello")
		So(a.String(), ShouldEqual, "[a] hello\n")
		So(b.String(), ShouldEqual, "hello\n")

		m.DelLogger(la)
		m.Logger().Print("again")
		So(a.String(), ShouldEqual, "[a] hello\n")
		So(b.String(), ShouldEqual, "hello\nagain\n")
	})
}

func TestLineBuffer(t *testing.T) {
	Convey("A line buffer hands out complete lines only", t, func() {
		var b lineBuffer
		b.Write([]byte("one\ntw"))
		So(b.take(), ShouldResemble, []string{"one"})
		So(b.take(), ShouldBeEmpty)

		b.Write([]byte("o\r\nthr"))
		So(b.take(), ShouldResemble, []string{"two"})

		Convey("Flush includes the unterminated tail", func() {
			So(b.flush(), ShouldResemble, []string{"thr"})
			So(b.flush(), ShouldBeEmpty)
		})
	})
}

func TestRegistry(t *testing.T) {
	Convey("Given a registry", t, func() {
		r := NewRegistry()
		So(r.Supervisors(), ShouldBeEmpty)
		serial := r.Serial()

		cfg := DefaultConfig(noScheduler{})
		a, e := New("a : true", cfg, false)
		So(e, ShouldBeNil)
		b, e := New("b : true", cfg, true)
		So(e, ShouldBeNil)

		So(r.Add(b), ShouldBeNil)
		So(r.Add(a), ShouldBeNil)
		So(r.Serial(), ShouldNotEqual, serial)
		So(r.Supervisors(), ShouldResemble, []*Supervisor{b, a})

		Convey("Names are unique", func() {
			dup, e := New("a : false", cfg, false)
			So(e, ShouldBeNil)
			So(errors.Is(r.Add(dup), ErrDuplicate), ShouldBeTrue)
		})

		Convey("Lookups by name", func() {
			s, e := r.Find("a")
			So(e, ShouldBeNil)
			So(s, ShouldEqual, a)
			_, e = r.Find("nope")
			So(errors.Is(e, ErrNoSuchProcess), ShouldBeTrue)
		})

		Convey("Killing idle supervisors succeeds", func() {
			So(r.KillAll(), ShouldBeTrue)
		})
	})
}
