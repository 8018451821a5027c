//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris

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

package rest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/procvisor/procvisor"
	"github.com/procvisor/procvisor/sched"
)

func testRegistry(t *testing.T, lines ...string) *procvisor.Registry {
	cfg := procvisor.DefaultConfig(&sched.Manual{})
	cfg.LogWriter = io.Discard
	cfg.Console = io.Discard
	cfg.StopTime = 100 * time.Millisecond
	cfg.WaitDelay = 500 * time.Millisecond

	reg := procvisor.NewRegistry()
	for i, line := range lines {
		s, e := procvisor.New(line, cfg, i == len(lines)-1)
		if e != nil {
			t.Fatalf("bad definition %q: %v", line, e)
		}
		if e = reg.Add(s); e != nil {
			t.Fatalf("add %q: %v", line, e)
		}
	}
	return reg
}

func texts(recs []procvisor.LogRecord) []string {
	rv := make([]string, 0, len(recs))
	for _, r := range recs {
		rv = append(rv, r.Text)
	}
	return rv
}

func TestHandler(t *testing.T) {
	Convey("Given a server over three supervisors", t, func() {
		// The last definition is quiet.
		reg := testRegistry(t,
			"hello : echo hello",
			"sleeper : sleep 10",
			"hush : echo one; echo two")
		srv := httptest.NewServer(NewHandler(reg, []string{"PATH=/bin:/usr/bin"}))
		Reset(func() {
			reg.KillAll()
			srv.Close()
		})
		c := NewClient(srv.Client(), srv.URL+"/")
		ctx := context.Background()

		Convey("Names are listed in definition order", func() {
			names, e := c.Names(ctx)
			So(e, ShouldBeNil)
			So(names, ShouldResemble, []string{"hello", "sleeper", "hush"})
		})

		Convey("The list carries the registry serial as its Etag", func() {
			res, e := http.Get(srv.URL + "/procs")
			So(e, ShouldBeNil)
			res.Body.Close()
			So(res.Header.Get("Etag"), ShouldEqual, strconv.FormatInt(reg.Serial(), 10))
		})

		Convey("Info describes an idle supervisor", func() {
			info, e := c.Info(ctx, "hello")
			So(e, ShouldBeNil)
			So(info.Name, ShouldEqual, "hello")
			So(info.Command, ShouldEqual, "echo hello")
			So(info.Running, ShouldBeFalse)
			So(info.On, ShouldBeFalse)
			So(info.Quiet, ShouldBeFalse)
			So(info.PID, ShouldEqual, "")
		})

		Convey("Unknown names are not found", func() {
			_, e := c.Info(ctx, "nobody")
			So(e, ShouldNotBeNil)
			var re *Error
			So(errors.As(e, &re), ShouldBeTrue)
			So(re.Code, ShouldEqual, http.StatusNotFound)

			_, e = c.Kill(ctx, "nobody")
			So(e, ShouldNotBeNil)
		})

		Convey("Unsupported methods are refused", func() {
			res, e := http.Get(srv.URL + "/procs/hello/kill")
			So(e, ShouldBeNil)
			res.Body.Close()
			So(res.StatusCode, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("Starting runs the process and logs its output", func() {
			So(c.Start(ctx, "hello"), ShouldBeNil)
			s, _ := reg.Find("hello")
			code, e := s.Await()
			So(e, ShouldBeNil)
			So(code, ShouldEqual, 0)

			info, e := c.Log(ctx, "hello", 0, 0)
			So(e, ShouldBeNil)
			lines := texts(info.Records)
			So(len(lines), ShouldBeGreaterThan, 2)
			So(lines, ShouldContain, "hello")
			So(lines[len(lines)-1], ShouldEqual, "exited with status 0")

			Convey("And nothing newer is returned for the latest id", func() {
				again, e := c.Log(ctx, "hello", info.Id, 0)
				So(e, ShouldBeNil)
				So(again.Id, ShouldEqual, info.Id)
				So(again.Records, ShouldBeEmpty)
			})
		})

		Convey("A log request can wait for new records", func() {
			first, e := c.Log(ctx, "sleeper", 0, 0)
			So(e, ShouldBeNil)

			go func() {
				time.Sleep(50 * time.Millisecond)
				s, _ := reg.Find("sleeper")
				s.Logger().Print("poke")
			}()
			start := time.Now()
			next, e := c.Log(ctx, "sleeper", first.Id, 5*time.Second)
			So(e, ShouldBeNil)
			So(time.Since(start), ShouldBeLessThan, 4*time.Second)
			So(texts(next.Records), ShouldResemble, []string{"poke"})
		})

		Convey("Starting twice is a client error", func() {
			So(c.Start(ctx, "sleeper"), ShouldBeNil)
			info, e := c.Info(ctx, "sleeper")
			So(e, ShouldBeNil)
			So(info.Running, ShouldBeTrue)
			So(info.On, ShouldBeTrue)
			So(info.PID, ShouldNotEqual, "")
			So(info.RunID, ShouldNotEqual, "")

			e = c.Start(ctx, "sleeper")
			So(e, ShouldNotBeNil)
			var re *Error
			So(errors.As(e, &re), ShouldBeTrue)
			So(re.Code, ShouldEqual, http.StatusBadRequest)

			Convey("And kill confirms it gone", func() {
				killed, e := c.Kill(ctx, "sleeper")
				So(e, ShouldBeNil)
				So(killed, ShouldBeTrue)
				info, e := c.Info(ctx, "sleeper")
				So(e, ShouldBeNil)
				So(info.On, ShouldBeFalse)
			})
		})

		Convey("Stop only clears the intent", func() {
			So(c.Start(ctx, "sleeper"), ShouldBeNil)
			So(c.Stop(ctx, "sleeper"), ShouldBeNil)
			info, e := c.Info(ctx, "sleeper")
			So(e, ShouldBeNil)
			So(info.On, ShouldBeFalse)
			So(info.Running, ShouldBeTrue)
		})

		Convey("Killing an idle supervisor succeeds", func() {
			killed, e := c.Kill(ctx, "hello")
			So(e, ShouldBeNil)
			So(killed, ShouldBeTrue)
		})

		Convey("A quiet supervisor buffers until dumped", func() {
			So(c.Start(ctx, "hush"), ShouldBeNil)
			s, _ := reg.Find("hush")
			_, e := s.Await()
			So(e, ShouldBeNil)

			info, e := c.Info(ctx, "hush")
			So(e, ShouldBeNil)
			So(info.Quiet, ShouldBeTrue)
			So(info.Buffered, ShouldEqual, 3)

			lines, e := c.Dump(ctx, "hush")
			So(e, ShouldBeNil)
			So(lines, ShouldResemble, []string{procvisor.QuietMarker, "one", "two"})

			lines, e = c.Dump(ctx, "hush")
			So(e, ShouldBeNil)
			So(lines, ShouldBeEmpty)
		})
	})
}
