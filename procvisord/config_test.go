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

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/procvisor/procvisor"
	"github.com/procvisor/procvisor/sched"
)

func writeConfig(t *testing.T, text string) string {
	path := filepath.Join(t.TempDir(), "procvisord.yaml")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	Convey("No file gives the defaults", t, func() {
		cfg, err := loadConfig("")
		So(err, ShouldBeNil)
		So(cfg.Listen, ShouldEqual, defaultListen)
		So(cfg.Probe, ShouldEqual, "signal")
		So(cfg.Quiet, ShouldBeFalse)
	})

	Convey("An empty file gives the defaults", t, func() {
		cfg, err := loadConfig(writeConfig(t, ""))
		So(err, ShouldBeNil)
		So(cfg.Listen, ShouldEqual, defaultListen)
	})

	Convey("Settings are read", t, func() {
		t.Setenv("PROCVISOR_HOME", "/srv/app")
		cfg, err := loadConfig(writeConfig(t, `
listen: 127.0.0.1:9000
quiet: true
drainInterval: 250ms
stopTime: 3s
waitDelay: 2s
probe: ps
workers: 4
inheritEnv: false
env:
  - HOME=${PROCVISOR_HOME}
  - MODE=test
`))
		So(err, ShouldBeNil)
		So(cfg.Listen, ShouldEqual, "127.0.0.1:9000")
		So(cfg.Quiet, ShouldBeTrue)
		So(cfg.DrainInterval, ShouldEqual, 250*time.Millisecond)
		So(cfg.StopTime, ShouldEqual, 3*time.Second)
		So(cfg.WaitDelay, ShouldEqual, 2*time.Second)
		So(cfg.Workers, ShouldEqual, 4)
		So(cfg.environ(), ShouldResemble, []string{"HOME=/srv/app", "MODE=test"})

		_, isPs := cfg.host().(procvisor.PsHost)
		So(isPs, ShouldBeTrue)

		scfg := cfg.supervisorConfig(&sched.Manual{})
		So(scfg.DrainInterval, ShouldEqual, 250*time.Millisecond)
		So(scfg.StopTime, ShouldEqual, 3*time.Second)
		So(scfg.WaitDelay, ShouldEqual, 2*time.Second)
	})

	Convey("Unset durations keep the supervisor defaults", t, func() {
		cfg, err := loadConfig(writeConfig(t, "probe: signal\n"))
		So(err, ShouldBeNil)
		scfg := cfg.supervisorConfig(&sched.Manual{})
		So(scfg.DrainInterval, ShouldEqual, procvisor.DefaultDrainInterval)
		So(scfg.StopTime, ShouldEqual, procvisor.DefaultStopTime)
		So(scfg.WaitDelay, ShouldEqual, procvisor.DefaultWaitDelay)
	})

	Convey("The environment is inherited by default", t, func() {
		t.Setenv("PROCVISOR_INHERITED", "yes")
		cfg, err := loadConfig(writeConfig(t, "env: [EXTRA=1]\n"))
		So(err, ShouldBeNil)
		env := cfg.environ()
		So(env, ShouldContain, "PROCVISOR_INHERITED=yes")
		So(env[len(env)-1], ShouldEqual, "EXTRA=1")
	})

	Convey("An empty environment stays empty", t, func() {
		cfg, err := loadConfig(writeConfig(t, "inheritEnv: false\n"))
		So(err, ShouldBeNil)
		So(cfg.environ(), ShouldNotBeNil)
		So(cfg.environ(), ShouldBeEmpty)
	})

	Convey("Bad settings are refused", t, func() {
		for _, text := range []string{
			"listen: [nope\n",
			"unknown: 1\n",
			"probe: magic\n",
			"workers: -1\n",
			"stopTime: -1s\n",
			"stopTime: soon\n",
			"env: [NOEQUALS]\n",
			"env: [=value]\n",
		} {
			_, err := loadConfig(writeConfig(t, text))
			So(err, ShouldNotBeNil)
		}
	})

	Convey("A missing file is an error", t, func() {
		_, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		So(err, ShouldNotBeNil)
	})
}
