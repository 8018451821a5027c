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
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/procvisor/procvisor"
	"github.com/procvisor/procvisor/sched"
)

const defaultListen = "127.0.0.1:8321"

// Config holds the daemon settings.  It deliberately has no notion of
// which processes to run; those are given on the command line.
type Config struct {
	Listen        string        `yaml:"listen"`
	Quiet         bool          `yaml:"quiet"`
	DrainInterval time.Duration `yaml:"drainInterval"`
	StopTime      time.Duration `yaml:"stopTime"`
	WaitDelay     time.Duration `yaml:"waitDelay"`
	Probe         string        `yaml:"probe"` // "signal" or "ps"
	Workers       int           `yaml:"workers"`
	InheritEnv    *bool         `yaml:"inheritEnv"`
	Env           []string      `yaml:"env"`
}

func defaultConfig() *Config {
	return &Config{
		Listen: defaultListen,
		Probe:  "signal",
	}
}

// loadConfig reads the settings file at path.  An empty path yields the
// defaults.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: decode: %w", path, err)
	}
	if err := cfg.resolve(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) resolve() error {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	switch c.Probe {
	case "":
		c.Probe = "signal"
	case "signal", "ps":
	default:
		return fmt.Errorf("probe: unknown probe %q (want signal or ps)", c.Probe)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers: must not be negative")
	}
	for _, d := range []struct {
		name string
		v    time.Duration
	}{
		{"drainInterval", c.DrainInterval},
		{"stopTime", c.StopTime},
		{"waitDelay", c.WaitDelay},
	} {
		if d.v < 0 {
			return fmt.Errorf("%s: must not be negative", d.name)
		}
	}
	for i, kv := range c.Env {
		kv = os.ExpandEnv(kv)
		if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
			return fmt.Errorf("env[%d]: %q is not KEY=VALUE", i, kv)
		}
		c.Env[i] = kv
	}
	return nil
}

// environ returns the environment handed to every started process.  It
// is never nil, so that processes do not silently inherit ours.
func (c *Config) environ() []string {
	env := []string{}
	if c.InheritEnv == nil || *c.InheritEnv {
		env = os.Environ()
	}
	return append(env, c.Env...)
}

func (c *Config) host() procvisor.Host {
	if c.Probe == "ps" {
		return procvisor.PsHost{}
	}
	return procvisor.DefaultHost()
}

func (c *Config) supervisorConfig(s sched.Scheduler) procvisor.Config {
	cfg := procvisor.DefaultConfig(s)
	cfg.Host = c.host()
	if c.DrainInterval > 0 {
		cfg.DrainInterval = c.DrainInterval
	}
	if c.StopTime > 0 {
		cfg.StopTime = c.StopTime
	}
	if c.WaitDelay > 0 {
		cfg.WaitDelay = c.WaitDelay
	}
	return cfg
}
