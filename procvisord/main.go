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

// Command procvisord supervises the processes named on its command line,
// and serves their state over HTTP.  The same binary is the client for
// that service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/procvisor/procvisor"
	"github.com/procvisor/procvisor/rest"
	"github.com/procvisor/procvisor/sched"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var server string

	root := &cobra.Command{
		Use:   "procvisord",
		Short: "Supervise processes and report on them",
	}
	root.PersistentFlags().StringVarP(&server, "server", "s", "http://"+defaultListen,
		"Address of the procvisord to talk to")

	root.AddCommand(newRunCmd())
	root.AddCommand(newStatusCmd(&server))
	root.AddCommand(newStartCmd(&server))
	root.AddCommand(newStopCmd(&server))
	root.AddCommand(newKillCmd(&server))
	root.AddCommand(newDumpCmd(&server))
	root.AddCommand(newLogCmd(&server))
	root.AddCommand(newTopCmd(&server))

	root.SilenceUsage = true
	root.SilenceErrors = true
	return root
}

func newRunCmd() *cobra.Command {
	var (
		configFile string
		listen     string
		quiet      bool
		workers    int
	)
	cmd := &cobra.Command{
		Use:   "run [flags] '<name> : <command>'...",
		Short: "Start and supervise the given processes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("listen") {
				cfg.Listen = listen
			}
			if flags.Changed("quiet") {
				cfg.Quiet = quiet
			}
			if flags.Changed("workers") {
				cfg.Workers = workers
			}
			return runDaemon(cmd.Context(), cfg, args)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to daemon settings (YAML)")
	cmd.Flags().StringVarP(&listen, "listen", "a", defaultListen, "HTTP listen address")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Buffer process output until dumped")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Drain workers (0 means one per CPU)")
	return cmd
}

func runDaemon(ctx context.Context, cfg *Config, defs []string) error {
	pool := sched.NewPool(cfg.Workers)
	defer pool.Close()

	reg := procvisor.NewRegistry()
	scfg := cfg.supervisorConfig(pool)
	scfg.OnExit = exited
	for _, line := range defs {
		if err := reg.Add(procvisor.MustNew(line, scfg, cfg.Quiet)); err != nil {
			return err
		}
	}
	env := cfg.environ()

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{Handler: rest.NewHandler(reg, env)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Serving on %s", ln.Addr())
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Printf("Shutting down")
		if !reg.KillAll() {
			log.Printf("Some processes could not be confirmed stopped")
		}
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	for _, s := range reg.Supervisors() {
		if err := s.Start(env); err != nil {
			log.Printf("Failed to start %s: %v", s.Name(), err)
		}
	}
	return g.Wait()
}

// exited reacts to the end of every run, including runs started over
// HTTP.  If the process went away without being asked to, the buffered
// output of a quiet supervisor is dumped so that the failure can be
// diagnosed.
func exited(s *procvisor.Supervisor, code int, requested bool) {
	if requested {
		return
	}
	log.Printf("%s exited unexpectedly with status %d", s.Name(), code)
	if s.Quiet() {
		s.DumpBuffer()
	}
}
