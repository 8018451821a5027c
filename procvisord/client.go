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
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/procvisor/procvisor/rest"
)

const followWait = 30 * time.Second

func newClient(server string) *rest.Client {
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	return rest.NewClient(nil, server)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func newStatusCmd(server *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status [name...]",
		Short: "Show the state of supervised processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := newClient(*server)
			names := args
			if len(names) == 0 {
				var err error
				if names, err = c.Names(ctx); err != nil {
					return err
				}
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tRUNNING\tON\tQUIET\tPID\tBUFFERED\tCOMMAND")
			for _, name := range names {
				info, err := c.Info(ctx, name)
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
					info.Name, yesNo(info.Running), yesNo(info.On),
					yesNo(info.Quiet), info.PID, info.Buffered,
					info.Command)
			}
			return w.Flush()
		},
	}
}

func newStartCmd(server *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start <name>",
		Short: "Start a supervised process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(*server).Start(cmd.Context(), args[0])
		},
	}
}

func newStopCmd(server *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <name>",
		Short: "Mark a process as not wanted, without killing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(*server).Stop(cmd.Context(), args[0])
		},
	}
}

func newKillCmd(server *string) *cobra.Command {
	return &cobra.Command{
		Use:   "kill <name>",
		Short: "Kill a supervised process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			killed, err := newClient(*server).Kill(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !killed {
				return fmt.Errorf("%s: could not be killed", args[0])
			}
			return nil
		},
	}
}

func newDumpCmd(server *string) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <name>",
		Short: "Print and clear the buffered output of a quiet process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := newClient(*server).Dump(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, line := range lines {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}

func newLogCmd(server *string) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "log <name>",
		Short: "Print the recent log of a supervised process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := newClient(*server)
			var since int64
			var wait time.Duration
			for {
				info, err := c.Log(ctx, args[0], since, wait)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
				for _, rec := range info.Records {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n",
						rec.Time.Format(time.RFC3339), rec.Text)
				}
				if !follow {
					return nil
				}
				since = info.Id
				wait = followWait
			}
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new records")
	return cmd
}
