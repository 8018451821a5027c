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
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"

	"github.com/procvisor/procvisor/rest"
)

var (
	StyleNormal = tcell.StyleDefault.
			Foreground(tcell.ColorSilver).
			Background(tcell.ColorBlack)
	StyleGood = tcell.StyleDefault.
			Foreground(tcell.ColorGreen).
			Background(tcell.ColorBlack)
	StyleWarn = tcell.StyleDefault.
			Foreground(tcell.ColorYellow).
			Background(tcell.ColorBlack)
	StyleError = tcell.StyleDefault.
			Foreground(tcell.ColorMaroon).
			Background(tcell.ColorBlack)
	StyleBar = tcell.StyleDefault.
			Foreground(tcell.ColorBlack).
			Background(tcell.ColorSilver)
)

const topKeys = "[Q] Quit  [S] Start  [T] Stop  [K] Kill  [D] Dump"

func state(p *rest.ProcInfo) string {
	if p.Running {
		return "running"
	}
	if p.On {
		return "exited"
	}
	return "idle"
}

type sorted []*rest.ProcInfo

func (s sorted) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}

func (s sorted) Len() int {
	return len(s)
}

func (s sorted) Less(i, j int) bool {
	a := s[i]
	b := s[j]

	// Processes that went away on their own come first, then the
	// ones we want running.
	if ea, eb := a.On && !a.Running, b.On && !b.Running; ea != eb {
		return ea
	}
	if a.On != b.On {
		return a.On
	}
	return a.Name < b.Name
}

// topView is the model behind the top screen.
type topView struct {
	server string
	items  []*rest.ProcInfo
	sel    int
	err    error
	status string
}

func (v *topView) refresh(ctx context.Context, c *rest.Client) {
	names, err := c.Names(ctx)
	if err != nil {
		v.err = err
		return
	}
	items := make([]*rest.ProcInfo, 0, len(names))
	for _, name := range names {
		info, err := c.Info(ctx, name)
		if err != nil {
			v.err = err
			return
		}
		items = append(items, info)
	}
	v.setItems(items)
	v.err = nil
}

// setItems replaces the list, keeping the same process selected when it
// is still there.
func (v *topView) setItems(items []*rest.ProcInfo) {
	var name string
	if p := v.selected(); p != nil {
		name = p.Name
	}
	sort.Sort(sorted(items))
	v.items = items
	v.sel = 0
	for i, p := range items {
		if p.Name == name {
			v.sel = i
		}
	}
}

func (v *topView) selected() *rest.ProcInfo {
	if v.sel < 0 || v.sel >= len(v.items) {
		return nil
	}
	return v.items[v.sel]
}

func (v *topView) move(n int) {
	v.sel += n
	if v.sel >= len(v.items) {
		v.sel = len(v.items) - 1
	}
	if v.sel < 0 {
		v.sel = 0
	}
}

// handleKey acts on a key press, returning true when the screen should
// be closed.
func (v *topView) handleKey(ctx context.Context, c *rest.Client, ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEsc, tcell.KeyCtrlC:
		return true
	case tcell.KeyUp:
		v.move(-1)
	case tcell.KeyDown:
		v.move(1)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'Q', 'q':
			return true
		case 'S', 's':
			v.act("start", func(name string) error {
				return c.Start(ctx, name)
			})
		case 'T', 't':
			v.act("stop", func(name string) error {
				return c.Stop(ctx, name)
			})
		case 'K', 'k':
			v.act("kill", func(name string) error {
				killed, err := c.Kill(ctx, name)
				if err == nil && !killed {
					err = fmt.Errorf("not confirmed")
				}
				return err
			})
		case 'D', 'd':
			v.act("dump", func(name string) error {
				lines, err := c.Dump(ctx, name)
				if err == nil {
					v.status = fmt.Sprintf("%s: %d lines dumped to the log", name, len(lines))
				}
				return err
			})
		}
	}
	return false
}

func (v *topView) act(what string, fn func(string) error) {
	p := v.selected()
	if p == nil {
		return
	}
	v.status = fmt.Sprintf("%s: %s done", p.Name, what)
	if err := fn(p.Name); err != nil {
		v.status = fmt.Sprintf("%s: %s failed: %v", p.Name, what, err)
	}
}

func putLine(scr tcell.Screen, y int, style tcell.Style, text string) {
	w, _ := scr.Size()
	runes := []rune(text)
	for x := 0; x < w; x++ {
		r := ' '
		if x < len(runes) {
			r = runes[x]
		}
		scr.SetContent(x, y, r, nil, style)
	}
}

/*
   The screen looks like this:

    Server: http://127.0.0.1:8321
    3 Processes  1 Running  1 Exited  1 Idle
    NAME        STATE     PID     BUFFERED  COMMAND
    worker      exited            0         ./worker --once
    web         running   4211    0         python -m http.server
    ...
    status or error
    [Q] Quit  [S] Start  [T] Stop  [K] Kill  [D] Dump
*/
func (v *topView) draw(scr tcell.Screen) {
	scr.Clear()
	_, h := scr.Size()

	var running, exited, idle int
	for _, p := range v.items {
		switch state(p) {
		case "running":
			running++
		case "exited":
			exited++
		default:
			idle++
		}
	}
	putLine(scr, 0, StyleBar, "Server: "+v.server)
	putLine(scr, 1, StyleNormal, fmt.Sprintf(
		"%d Processes  %d Running  %d Exited  %d Idle",
		len(v.items), running, exited, idle))
	putLine(scr, 2, StyleNormal.Bold(true), fmt.Sprintf(
		"%-12s %-9s %-7s %-9s %s", "NAME", "STATE", "PID", "BUFFERED", "COMMAND"))

	for i, p := range v.items {
		y := i + 3
		if y >= h-2 {
			break
		}
		style := StyleNormal
		switch state(p) {
		case "running":
			style = StyleGood
		case "exited":
			style = StyleWarn
		}
		if i == v.sel {
			style = style.Reverse(true)
		}
		putLine(scr, y, style, fmt.Sprintf("%-12s %-9s %-7s %-9d %s",
			p.Name, state(p), p.PID, p.Buffered, p.Command))
	}

	if v.err != nil {
		putLine(scr, h-2, StyleError, v.err.Error())
	} else {
		putLine(scr, h-2, StyleNormal, v.status)
	}
	putLine(scr, h-1, StyleBar, topKeys)
	scr.Show()
}

func runTop(ctx context.Context, scr tcell.Screen, c *rest.Client, server string, every time.Duration) error {
	if err := scr.Init(); err != nil {
		return err
	}
	defer scr.Fini()

	events := make(chan tcell.Event)
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		for {
			ev := scr.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()

	if every <= 0 {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	v := &topView{server: server}
	v.refresh(ctx, c)
	v.draw(scr)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			v.refresh(ctx, c)
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				scr.Sync()
			case *tcell.EventKey:
				if v.handleKey(ctx, c, ev) {
					return nil
				}
				v.refresh(ctx, c)
			}
		}
		v.draw(scr)
	}
}

func newTopCmd(server *string) *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Watch and control supervised processes interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scr, err := tcell.NewScreen()
			if err != nil {
				return err
			}
			return runTop(cmd.Context(), scr, newClient(*server), *server, every)
		},
	}
	cmd.Flags().DurationVarP(&every, "interval", "i", time.Second, "Refresh interval")
	return cmd
}
