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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to a Handler.
type Client struct {
	base   string // URI to root of tree on server
	client *http.Client
}

func (c *Client) url(name string, op string) string {
	if name == "" {
		return c.base + "/procs"
	}
	u := c.base + "/procs/" + url.PathEscape(name)
	if op != "" {
		u += "/" + op
	}
	return u
}

func (c *Client) do(req *http.Request, v interface{}) error {
	res, e := c.client.Do(req)
	if e != nil {
		return e
	}
	defer res.Body.Close()

	body, e := io.ReadAll(res.Body)
	if e != nil {
		return e
	}
	if res.StatusCode != http.StatusOK {
		re := &Error{}
		if json.Unmarshal(body, re) == nil && re.Message != "" {
			return re
		}
		return &Error{Code: res.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	if v == nil {
		return nil
	}
	return json.Unmarshal(body, v)
}

func (c *Client) get(ctx context.Context, u string, v interface{}) error {
	req, e := http.NewRequestWithContext(ctx, "GET", u, nil)
	if e != nil {
		return e
	}
	return c.do(req, v)
}

func (c *Client) post(ctx context.Context, u string, v interface{}) error {
	req, e := http.NewRequestWithContext(ctx, "POST", u, nil)
	if e != nil {
		return e
	}
	return c.do(req, v)
}

// Names returns the names of the supervised processes, in the order
// they were defined.
func (c *Client) Names(ctx context.Context) ([]string, error) {
	var names []string
	if e := c.get(ctx, c.url("", ""), &names); e != nil {
		return nil, e
	}
	return names, nil
}

func (c *Client) Info(ctx context.Context, name string) (*ProcInfo, error) {
	info := &ProcInfo{}
	if e := c.get(ctx, c.url(name, ""), info); e != nil {
		return nil, e
	}
	return info, nil
}

func (c *Client) Start(ctx context.Context, name string) error {
	return c.post(ctx, c.url(name, "start"), nil)
}

func (c *Client) Stop(ctx context.Context, name string) error {
	return c.post(ctx, c.url(name, "stop"), nil)
}

// Kill asks the server to kill the process, and reports whether the
// server confirmed it gone.
func (c *Client) Kill(ctx context.Context, name string) (bool, error) {
	res := &KillResult{}
	if e := c.post(ctx, c.url(name, "kill"), res); e != nil {
		return false, e
	}
	return res.Killed, nil
}

func (c *Client) Dump(ctx context.Context, name string) ([]string, error) {
	var lines []string
	if e := c.post(ctx, c.url(name, "dump"), &lines); e != nil {
		return nil, e
	}
	return lines, nil
}

// Log returns the records newer than since.  If wait is non-zero and
// since is not zero, the server holds the request until something newer
// arrives or wait passes.
func (c *Client) Log(ctx context.Context, name string, since int64, wait time.Duration) (*LogInfo, error) {
	q := url.Values{}
	q.Set("since", strconv.FormatInt(since, 10))
	if wait > 0 {
		q.Set("wait", fmt.Sprintf("%d", int(wait/time.Second)))
	}
	info := &LogInfo{}
	if e := c.get(ctx, c.url(name, "log")+"?"+q.Encode(), info); e != nil {
		return nil, e
	}
	return info, nil
}

// NewClient returns a client for the server rooted at base.  If client
// is nil, http.DefaultClient is used.
func NewClient(client *http.Client, base string) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		base:   strings.TrimSuffix(base, "/"),
		client: client,
	}
}
