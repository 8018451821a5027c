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
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/procvisor/procvisor"
)

// MaxLogWait caps how long a log request may wait for new records.
const MaxLogWait = 5 * time.Minute

// Handler wraps a Registry, adding http.Handler functionality.
type Handler struct {
	reg *procvisor.Registry
	env []string
	r   *mux.Router
}

var ok struct{}

func (h *Handler) internalError(w http.ResponseWriter, e error) {
	http.Error(w, e.Error(), http.StatusInternalServerError)
}

func (h *Handler) writeJson(w http.ResponseWriter, v interface{}) {
	if b, e := json.Marshal(v); e != nil {
		h.internalError(w, e)
	} else {
		w.Header().Set("Content-Type", mimeJson)
		w.Write(b)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, e *Error) {
	if b, err := json.Marshal(e); err != nil {
		h.internalError(w, err)
	} else {
		w.Header().Set("Content-Type", mimeJson)
		w.WriteHeader(e.Code)
		w.Write(b)
	}
}

func (h *Handler) findProc(r *http.Request) (*procvisor.Supervisor, *Error) {
	s, e := h.reg.Find(mux.Vars(r)["name"])
	if e != nil {
		return nil, &Error{http.StatusNotFound, e.Error()}
	}
	return s, nil
}

func (h *Handler) listProcs(w http.ResponseWriter, r *http.Request) {
	procs := h.reg.Supervisors()
	l := make([]string, 0, len(procs))
	for _, s := range procs {
		l = append(l, s.Name())
	}
	w.Header().Set("Etag", strconv.FormatInt(h.reg.Serial(), 10))
	h.writeJson(w, l)
}

func (h *Handler) getProc(w http.ResponseWriter, r *http.Request) {
	if s, e := h.findProc(r); e != nil {
		h.writeError(w, e)
	} else {
		h.writeJson(w, procInfo(s))
	}
}

func (h *Handler) startProc(w http.ResponseWriter, r *http.Request) {
	if s, e := h.findProc(r); e != nil {
		h.writeError(w, e)
	} else if err := s.Start(h.env); err != nil {
		h.writeError(w, &Error{http.StatusBadRequest, err.Error()})
	} else {
		h.writeJson(w, ok)
	}
}

func (h *Handler) stopProc(w http.ResponseWriter, r *http.Request) {
	if s, e := h.findProc(r); e != nil {
		h.writeError(w, e)
	} else {
		s.Stop()
		h.writeJson(w, ok)
	}
}

func (h *Handler) killProc(w http.ResponseWriter, r *http.Request) {
	if s, e := h.findProc(r); e != nil {
		h.writeError(w, e)
	} else {
		h.writeJson(w, &KillResult{Killed: s.Kill()})
	}
}

func (h *Handler) dumpProc(w http.ResponseWriter, r *http.Request) {
	if s, e := h.findProc(r); e != nil {
		h.writeError(w, e)
	} else {
		lines := s.DumpBuffer()
		if lines == nil {
			lines = []string{}
		}
		h.writeJson(w, lines)
	}
}

// getLog returns records newer than ?since=<id>.  With ?wait=<secs> it
// waits, up to MaxLogWait, for something newer to arrive.
func (h *Handler) getLog(w http.ResponseWriter, r *http.Request) {
	s, e := h.findProc(r)
	if e != nil {
		h.writeError(w, e)
		return
	}
	q := r.URL.Query()
	var since int64
	if v := q.Get("since"); v != "" {
		var err error
		if since, err = strconv.ParseInt(v, 10, 64); err != nil {
			h.writeError(w, &Error{http.StatusBadRequest, "bad since: " + v})
			return
		}
	}
	if v := q.Get("wait"); v != "" && since != 0 {
		secs, err := strconv.Atoi(v)
		if err != nil || secs < 0 {
			h.writeError(w, &Error{http.StatusBadRequest, "bad wait: " + v})
			return
		}
		wait := time.Duration(secs) * time.Second
		if wait > MaxLogWait {
			wait = MaxLogWait
		}
		s.Log().Watch(since, wait)
	}

	recs, id := s.Log().GetRecords(since)
	info := &LogInfo{Id: id, Records: []procvisor.LogRecord{}}
	for _, rec := range recs {
		if rec.Id > since {
			info.Records = append(info.Records, rec)
		}
	}
	w.Header().Set("Etag", strconv.FormatInt(id, 10))
	h.writeJson(w, info)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.r.ServeHTTP(w, req)
}

// NewHandler returns a Handler for the registry.  Processes started
// through it get env as their environment.
func NewHandler(reg *procvisor.Registry, env []string) *Handler {
	r := mux.NewRouter()
	h := &Handler{reg: reg, env: env, r: r}
	r.HandleFunc("/procs", h.listProcs).Methods("GET")
	r.HandleFunc("/procs/{name}", h.getProc).Methods("GET")
	r.HandleFunc("/procs/{name}/start", h.startProc).Methods("POST")
	r.HandleFunc("/procs/{name}/stop", h.stopProc).Methods("POST")
	r.HandleFunc("/procs/{name}/kill", h.killProc).Methods("POST")
	r.HandleFunc("/procs/{name}/dump", h.dumpProc).Methods("POST")
	r.HandleFunc("/procs/{name}/log", h.getLog).Methods("GET")
	return h
}
