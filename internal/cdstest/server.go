// Package cdstest provides a fake CDS API server and NetCDF fixtures for
// tests.
package cdstest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
)

// Credentials accepted by the fake server.
const (
	User = "12345"
	Key  = User + ":secret"
)

// Request is a request received by the server.
type Request struct {
	Dataset string
	Params  map[string]any
}

// ResultFunc returns the path of the file answering a request, or an error
// that turns the task into a failed one.
type ResultFunc func(dataset string, params map[string]any) (string, error)

type task struct {
	polls int
	path  string
	err   error
}

// Server is a fake legacy CDS API. Each task reports "running" for Polls
// state requests before completing.
type Server struct {
	*httptest.Server
	Polls int

	result   ResultFunc
	mu       sync.Mutex
	requests []Request
	tasks    map[string]*task
}

// NewServer starts a server answering requests with result. It is closed
// when the test ends.
func NewServer(t testing.TB, result ResultFunc) *Server {
	s := &Server{result: result, tasks: map[string]*task{}}
	router := mux.NewRouter()
	router.Path("/resources/{name}").Methods(http.MethodPost).HandlerFunc(s.submit)
	router.Path("/tasks/{id}").Methods(http.MethodGet).HandlerFunc(s.state)
	router.Path("/download/{id}").Methods(http.MethodGet).HandlerFunc(s.download)
	s.Server = httptest.NewServer(s.authorized(router))
	t.Cleanup(s.Close)
	return s
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) authorized(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !strings.HasPrefix(req.URL.Path, "/download/") {
			user, key, ok := req.BasicAuth()
			if !ok || user+":"+key != Key {
				reply(w, http.StatusUnauthorized, map[string]any{
					"error": map[string]any{"message": "Authentication failed", "reason": "invalid key"},
				})
				return
			}
		}
		next.ServeHTTP(w, req)
	})
}

func (s *Server) submit(w http.ResponseWriter, req *http.Request) {
	var params map[string]any
	if err := json.NewDecoder(req.Body).Decode(&params); err != nil {
		reply(w, http.StatusBadRequest, map[string]any{
			"error": map[string]any{"message": "Bad request", "reason": err.Error()},
		})
		return
	}
	name := mux.Vars(req)["name"]
	path, err := s.result(name, params)

	s.mu.Lock()
	s.requests = append(s.requests, Request{Dataset: name, Params: params})
	id := fmt.Sprintf("task-%d", len(s.requests))
	tk := &task{polls: s.Polls, path: path, err: err}
	s.tasks[id] = tk
	s.mu.Unlock()

	reply(w, http.StatusAccepted, s.reply(id, tk))
}

func (s *Server) state(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	s.mu.Lock()
	tk, ok := s.tasks[id]
	if ok && tk.polls > 0 {
		tk.polls--
	}
	s.mu.Unlock()
	if !ok {
		reply(w, http.StatusNotFound, map[string]any{
			"error": map[string]any{"message": "Not found", "reason": "no task " + id},
		})
		return
	}
	reply(w, http.StatusOK, s.reply(id, tk))
}

func (s *Server) reply(id string, tk *task) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := map[string]any{"request_id": id}
	switch {
	case tk.polls > 0:
		r["state"] = "running"
	case tk.err != nil:
		r["state"] = "failed"
		r["error"] = map[string]any{"message": "the request you have submitted is not valid", "reason": tk.err.Error()}
	default:
		r["state"] = "completed"
		r["location"] = s.URL + "/download/" + id
	}
	return r
}

func (s *Server) download(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	tk, ok := s.tasks[mux.Vars(req)["id"]]
	s.mu.Unlock()
	if !ok || tk.err != nil || tk.polls > 0 {
		http.NotFound(w, req)
		return
	}
	http.ServeFile(w, req, tk.path)
}

func reply(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
