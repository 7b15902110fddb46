// Package passtest runs an in-process fake of the PASS REST API.
package passtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
)

// Server is a fake PASS deployment: a Fedora-like container tree at /fcrepo/rest/
// and a search endpoint at /fcrepo/rest/_search.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	resources map[string]map[string]interface{}
	order     []string
	seq       int
	requests  map[string]int

	// FailWith, when non-zero, is returned for every request.
	FailWith int
}

// NewServer starts a fake server that is closed with the test.
func NewServer(t testing.TB) *Server {
	s := &Server{
		resources: make(map[string]map[string]interface{}),
		requests:  make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the container root to configure clients with.
func (s *Server) BaseURL() string {
	return s.URL + "/fcrepo/rest/"
}

// Requests returns how many requests with method reached the server.
func (s *Server) Requests(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[method]
}

// Len returns how many resources of type are stored.
func (s *Server) Len(resourceType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, doc := range s.resources {
		if doc["@type"] == resourceType {
			n++
		}
	}
	return n
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.Method]++

	if s.FailWith != 0 {
		w.WriteHeader(s.FailWith)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/fcrepo/rest/")
	switch {
	case path == "_search" && r.Method == http.MethodPost:
		s.search(w, r)
	case !strings.Contains(path, "/") && r.Method == http.MethodPost:
		s.create(w, r, path)
	case r.Method == http.MethodGet:
		s.read(w, r)
	case r.Method == http.MethodPut:
		s.replace(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) create(w http.ResponseWriter, r *http.Request, container string) {
	var doc map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.seq++
	uri := fmt.Sprintf("%s/fcrepo/rest/%s/%d", s.URL, container, s.seq)
	doc["@id"] = uri
	s.resources[uri] = doc
	s.order = append(s.order, uri)
	w.Header().Set("Location", uri)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) read(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.resources[s.URL+r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}

func (s *Server) replace(w http.ResponseWriter, r *http.Request) {
	uri := s.URL + r.URL.Path
	if _, ok := s.resources[uri]; !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var doc map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	doc["@id"] = uri
	s.resources[uri] = doc
	w.WriteHeader(http.StatusNoContent)
}

type query struct {
	Query struct {
		Bool struct {
			Filter []map[string]map[string]string `json:"filter"`
		} `json:"bool"`
	} `json:"query"`
	Size int `json:"size"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var q query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	hits := []map[string]interface{}{}
	for _, uri := range s.order {
		if q.Size > 0 && len(hits) >= q.Size {
			break
		}
		if matches(s.resources[uri], q.Query.Bool.Filter) {
			hits = append(hits, map[string]interface{}{"_source": map[string]string{"@id": uri}})
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"hits": map[string]interface{}{"hits": hits},
	})
}

func matches(doc map[string]interface{}, filters []map[string]map[string]string) bool {
	for _, f := range filters {
		for field, want := range f["term"] {
			switch v := doc[field].(type) {
			case string:
				if v != want {
					return false
				}
			case []interface{}:
				if !slices.ContainsFunc(v, func(e interface{}) bool { return e == want }) {
					return false
				}
			default:
				return false
			}
		}
	}
	return true
}
