// Package fakeapi is an in-memory REST API used by tests. It serves any
// endpoint with the routes the remote store speaks: paginated lists, single
// reads, create/update by POST, delete, delete-multiple, search and file
// upload.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/mesh-intelligence/crudkit/pkg/hydrate"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// DefaultPerPage is the page size used when a request does not ask for one.
const DefaultPerPage = 10

// Server is a fake API backed by an httptest.Server.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	resources map[string]*resource
	calls     []string
	failures  []failure
	perPage   int
	token     string
}

type resource struct {
	nextID   int64
	items    map[int64]types.Record
	required []string
}

type failure struct {
	status int
	body   string
}

// New starts a server that is closed when t ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		resources: map[string]*resource{},
		perPage:   DefaultPerPage,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// SetPerPage changes the default page size.
func (s *Server) SetPerPage(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perPage = n
}

// RequireToken makes every request without "Authorization: Bearer token"
// fail with 401.
func (s *Server) RequireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Require makes creates and updates on endpoint fail with 422 unless each
// field is present and non-empty.
func (s *Server) Require(endpoint string, fields ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.resource(endpoint)
	r.required = append(r.required, fields...)
}

// FailNext makes the next n requests answer with status and body instead
// of being routed.
func (s *Server) FailNext(n, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for range n {
		s.failures = append(s.failures, failure{status: status, body: body})
	}
}

// Seed stores recs under endpoint. Records without an id get the next one.
func (s *Server) Seed(endpoint string, recs ...types.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.resource(endpoint)
	for _, rec := range recs {
		r.put(copyRecord(rec))
	}
}

// Items returns the stored records of endpoint ordered by id.
func (s *Server) Items(endpoint string) []types.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resource(endpoint).sorted()
}

// Calls returns "METHOD /path?query" for every request received.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// ResetCalls forgets the recorded calls.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

func (s *Server) resource(endpoint string) *resource {
	r, ok := s.resources[endpoint]
	if !ok {
		r = &resource{nextID: 1, items: map[int64]types.Record{}}
		s.resources[endpoint] = r
	}
	return r
}

func (r *resource) put(rec types.Record) int64 {
	id := hydrate.Map(rec).Int64("id", 0)
	if id == 0 {
		id = r.nextID
	}
	if id >= r.nextID {
		r.nextID = id + 1
	}
	rec["id"] = id
	r.items[id] = rec
	return id
}

func (r *resource) sorted() []types.Record {
	ids := make([]int64, 0, len(r.items))
	for id := range r.items {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]types.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyRecord(r.items[id]))
	}
	return out
}

func (r *resource) missing(rec types.Record) map[string][]string {
	errs := map[string][]string{}
	for _, f := range r.required {
		if v, ok := rec[f]; !ok || v == nil || v == "" {
			errs[f] = []string{f + " is required"}
		}
	}
	return errs
}

func (s *Server) serve(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call := req.Method + " " + req.URL.Path
	if req.URL.RawQuery != "" {
		call += "?" + req.URL.RawQuery
	}
	s.calls = append(s.calls, call)

	if s.token != "" && req.Header.Get("Authorization") != "Bearer "+s.token {
		writeJSON(w, http.StatusUnauthorized, types.Record{"message": "unauthenticated"})
		return
	}
	if len(s.failures) > 0 {
		f := s.failures[0]
		s.failures = s.failures[1:]
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, f.body)
		return
	}

	parts := strings.Split(strings.Trim(req.URL.Path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeJSON(w, http.StatusNotFound, types.Record{"message": "no resource"})
		return
	}
	r := s.resource(parts[0])

	switch {
	case len(parts) == 1 && req.Method == http.MethodGet:
		s.list(w, req, r.sorted())
	case len(parts) == 1 && req.Method == http.MethodPost:
		s.create(w, req, r)
	case len(parts) == 2 && parts[1] == "search" && req.Method == http.MethodPost:
		s.search(w, req, r)
	case len(parts) == 2 && parts[1] == "delete-multiple" && req.Method == http.MethodPost:
		s.deleteMultiple(w, req, r)
	case len(parts) == 2:
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, types.Record{"message": "bad id"})
			return
		}
		s.item(w, req, r, id)
	case len(parts) == 3 && parts[2] == "files" && req.Method == http.MethodPost:
		s.files(w, req)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, types.Record{"message": "method not allowed"})
	}
}

func (s *Server) item(w http.ResponseWriter, req *http.Request, r *resource, id int64) {
	rec, ok := r.items[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, types.Record{"message": fmt.Sprintf("%d not found", id)})
		return
	}
	switch req.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, types.Record{"data": rec})
	case http.MethodPost:
		body, ok := readRecord(w, req)
		if !ok {
			return
		}
		if errs := r.missing(body); len(errs) > 0 {
			writeJSON(w, http.StatusUnprocessableEntity, types.Record{"message": "invalid", "errors": errs})
			return
		}
		body["id"] = id
		r.items[id] = body
		writeJSON(w, http.StatusOK, types.Record{"id": id})
	case http.MethodDelete:
		delete(r.items, id)
		writeJSON(w, http.StatusOK, types.Record{"deleted": 1})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, types.Record{"message": "method not allowed"})
	}
}

func (s *Server) create(w http.ResponseWriter, req *http.Request, r *resource) {
	body, ok := readRecord(w, req)
	if !ok {
		return
	}
	if errs := r.missing(body); len(errs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, types.Record{"message": "invalid", "errors": errs})
		return
	}
	delete(body, "id")
	r.put(body)
	writeJSON(w, http.StatusCreated, types.Record{"data": copyRecord(body)})
}

func (s *Server) search(w http.ResponseWriter, req *http.Request, r *resource) {
	criteria, ok := readRecord(w, req)
	if !ok {
		return
	}
	var matches []types.Record
	for _, rec := range r.sorted() {
		if matchAll(rec, criteria) {
			matches = append(matches, rec)
		}
	}
	if req.URL.Query().Get("paginate") == "off" {
		if matches == nil {
			matches = []types.Record{}
		}
		writeJSON(w, http.StatusOK, types.Record{"data": matches})
		return
	}
	s.list(w, req, matches)
}

func (s *Server) deleteMultiple(w http.ResponseWriter, req *http.Request, r *resource) {
	body, ok := readRecord(w, req)
	if !ok {
		return
	}
	n := 0
	for _, id := range hydrate.Map(body).Int64s("ids") {
		if _, ok := r.items[id]; ok {
			delete(r.items, id)
			n++
		}
	}
	writeJSON(w, http.StatusOK, types.Record{"deleted": n})
}

func (s *Server) files(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, types.Record{"message": err.Error()})
		return
	}
	var names []string
	for _, headers := range req.MultipartForm.File {
		for _, h := range headers {
			names = append(names, h.Filename)
		}
	}
	slices.Sort(names)
	writeJSON(w, http.StatusOK, types.Record{"uploaded": names})
}

func (s *Server) list(w http.ResponseWriter, req *http.Request, all []types.Record) {
	q := req.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	page = max(page, 1)
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if perPage < 1 {
		perPage = s.perPage
	}

	total := len(all)
	lastPage := max((total+perPage-1)/perPage, 1)
	from := min((page-1)*perPage, total)
	to := min(from+perPage, total)
	data := all[from:to]
	if data == nil {
		data = []types.Record{}
	}
	writeJSON(w, http.StatusOK, types.Record{
		types.PageKeyCurrentPage: page,
		types.PageKeyPerPage:     perPage,
		types.PageKeyFrom:        from + 1,
		types.PageKeyTo:          to,
		types.PageKeyTotal:       total,
		types.PageKeyLastPage:    lastPage,
		types.PageKeyData:        data,
	})
}

func matchAll(rec, criteria types.Record) bool {
	for k, want := range criteria {
		if fmt.Sprint(rec[k]) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func readRecord(w http.ResponseWriter, req *http.Request) (types.Record, bool) {
	data, err := io.ReadAll(req.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, types.Record{"message": err.Error()})
		return nil, false
	}
	if len(data) == 0 {
		return types.Record{}, true
	}
	rec, err := hydrate.Decode(data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, types.Record{"message": err.Error()})
		return nil, false
	}
	if rec == nil {
		rec = types.Record{}
	}
	return rec, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func copyRecord(rec types.Record) types.Record {
	out := make(types.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
