// Package storyapitest provides an in-memory story API for tests.
//
//	api := storyapitest.NewServer(t)
//	api.AddUser("Rina", "rina@example.com", "rahasia123")
//	client := storyapi.New(storyapi.Options{BaseURL: api.URL})
package storyapitest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/pthm/hxnav/internal/storyapi"
)

// Server is a fake story API backed by memory.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	users    map[string]user // by email
	tokens   map[string]string
	stories  []storyapi.Story
	subs     map[string]storyapi.PushSubscription
	failWith int
	calls    map[string]int
	seq      int
}

type user struct {
	id, name, password string
}

// NewServer starts a Server closed at the end of the test.
func NewServer(t testing.TB) *Server {
	s := &Server{
		users:  make(map[string]user),
		tokens: make(map[string]string),
		subs:   make(map[string]storyapi.PushSubscription),
		calls:  make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /stories", s.handleList)
	mux.HandleFunc("GET /stories/{id}", s.handleDetail)
	mux.HandleFunc("POST /stories", s.handleAdd)
	mux.HandleFunc("POST /stories/guest", s.handleAdd)
	mux.HandleFunc("POST /notifications/subscribe", s.handleSubscribe)
	mux.HandleFunc("DELETE /notifications/subscribe", s.handleUnsubscribe)

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.Method+" "+r.URL.Path]++
		fail := s.failWith
		s.mu.Unlock()
		if fail != 0 {
			writeJSON(w, fail, map[string]any{"error": true, "message": http.StatusText(fail)})
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

// AddUser registers an account and returns its token.
func (s *Server) AddUser(name, email, password string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := fmt.Sprintf("user-%d", s.seq)
	s.users[email] = user{id: id, name: name, password: password}
	token := "token-" + id
	s.tokens[token] = id
	return token
}

// AddStory stores a story and returns it.
func (s *Server) AddStory(st storyapi.Story) storyapi.Story {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.ID == "" {
		s.seq++
		st.ID = fmt.Sprintf("story-%d", s.seq)
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC).Add(time.Duration(s.seq) * time.Minute)
	}
	s.stories = append(s.stories, st)
	return st
}

// Stories returns the stored stories.
func (s *Server) Stories() []storyapi.Story {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storyapi.Story, len(s.stories))
	copy(out, s.stories)
	return out
}

// Subscriptions returns the registered push endpoints.
func (s *Server) Subscriptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.subs))
	for ep := range s.subs {
		out = append(out, ep)
	}
	sort.Strings(out)
	return out
}

// FailWith makes every request answer with status until reset with 0.
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = status
}

// Calls returns how often "METHOD /path" was requested.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": true, "message": msg})
}

func (s *Server) auth(r *http.Request) (user, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tokens[token]
	if !ok {
		return user{}, false
	}
	for _, u := range s.users {
		if u.id == id {
			return u, true
		}
	}
	return user{}, false
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in struct{ Name, Email, Password string }
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		fail(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	_, taken := s.users[in.Email]
	s.mu.Unlock()
	if taken {
		fail(w, http.StatusBadRequest, "Email is already taken")
		return
	}
	s.AddUser(in.Name, in.Email, in.Password)
	writeJSON(w, http.StatusCreated, map[string]any{"error": false, "message": "User Created"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct{ Email, Password string }
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		fail(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	u, ok := s.users[in.Email]
	s.mu.Unlock()
	if !ok {
		fail(w, http.StatusUnauthorized, "User not found")
		return
	}
	if u.password != in.Password {
		fail(w, http.StatusUnauthorized, "Invalid password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"error":   false,
		"message": "success",
		"loginResult": map[string]string{
			"userId": u.id,
			"name":   u.name,
			"token":  "token-" + u.id,
		},
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.auth(r); !ok {
		fail(w, http.StatusUnauthorized, "Missing authentication")
		return
	}
	withLocation := r.URL.Query().Get("location") == "1"
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))

	out := []storyapi.Story{}
	for _, st := range s.Stories() {
		if withLocation && !st.HasLocation() {
			continue
		}
		out = append(out, st)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if size > 0 && len(out) > size {
		out = out[:size]
	}
	writeJSON(w, http.StatusOK, map[string]any{"error": false, "message": "Stories fetched successfully", "listStory": out})
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.auth(r); !ok {
		fail(w, http.StatusUnauthorized, "Missing authentication")
		return
	}
	for _, st := range s.Stories() {
		if st.ID == r.PathValue("id") {
			writeJSON(w, http.StatusOK, map[string]any{"error": false, "message": "Story fetched successfully", "story": st})
			return
		}
	}
	fail(w, http.StatusNotFound, "Story not found")
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	name := "Guest"
	if !strings.HasSuffix(r.URL.Path, "/guest") {
		u, ok := s.auth(r)
		if !ok {
			fail(w, http.StatusUnauthorized, "Missing authentication")
			return
		}
		name = u.name
	}
	if err := r.ParseMultipartForm(2 << 20); err != nil {
		fail(w, http.StatusBadRequest, "invalid form")
		return
	}
	f, _, err := r.FormFile("photo")
	if err != nil {
		fail(w, http.StatusBadRequest, "photo is required")
		return
	}
	defer f.Close()
	photo, _ := io.ReadAll(f)
	if len(photo) == 0 {
		fail(w, http.StatusBadRequest, "photo is required")
		return
	}

	st := storyapi.Story{
		Name:        name,
		Description: r.FormValue("description"),
		PhotoURL:    "https://example.test/photo.jpg",
	}
	if lat, err := strconv.ParseFloat(r.FormValue("lat"), 64); err == nil {
		st.Lat = &lat
	}
	if lon, err := strconv.ParseFloat(r.FormValue("lon"), 64); err == nil {
		st.Lon = &lon
	}
	s.AddStory(st)
	writeJSON(w, http.StatusCreated, map[string]any{"error": false, "message": "success"})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.auth(r); !ok {
		fail(w, http.StatusUnauthorized, "Missing authentication")
		return
	}
	var sub storyapi.PushSubscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil || sub.Endpoint == "" {
		fail(w, http.StatusBadRequest, "endpoint is required")
		return
	}
	s.mu.Lock()
	s.subs[sub.Endpoint] = sub
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"error": false, "message": "Success to subscribe web push notification."})
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.auth(r); !ok {
		fail(w, http.StatusUnauthorized, "Missing authentication")
		return
	}
	var in struct{ Endpoint string }
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		fail(w, http.StatusBadRequest, "endpoint is required")
		return
	}
	s.mu.Lock()
	delete(s.subs, in.Endpoint)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"error": false, "message": "Success to unsubscribe web push notification."})
}
