package hxnav

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultCookieName is the session cookie set by the Host.
const DefaultCookieName = "hxnav_session"

// Factory builds the App of a new browser session. It runs on the first
// request of the session, which is where the shell's capability header is
// probed (see ProbeSwapper).
type Factory func(ctx context.Context, sessionID string, r *http.Request) (*App, error)

// Host serves the App endpoints for every browser session.
//
// Sessions are keyed by a signed cookie. Each session owns one App, so a
// session's navigations and actions are serialised while different
// sessions run independently.
//
//	host := hxnav.NewHost(key, "/_", factory)
//	router.Handle("/_/*", host.Handler())
//	go host.Run(ctx, time.Minute)
type Host struct {
	mu       sync.Mutex
	mux      *http.ServeMux
	sealer   *Sealer
	factory  Factory
	base     string
	sessions map[string]*session

	// CookieName is the name of the session cookie.
	CookieName string

	// Secure marks the cookie Secure. Enable behind HTTPS.
	Secure bool

	// Sensitive seals the cookie with AES-GCM instead of signing it.
	Sensitive bool

	// IdleTimeout evicts sessions without requests for this long.
	IdleTimeout time.Duration

	// SlotTimeout bounds how long a deferred slot request waits before
	// answering with a placeholder that polls again.
	SlotTimeout time.Duration

	// Logger receives session lifecycle events.
	Logger *zerolog.Logger

	// OnError is called when a request fails.
	// Customize this to handle errors appropriately for your application.
	OnError func(http.ResponseWriter, *http.Request, error)
}

type session struct {
	app      *App
	lastSeen time.Time
}

type cookieValue struct {
	ID     string `msgpack:"id"`
	Issued int64  `msgpack:"iat"`
}

// NewHost creates a Host serving under base with the given cookie key.
func NewHost(key []byte, base string, factory Factory) *Host {
	sealer, err := NewSealer(key)
	if err != nil {
		panic(fmt.Sprintf("hxnav: failed to create cookie sealer: %v", err))
	}
	if base == "" {
		base = DefaultBasePath
	}
	nop := zerolog.Nop()

	h := &Host{
		mux:         http.NewServeMux(),
		sealer:      sealer,
		factory:     factory,
		base:        base,
		sessions:    make(map[string]*session),
		CookieName:  DefaultCookieName,
		IdleTimeout: 30 * time.Minute,
		SlotTimeout: 25 * time.Second,
		Logger:      &nop,
	}

	// Default error handler
	h.OnError = func(w http.ResponseWriter, r *http.Request, err error) {
		switch {
		case IsNotFound(err), errors.Is(err, ErrNoAction):
			http.Error(w, "Not found", http.StatusNotFound)
		case IsDecryptionError(err), errors.Is(err, ErrInvalidFormat):
			http.Error(w, "Bad request", http.StatusBadRequest)
		case IsStale(err):
			http.Error(w, "Page has changed", http.StatusConflict)
		case errors.Is(err, ErrClosed), errors.Is(err, ErrNoSession):
			http.Error(w, "Session expired", http.StatusGone)
		default:
			http.Error(w, "Internal error", http.StatusInternalServerError)
		}
	}

	h.mux.HandleFunc("GET "+base+"/nav", h.handleNav)
	h.mux.HandleFunc("GET "+base+"/slot/{gen}/{id}", h.handleSlot)
	for _, m := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		h.mux.HandleFunc(m+" "+base+"/a/{action}", h.handleAction)
	}
	return h
}

// Handler returns the HTTP handler for the App endpoints.
func (h *Host) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// CSRF protection: mutating methods require HX-Request header
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			if !IsHTMX(r) {
				http.Error(w, "Forbidden: HTMX request required", http.StatusForbidden)
				return
			}
		}

		h.mux.ServeHTTP(w, r)
	})
}

// Session returns the session of the request, creating it (and setting
// the cookie) when the request has none or its session was evicted.
func (h *Host) Session(w http.ResponseWriter, r *http.Request) (string, *App, error) {
	now := time.Now()

	id, known := h.cookieID(r)
	if known {
		h.mu.Lock()
		s := h.sessions[id]
		if s != nil {
			s.lastSeen = now
		}
		h.mu.Unlock()
		if s != nil {
			return id, s.app, nil
		}
	} else {
		id = uuid.NewString()
	}

	// An evicted session keeps its id, so state stored under it (such as
	// the auth token) survives until the cookie itself goes away.
	app, err := h.factory(r.Context(), id, r)
	if err != nil {
		return "", nil, fmt.Errorf("hxnav: create session: %w", err)
	}

	if !known {
		value, err := h.sealer.Seal(cookieValue{ID: id, Issued: now.Unix()}, h.Sensitive)
		if err != nil {
			return "", nil, fmt.Errorf("hxnav: encode session cookie: %w", err)
		}
		http.SetCookie(w, &http.Cookie{
			Name:     h.CookieName,
			Value:    value,
			Path:     "/",
			MaxAge:   int((365 * 24 * time.Hour).Seconds()),
			HttpOnly: true,
			Secure:   h.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}

	h.mu.Lock()
	if s := h.sessions[id]; s != nil {
		// Lost a race with a concurrent first request of the same session.
		h.mu.Unlock()
		_ = app.Close(r.Context())
		return id, s.app, nil
	}
	h.sessions[id] = &session{app: app, lastSeen: now}
	h.mu.Unlock()

	h.Logger.Debug().Str("session", id).Msg("session created")
	return id, app, nil
}

// Lookup returns the App of an existing session without creating one.
func (h *Host) Lookup(r *http.Request) (string, *App, error) {
	id, ok := h.cookieID(r)
	if !ok {
		return "", nil, ErrNoSession
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.sessions[id]
	if s == nil {
		return "", nil, ErrNoSession
	}
	s.lastSeen = time.Now()
	return id, s.app, nil
}

func (h *Host) cookieID(r *http.Request) (string, bool) {
	c, err := r.Cookie(h.CookieName)
	if err != nil {
		return "", false
	}
	var v cookieValue
	if err := h.sealer.Open(c.Value, h.Sensitive, &v); err != nil {
		h.Logger.Debug().Err(wrapEncodingError(err)).Msg("rejecting session cookie")
		return "", false
	}
	return v.ID, v.ID != ""
}

// Len returns the number of live sessions.
func (h *Host) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Sweep closes sessions idle since before now minus IdleTimeout and
// returns how many were evicted.
func (h *Host) Sweep(ctx context.Context, now time.Time) int {
	h.mu.Lock()
	var idle []*App
	for id, s := range h.sessions {
		if now.Sub(s.lastSeen) > h.IdleTimeout {
			idle = append(idle, s.app)
			delete(h.sessions, id)
		}
	}
	h.mu.Unlock()

	for _, app := range idle {
		if err := app.Close(ctx); err != nil {
			h.Logger.Warn().Err(err).Msg("closing idle session")
		}
	}
	if len(idle) > 0 {
		h.Logger.Debug().Int("evicted", len(idle)).Msg("swept idle sessions")
	}
	return len(idle)
}

// Run sweeps idle sessions every interval until ctx is done, then closes
// every remaining session.
func (h *Host) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			h.Close(closeCtx)
			cancel()
			return
		case now := <-ticker.C:
			h.Sweep(ctx, now)
		}
	}
}

// Close tears down every session.
func (h *Host) Close(ctx context.Context) {
	h.mu.Lock()
	apps := make([]*App, 0, len(h.sessions))
	for id, s := range h.sessions {
		apps = append(apps, s.app)
		delete(h.sessions, id)
	}
	h.mu.Unlock()

	for _, app := range apps {
		if err := app.Close(ctx); err != nil {
			h.Logger.Warn().Err(err).Msg("closing session")
		}
	}
}

// handleNav runs a navigation and answers with the region markup plus
// out-of-band nav and overlay updates.
func (h *Host) handleNav(w http.ResponseWriter, r *http.Request) {
	_, app, err := h.Session(w, r)
	if err != nil {
		h.OnError(w, r, err)
		return
	}

	fragment := CurrentFragment(r)
	if q := r.URL.Query(); q.Has("f") {
		fragment = q.Get("f")
	}

	if err := app.RenderPage(r.Context(), fragment); err != nil {
		h.OnError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := app.Region().Render(r.Context(), &buf); err != nil {
		h.OnError(w, r, err)
		return
	}
	if err := app.WriteUpdates(r.Context(), &buf, true); err != nil {
		h.OnError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("HX-Retarget", "#"+app.Region().ID())
	w.Header().Set("HX-Reswap", app.Swapper().Reswap())
	if trigger := BuildTriggerHeader(withEffects(OK(), app.TakeEffects())); trigger != "" {
		w.Header().Set("HX-Trigger", trigger)
	}
	_, _ = w.Write(buf.Bytes())
}

// handleAction dispatches a form post to the mounted page.
func (h *Host) handleAction(w http.ResponseWriter, r *http.Request) {
	_, app, err := h.Lookup(r)
	if err != nil {
		h.OnError(w, r, err)
		return
	}

	gen, err := strconv.ParseUint(r.FormValue(FieldGen), 10, 64)
	if err != nil {
		h.OnError(w, r, fmt.Errorf("%w: bad %s", ErrInvalidFormat, FieldGen))
		return
	}

	res, err := app.Act(r.Context(), r.FormValue(FieldRoute), gen, r.PathValue("action"), r)
	if err != nil {
		h.OnError(w, r, err)
		return
	}
	if res.GetErr() != nil {
		h.OnError(w, r, res.GetErr())
		return
	}

	for _, f := range res.GetFlashes() {
		app.Overlay().Flash(f.Level, f.Message)
	}

	var buf bytes.Buffer
	if err := app.WriteUpdates(r.Context(), &buf, false); err != nil {
		h.OnError(w, r, err)
		return
	}

	for k, v := range res.GetHeaders() {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if trigger := BuildTriggerHeader(withEffects(res, app.TakeEffects())); trigger != "" {
		w.Header().Set("HX-Trigger", trigger)
	}
	if status := res.GetStatus(); status != 0 {
		w.WriteHeader(status)
	}
	_, _ = w.Write(buf.Bytes())
}

// handleSlot long-polls a deferred slot fill.
func (h *Host) handleSlot(w http.ResponseWriter, r *http.Request) {
	_, app, err := h.Lookup(r)
	if err != nil {
		h.OnError(w, r, err)
		return
	}

	gen, err := strconv.ParseUint(r.PathValue("gen"), 10, 64)
	if err != nil {
		h.OnError(w, r, fmt.Errorf("%w: bad slot generation", ErrInvalidFormat))
		return
	}
	id := r.PathValue("id")

	ctx, cancel := context.WithTimeout(r.Context(), h.SlotTimeout)
	defer cancel()

	c, err := app.Await(ctx, gen, id)
	switch {
	case IsStale(err):
		// The page is gone; nothing to swap.
		w.WriteHeader(http.StatusNoContent)
		return
	case errors.Is(err, context.DeadlineExceeded):
		// Still loading: answer with a placeholder that polls again.
		view := regionView{gen: gen, base: h.base}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = pendingSlot(view, id, stillLoading).Render(r.Context(), w)
		return
	case err != nil:
		h.OnError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if c != nil {
		if err := c.Render(r.Context(), &buf); err != nil {
			h.OnError(w, r, err)
			return
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

var stillLoading = templ.Raw(`<p class="slot-loading" aria-busy="true">Loading...</p>`)

func withEffects(res Result, e Effects) Result {
	if e.Navigate != "" && res.GetNavigate() == "" {
		res = res.Navigate(e.Navigate)
	}
	if e.Reload {
		res = res.Reload()
	}
	return res
}
