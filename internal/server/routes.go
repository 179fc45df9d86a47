package server

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"

	"github.com/pthm/hxnav"
	"github.com/pthm/hxnav/internal/logging"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)

	r.Get("/", s.handleShell)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	// Assets
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(assets))))
	r.Get("/sw.js", serveAsset("sw.js", "text/javascript; charset=utf-8", map[string]string{
		"Service-Worker-Allowed": "/",
		"Cache-Control":          "no-cache",
	}))
	r.Get("/manifest.webmanifest", serveAsset("manifest.webmanifest", "application/manifest+json", nil))

	r.Post(LogoutPath, s.handleLogout)
	r.With(requireHTMX).Post("/push/subscribe", s.handleSubscribe)
	r.With(requireHTMX).Delete("/push/subscribe", s.handleUnsubscribe)

	// Form submissions talk to the story API with user credentials, so
	// they are rate limited per client.
	base := s.cfg.Server.BasePath
	nav := s.host.Handler()
	r.With(s.limitSubmissions()).Post(base+"/a/submit", nav.ServeHTTP)
	r.Handle(base+"/*", nav)

	return r
}

// requestID tags the request context with the X-Request-ID header, or a
// fresh id, and echoes it back.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = logging.NewRequestID()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log := logging.Ctx(r.Context())
		ev := log.Info()
		switch {
		case ww.Status() >= http.StatusInternalServerError:
			ev = log.Error()
		case quiet(r.URL.Path):
			ev = log.Debug()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}

// quiet paths are polled and logged at debug level.
func quiet(path string) bool {
	return path == "/healthz" || path == "/metrics" || strings.HasPrefix(path, "/static/")
}

// requireHTMX rejects requests without the HX-Request header the shell
// sends, which cross-site forms cannot set.
func requireHTMX(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !hxnav.IsHTMX(r) {
			http.Error(w, "Forbidden: HTMX request required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limitSubmissions() func(http.Handler) http.Handler {
	l := s.cfg.Limits
	if l.AuthRequests == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(l.AuthRequests, l.AuthWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(tooManyRequests),
	)
}

// tooManyRequests answers with an error toast; the shell script lets
// HTMX swap 429 responses.
func tooManyRequests(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = io.WriteString(w, hxnav.RenderFlashesOOB([]hxnav.Flash{{
		Level:   hxnav.FlashError,
		Message: "Too many attempts. Please wait a moment and try again.",
	}}))
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	API      string `json:"api"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Sessions: s.host.Len(),
		API:      s.api.State(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
