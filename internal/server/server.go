// Package server wires the stories app together: the hxnav host that
// drives page navigation, the shell document, push subscription and
// logout endpoints, static assets, health and metrics.
package server

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/pthm/hxnav"
	"github.com/pthm/hxnav/internal/authstore"
	"github.com/pthm/hxnav/internal/config"
	"github.com/pthm/hxnav/internal/device"
	"github.com/pthm/hxnav/internal/logging"
	"github.com/pthm/hxnav/internal/mapview"
	"github.com/pthm/hxnav/internal/metrics"
	"github.com/pthm/hxnav/internal/pages"
	"github.com/pthm/hxnav/internal/storyapi"
	"github.com/pthm/hxnav/internal/storycache"
)

// LogoutPath is where the logout button posts.
const LogoutPath = "/logout"

// Server is the stories web server.
type Server struct {
	cfg *config.Config
	log *zerolog.Logger

	api     *storyapi.Client
	stories *storycache.Source
	auth    *authstore.Store
	maps    *mapview.Library
	metrics *metrics.Metrics
	host    *hxnav.Host

	handler http.Handler
}

// New builds a Server over db, which holds auth records and the offline
// story cache.
func New(cfg *config.Config, db *badger.DB) (*Server, error) {
	key, err := cookieKey(cfg.Server.CookieKey)
	if err != nil {
		return nil, err
	}
	if dir := cfg.UI.StagingDir; dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("server: staging dir: %w", err)
		}
	}

	m := metrics.New()
	api := storyapi.New(storyapi.Options{
		BaseURL:         cfg.API.BaseURL,
		Timeout:         cfg.API.Timeout,
		BreakerFailures: cfg.API.BreakerFailures,
		BreakerTimeout:  cfg.API.BreakerTimeout,
		Logger:          logging.Component("storyapi"),
		OnStateChange:   m.BreakerChanged,
	})
	stories := storycache.New(api, db, cfg.Storage.CacheTTL)
	stories.OnFallback = m.CacheFallback

	s := &Server{
		cfg:     cfg,
		log:     logging.Component("server"),
		api:     api,
		stories: stories,
		auth:    authstore.New(db),
		maps:    mapview.NewLibrary(),
		metrics: m,
	}

	host := hxnav.NewHost(key, cfg.Server.BasePath, s.newApp)
	host.Secure = cfg.Server.SecureCookie
	host.Sensitive = cfg.Server.SealCookie
	host.IdleTimeout = cfg.Server.IdleTimeout
	host.SlotTimeout = cfg.Server.SlotTimeout
	host.Logger = logging.Component("hxnav")
	writeError := host.OnError
	host.OnError = func(w http.ResponseWriter, r *http.Request, err error) {
		logging.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, r, err)
	}
	s.host = host
	m.SessionsFunc(host.Len)

	s.handler = s.routes()
	return s, nil
}

// cookieKey returns the configured key, or a random one: sessions then
// end with the process.
func cookieKey(configured string) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("server: generating cookie key: %w", err)
	}
	return key, nil
}

// newApp is the hxnav.Factory: every browser session gets its own pages
// bound to its auth record and its own camera, which holds what that
// browser reported.
func (s *Server) newApp(ctx context.Context, sessionID string, r *http.Request) (*hxnav.App, error) {
	auth := s.auth.For(sessionID)
	log := s.log.With().Str("session_id", sessionID).Logger()

	table, err := pages.Routes(pages.Deps{
		API:          s.api,
		Stories:      s.stories,
		Auth:         auth,
		Camera:       device.NewStagingCamera(s.cfg.UI.StagingDir),
		Maps:         s.maps,
		Language:     s.cfg.UI.Language,
		PageSize:     s.cfg.API.PageSize,
		MaxPhotoSize: s.cfg.UI.MaxPhotoSize,
		Logger:       &log,
	})
	if err != nil {
		return nil, fmt.Errorf("server: building routes: %w", err)
	}

	swapper := hxnav.ProbeSwapper(r)
	_, transitions := swapper.(hxnav.TransitionSwap)
	log.Debug().Bool("transitions", transitions).Msg("session started")

	return hxnav.New(table, hxnav.Options{
		BasePath: s.cfg.Server.BasePath,
		Swapper:  swapper,
		Nav:      pages.Nav(auth, LogoutPath),
		Logger:   &log,
		Observer: s.metrics,
	}), nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Host returns the session host.
func (s *Server) Host() *hxnav.Host {
	return s.host
}

// Run serves until ctx is done, then shuts down gracefully: in-flight
// requests finish and every session is torn down, releasing cameras and
// maps.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	swept := make(chan struct{})
	go func() {
		s.host.Run(sweepCtx, s.cfg.Server.SweepInterval)
		close(swept)
	}()
	defer func() {
		stopSweep()
		<-swept
	}()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Str("api", s.cfg.API.BaseURL).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
