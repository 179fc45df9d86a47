package server

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/pthm/hxnav"
	"github.com/pthm/hxnav/internal/logging"
	"github.com/pthm/hxnav/internal/pages"
)

const htmxSrc = "https://unpkg.com/htmx.org@2.0.4/dist/htmx.min.js"

// shellView is what the shell document needs from the session.
type shellView struct {
	Base     string
	Region   string
	VAPIDKey string
	LoggedIn bool
	Links    []hxnav.NavLink
	Overlay  *hxnav.Overlay
}

// handleShell serves the single document every page renders into. The
// session is not created here: the first navigation request creates it,
// carrying the browser's capability header.
func (s *Server) handleShell(w http.ResponseWriter, r *http.Request) {
	view := shellView{
		Base:     s.cfg.Server.BasePath,
		Region:   hxnav.DefaultRegionID,
		VAPIDKey: s.cfg.UI.VAPIDKey,
	}

	id, app, err := s.host.Lookup(r)
	if err == nil {
		auth := s.auth.For(id)
		view.LoggedIn = auth.IsLoggedIn()
		view.Region = app.Region().ID()
		view.Overlay = app.Overlay()
		view.Links = app.Nav()
		if len(view.Links) == 0 {
			view.Links = pages.Nav(auth, LogoutPath)(r.Context())
		}
	} else {
		view.Links = pages.Nav(guest{}, LogoutPath)(r.Context())
	}

	w.Header().Set("Cache-Control", "no-store")
	if err := hxnav.Render(w, r, shell(view)); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("rendering shell")
	}
}

func shell(v shellView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var sb strings.Builder
		sb.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		sb.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		sb.WriteString(`<meta name="theme-color" content="#2d6a4f">`)
		sb.WriteString(`<title>Dicoding Stories</title>`)
		sb.WriteString(`<link rel="manifest" href="/manifest.webmanifest">`)
		sb.WriteString(`<link rel="stylesheet" href="/static/styles.css">`)
		sb.WriteString(`<script src="` + htmxSrc + `" defer></script>`)
		sb.WriteString(`<script src="/static/app.js" defer></script>`)
		sb.WriteString(`</head><body`)
		attr(&sb, "data-base", v.Base)
		attr(&sb, "data-region", v.Region)
		attr(&sb, "data-vapid-key", v.VAPIDKey)
		attr(&sb, "data-logged-in", strconv.FormatBool(v.LoggedIn))
		attr(&sb, "data-capability-header", hxnav.CapabilityHeader)
		sb.WriteString(`>`)

		sb.WriteString(`<a href="#` + templ.EscapeString(v.Region) + `" class="skip-link">Skip to content</a>`)
		sb.WriteString(`<header class="app-header"><div class="container header-inner">`)
		sb.WriteString(`<a href="#/" class="brand">Dicoding Stories</a>`)
		sb.WriteString(`<button id="drawer-button" class="drawer-button" type="button" aria-label="Open navigation" aria-controls="navigation-drawer" aria-expanded="false">&#9776;</button>`)
		sb.WriteString(`<nav id="navigation-drawer" class="navigation-drawer" aria-label="Main">`)
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
		sb.Reset()

		if err := hxnav.NavList(v.Links, false).Render(ctx, w); err != nil {
			return err
		}

		sb.WriteString(`</nav></div></header>`)
		sb.WriteString(`<main id="` + templ.EscapeString(v.Region) + `" class="container" tabindex="-1">`)
		sb.WriteString(`<p class="loading">Loading...</p></main>`)
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
		sb.Reset()

		if err := hxnav.OverlayContainer(v.Overlay).Render(ctx, w); err != nil {
			return err
		}

		if !v.LoggedIn {
			sb.WriteString(`<dialog id="welcome-modal" class="modal" data-show-modal="welcome">`)
			sb.WriteString(`<h2>Welcome to Dicoding Stories</h2>`)
			sb.WriteString(`<p>Share your moments with the community. Log in to see stories from everyone.</p>`)
			sb.WriteString(`<div class="modal-actions">`)
			sb.WriteString(`<a href="#/login" class="btn btn-primary" data-close-modal>Login</a>`)
			sb.WriteString(`<button type="button" class="btn btn-secondary" data-close-modal>Maybe later</button>`)
			sb.WriteString(`</div></dialog>`)
		}
		sb.WriteString(`<footer class="app-footer"><div class="container">`)
		sb.WriteString(`<p>&copy; Dicoding Stories</p></div></footer>`)
		sb.WriteString(`</body></html>`)
		_, err := io.WriteString(w, sb.String())
		return err
	})
}

func attr(sb *strings.Builder, name, value string) {
	sb.WriteString(` ` + name + `="`)
	sb.WriteString(templ.EscapeString(value))
	sb.WriteString(`"`)
}

// guest is the login state of a browser without a session.
type guest struct{}

func (guest) IsLoggedIn() bool { return false }
