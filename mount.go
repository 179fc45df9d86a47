package hxnav

import (
	"context"
	"errors"

	"github.com/a-h/templ"
	"github.com/rs/zerolog"
)

// Mount is a page's handle on the session while it is mounted. One Mount
// is created per visit and handed to AfterRender and every action of that
// visit. Once the visit ends, fills through it return ErrStale and its
// context is cancelled.
type Mount struct {
	app   *App
	visit Visit
	ctx   context.Context
}

// Context returns the visit context. It is cancelled when the page is torn
// down, which aborts deferred loads still running.
func (m *Mount) Context() context.Context {
	return m.ctx
}

// Visit returns the visit this mount belongs to.
func (m *Mount) Visit() Visit {
	return m.visit
}

// Param returns a captured route parameter.
func (m *Mount) Param(name string) string {
	return m.visit.Param(name)
}

// Current reports whether this visit is still the mounted one.
func (m *Mount) Current() bool {
	return m.app.live.Load() == m
}

// Logger returns the App logger annotated with the visit's route.
func (m *Mount) Logger() *zerolog.Logger {
	l := m.app.log.With().Str("route", m.visit.Route.Key).Uint64("gen", m.visit.Gen).Logger()
	return &l
}

// Fill sets the content of a slot declared by the page's markup.
func (m *Mount) Fill(id string, c templ.Component) error {
	return m.app.region.fill(m.visit.Gen, id, c)
}

// Defer fills a slot in the background. The slot renders a placeholder
// that fetches the content once load returns, so slow data never holds up
// the page transition.
//
// load receives the visit context. A completion that arrives after the
// user navigated away is dropped. A load error fills the slot with the
// App's slot error view.
func (m *Mount) Defer(id string, load func(ctx context.Context) (templ.Component, error)) error {
	if err := m.app.region.expect(m.visit.Gen, id); err != nil {
		return err
	}

	a := m.app
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		c, err := m.load(id, load)
		if m.ctx.Err() != nil {
			a.log.Debug().Str("route", m.visit.Route.Key).Str("slot", id).Msg("deferred load cancelled")
			return
		}
		if err != nil {
			a.log.Warn().Err(err).Str("route", m.visit.Route.Key).Str("slot", id).Msg("deferred load failed")
			c = a.opts.SlotError(err)
		}
		if err := a.region.fill(m.visit.Gen, id, c); errors.Is(err, ErrStale) {
			a.log.Debug().Str("route", m.visit.Route.Key).Str("slot", id).Msg("discarding stale slot fill")
		}
	}()
	return nil
}

func (m *Mount) load(id string, fn func(ctx context.Context) (templ.Component, error)) (c templ.Component, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &LifecycleError{Op: OpDefer, Route: m.visit.Route.Key, Err: panicError(r)}
		}
	}()
	return fn(m.ctx)
}

// Indicate attaches a persistent indicator outside the content region.
// It survives region swaps; remove it with ClearIndicator in BeforeDestroy.
func (m *Mount) Indicate(id, level, message string) {
	m.app.overlay.Show(id, level, message)
}

// ClearIndicator removes an indicator attached with Indicate.
func (m *Mount) ClearIndicator(id string) {
	m.app.overlay.Remove(id)
}

// Flash queues a toast for the current response.
func (m *Mount) Flash(level, message string) {
	m.app.overlay.Flash(level, message)
}

// Navigate asks the browser to move to fragment once the current response
// is applied. Used from AfterRender, e.g. to send a logged-in user away
// from the login page.
func (m *Mount) Navigate(fragment string) {
	m.app.setEffects(func(e *Effects) { e.Navigate = fragment })
}

// Reload asks the shell to reload the whole document.
func (m *Mount) Reload() {
	m.app.setEffects(func(e *Effects) { e.Reload = true })
}
