package hxnav

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/a-h/templ"
	"github.com/rs/zerolog"
)

// DefaultBasePath is the URL prefix of the App endpoints.
const DefaultBasePath = "/_"

// Options configures an App. Zero values get sensible defaults.
type Options struct {
	// Region receives page markup. Defaults to a region with
	// DefaultRegionID.
	Region *Region

	// Overlay holds indicators and flashes. Defaults to an empty overlay.
	Overlay *Overlay

	// BasePath is the URL prefix the Host serves this App under.
	BasePath string

	// Swapper replaces the region content. Defaults to ImmediateSwap.
	Swapper Swapper

	// Nav produces the navigation links. Nil means no navigation list.
	Nav NavFunc

	// Logger receives lifecycle failures. Defaults to a disabled logger.
	Logger *zerolog.Logger

	// Observer is notified of navigations and failures.
	Observer Observer

	// ErrorView renders the generic error state that replaces the region
	// when a page fails to render or mount.
	ErrorView func(err error) templ.Component

	// SlotError renders a slot whose deferred load failed.
	SlotError func(err error) templ.Component
}

// Effects are browser-side follow-ups requested during a navigation or
// action: moving to another fragment or reloading the document.
type Effects struct {
	Navigate string
	Reload   bool
}

// App is the navigation controller of one browser session.
//
// It owns the content region and the mounted page. RenderPage runs the
// whole navigation cycle under a mutex, so navigations and actions of one
// session never interleave: a page is torn down completely before the
// next one mounts.
type App struct {
	mu      sync.Mutex
	table   *Table
	opts    Options
	region  *Region
	overlay *Overlay
	swapper Swapper
	log     *zerolog.Logger
	obs     Observer

	base       context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup

	current     Page
	visit       Visit
	mount       *Mount
	cancelVisit context.CancelFunc
	nav         []NavLink
	closed      bool

	live atomic.Pointer[Mount]

	effMu   sync.Mutex
	effects Effects
}

// New creates an App over an immutable route table. No page is mounted
// until the first RenderPage.
func New(table *Table, opts Options) *App {
	if opts.BasePath == "" {
		opts.BasePath = DefaultBasePath
	}
	if opts.Region == nil {
		opts.Region = NewRegion(DefaultRegionID, opts.BasePath)
	}
	if opts.Overlay == nil {
		opts.Overlay = NewOverlay()
	}
	if opts.Swapper == nil {
		opts.Swapper = ImmediateSwap{}
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.ErrorView == nil {
		opts.ErrorView = DefaultErrorView
	}
	if opts.SlotError == nil {
		opts.SlotError = DefaultSlotError
	}

	base, cancel := context.WithCancel(context.Background())
	return &App{
		table:      table,
		opts:       opts,
		region:     opts.Region,
		overlay:    opts.Overlay,
		swapper:    opts.Swapper,
		log:        opts.Logger,
		obs:        opts.Observer,
		base:       base,
		cancelBase: cancel,
	}
}

// RenderPage navigates to fragment.
//
// The cycle is: resolve the route (unknown routes get the fallback page),
// tear down the mounted page, mount the new page, render it, swap the
// region, run AfterRender, and recompute the navigation highlight. A
// failing teardown is logged and never blocks the cycle. A failing render
// or AfterRender leaves the region showing the error view, never a
// half-built page.
//
// Navigating to the page that is already mounted runs the full cycle, so
// the page releases and reacquires its resources.
func (a *App) RenderPage(ctx context.Context, fragment string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}

	active, page := a.table.Resolve(fragment)
	a.teardown(ctx)

	a.current = page
	visitCtx, cancel := context.WithCancel(a.base)
	v := Visit{
		Route:    active,
		Fragment: fragment,
		Gen:      a.region.Gen() + 1,
		base:     a.opts.BasePath,
	}
	a.visit = v
	a.cancelVisit = cancel

	c, rerr := a.render(ctx, page, v)
	if rerr != nil {
		a.fail(rerr)
		c = a.opts.ErrorView(rerr)
	}
	a.swapper.Swap(a.region, c)

	m := &Mount{app: a, visit: v, ctx: visitCtx}
	a.mount = m
	a.live.Store(m)

	if rerr == nil {
		if err := a.afterRender(ctx, page, m); err != nil {
			a.fail(err)
			cancel()
			a.live.Store(nil)
			a.visit.Gen = a.swapper.Swap(a.region, a.opts.ErrorView(err))
		}
	}

	if a.opts.Nav != nil {
		a.nav = Highlight(a.opts.Nav(ctx), fragment)
	}
	a.obs.Navigated(active.Key, a.region.Transition())
	return nil
}

func (a *App) render(ctx context.Context, p Page, v Visit) (c templ.Component, err *LifecycleError) {
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, &LifecycleError{Op: OpRender, Route: v.Route.Key, Err: panicError(r)}
		}
	}()
	c, e := p.Render(ctx, v)
	if e != nil {
		return nil, &LifecycleError{Op: OpRender, Route: v.Route.Key, Err: e}
	}
	if c == nil {
		c = templ.NopComponent
	}
	return c, nil
}

func (a *App) afterRender(ctx context.Context, p Page, m *Mount) (err *LifecycleError) {
	key := m.visit.Route.Key
	defer func() {
		if r := recover(); r != nil {
			err = &LifecycleError{Op: OpAfterRender, Route: key, Err: panicError(r)}
		}
	}()
	if e := p.AfterRender(ctx, m); e != nil {
		return &LifecycleError{Op: OpAfterRender, Route: key, Err: e}
	}
	return nil
}

// teardown unmounts the current page. The visit context is cancelled
// before BeforeDestroy runs, so deferred loads stop even if the hook
// misbehaves. Must be called with a.mu held.
func (a *App) teardown(ctx context.Context) {
	if a.current == nil {
		return
	}
	key := a.visit.Route.Key
	if a.cancelVisit != nil {
		a.cancelVisit()
		a.cancelVisit = nil
	}
	a.live.Store(nil)

	if d, ok := a.current.(Destroyer); ok {
		if err := a.destroy(ctx, d, key); err != nil {
			a.log.Warn().Err(err).Str("route", key).Msg("page teardown failed")
			a.obs.TeardownFailed(key, err)
		}
	}
	a.current = nil
	a.mount = nil
}

func (a *App) destroy(ctx context.Context, d Destroyer, key string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &LifecycleError{Op: OpBeforeDestroy, Route: key, Err: panicError(r)}
		}
	}()
	return d.BeforeDestroy(ctx)
}

func (a *App) fail(err *LifecycleError) {
	a.log.Error().Err(err.Err).Str("op", err.Op).Str("route", err.Route).Msg("page lifecycle failed")
	a.obs.LifecycleFailed(err)
}

// Act dispatches a page action. The post must come from markup of the
// visit that is mounted right now: routeKey and gen are the values
// rendered into the form. Anything else is ErrStale, the server-side
// equivalent of a listener that was removed with its element.
//
// A handler panic is returned as a *LifecycleError. Handler-reported
// failures travel inside the Result.
func (a *App) Act(ctx context.Context, routeKey string, gen uint64, name string, r *http.Request) (Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return Result{}, ErrClosed
	}
	if a.mount == nil || a.live.Load() != a.mount || routeKey != a.visit.Route.Key || gen != a.visit.Gen {
		return Result{}, ErrStale
	}
	actor, ok := a.current.(Actor)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q on %s", ErrNoAction, name, routeKey)
	}
	def, ok := actor.Lookup(name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q on %s", ErrNoAction, name, routeKey)
	}
	if def.Method != r.Method {
		return Result{}, fmt.Errorf("%w: %q does not accept %s", ErrNoAction, name, r.Method)
	}

	return a.runAction(ctx, def, a.mount, r)
}

func (a *App) runAction(ctx context.Context, def *ActionDef, m *Mount, r *http.Request) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			le := &LifecycleError{Op: OpAction, Route: m.visit.Route.Key, Err: panicError(p)}
			a.fail(le)
			res, err = Result{}, le
		}
	}()
	return def.Handler(ctx, m, r), nil
}

// Await waits for a deferred slot fill of generation gen. It does not
// take the App lock, so a slow load never blocks navigation.
func (a *App) Await(ctx context.Context, gen uint64, id string) (templ.Component, error) {
	return a.region.Await(ctx, gen, id)
}

// Close tears down the mounted page and stops all background work of the
// session. It waits for deferred loads to return or ctx to end.
func (a *App) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.teardown(ctx)
	a.closed = true
	a.cancelBase()
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Current returns the mounted page, nil before the first navigation.
func (a *App) Current() Page {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Visit returns the mounted visit.
func (a *App) Visit() Visit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.visit
}

// Nav returns the navigation links computed by the last navigation.
func (a *App) Nav() []NavLink {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]NavLink, len(a.nav))
	copy(out, a.nav)
	return out
}

// Region returns the content region.
func (a *App) Region() *Region {
	return a.region
}

// Overlay returns the session overlay.
func (a *App) Overlay() *Overlay {
	return a.overlay
}

// Swapper returns the swap strategy chosen for the session.
func (a *App) Swapper() Swapper {
	return a.swapper
}

// BasePath returns the URL prefix of the App endpoints.
func (a *App) BasePath() string {
	return a.opts.BasePath
}

// Table returns the route table.
func (a *App) Table() *Table {
	return a.table
}

func (a *App) setEffects(fn func(*Effects)) {
	a.effMu.Lock()
	defer a.effMu.Unlock()
	fn(&a.effects)
}

// TakeEffects returns and clears the effects requested since the last
// call.
func (a *App) TakeEffects() Effects {
	a.effMu.Lock()
	defer a.effMu.Unlock()
	e := a.effects
	a.effects = Effects{}
	return e
}

// WriteUpdates writes the out-of-band part of a response: slot fills made
// since the last render, the overlay and, when nav is set, the navigation
// list.
func (a *App) WriteUpdates(ctx context.Context, w io.Writer, nav bool) error {
	if err := RenderSlotsOOB(ctx, w, a.region.takeDirty()); err != nil {
		return err
	}
	if nav && a.opts.Nav != nil {
		if err := NavList(a.Nav(), true).Render(ctx, w); err != nil {
			return err
		}
	}
	flashes, indicators, changed := a.overlay.take()
	if changed {
		if _, err := io.WriteString(w, RenderIndicatorsOOB(indicators)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, RenderFlashesOOB(flashes))
	return err
}

// DefaultErrorView is the generic error state shown in the region.
func DefaultErrorView(err error) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, werr := io.WriteString(w, `<section class="error-state" role="alert">`+
			`<h2>Something went wrong</h2>`+
			`<p>This page could not be displayed. Please try again.</p>`+
			`<a href="#/" class="btn">Back to home</a></section>`)
		return werr
	})
}

// DefaultSlotError renders a failed deferred load.
func DefaultSlotError(err error) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, werr := io.WriteString(w, `<p class="slot-error" role="alert">`+html.EscapeString(err.Error())+`</p>`)
		return werr
	})
}
