// Package hxnav is a fragment router with page lifecycle management for
// server-driven HTMX applications.
//
// The browser keeps a thin shell: a navigation list, a content region and
// an overlay for toasts and indicators. Every change of location.hash is
// sent to the server, which runs the navigation and answers with the new
// region markup plus out-of-band updates. The server holds one App per
// browser session, and the App is the only writer of the region.
//
// # Routes and pages
//
// Routes are fragment paths such as "/", "/about" or "/detail/:id", with
// at most one dynamic segment. They are registered once in an immutable
// Table, each mapped to a singleton Page, plus a fallback page that every
// unmatched path resolves to:
//
//	table, err := hxnav.NewTable(map[string]hxnav.Page{
//	    "/":           home,
//	    "/detail/:id": detail,
//	}, notFound)
//
// Matching is structural: a literal route beats a dynamic one, so
// "/stories/new" and "/stories/:id" can coexist regardless of order.
//
// # Lifecycle
//
// A navigation tears down the mounted page, renders the new one, swaps it
// into the region and then calls AfterRender:
//
//   - Render returns markup and must not wait on the network. Areas that
//     depend on remote data are declared with Slot.
//   - AfterRender runs with the markup in place. It acquires resources and
//     fills slots, synchronously with Mount.Fill or in the background with
//     Mount.Defer.
//   - BeforeDestroy (optional, see Destroyer) releases what AfterRender
//     acquired. The visit context is cancelled first, so deferred loads of
//     the old page stop on their own.
//
// Pages are reused across visits. Navigating to the page that is already
// mounted still runs the full cycle, so AfterRender must release before it
// acquires.
//
// # Stale work
//
// The region carries a generation that increments on every swap. Slot
// fills, deferred loads and action posts all carry the generation they
// were created for; once the region has moved on they fail with ErrStale
// and are dropped.
//
// # Actions
//
// Pages that accept form posts embed *Base and register handlers:
//
//	p.Action("submit", p.handleSubmit)
//
// Markup posts to them with Visit.Post. The post carries the route key
// and generation of the visit, so a form from a page the user already
// left is rejected rather than run against the wrong page.
//
// # Hosting
//
// Host serves the endpoints for all sessions, keyed by a signed session
// cookie. Mutating requests must carry the HX-Request header HTMX sends,
// which blocks cross-origin form posts without extra tokens.
//
//	host := hxnav.NewHost(key, "/_", func(ctx context.Context, id string, r *http.Request) (*hxnav.App, error) {
//	    return hxnav.New(table, hxnav.Options{Swapper: hxnav.ProbeSwapper(r)}), nil
//	})
//	router.Handle("/_/*", host.Handler())
package hxnav
