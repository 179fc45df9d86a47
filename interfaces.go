package hxnav

import (
	"context"
	"net/http"

	"github.com/a-h/templ"
)

// Page is one navigable screen. Implementations are long-lived singletons
// registered in a Table.
//
// Render produces the markup for a visit. It runs before the markup is
// live, so it must not assume anything it describes exists yet, and it
// must not wait on the network: areas populated by remote data are
// declared with Slot and filled later.
//
//	func (p *Home) Render(ctx context.Context, v hxnav.Visit) (templ.Component, error) {
//	    return homeView(v), nil
//	}
//
// AfterRender runs once the markup is in the content region. This is where
// resources are acquired (camera streams, map widgets) and slots are
// filled, either synchronously with Mount.Fill or in the background with
// Mount.Defer. Because pages are reused, AfterRender must not assume a
// clean slate: release anything left over from a previous visit before
// acquiring it again.
type Page interface {
	Render(ctx context.Context, v Visit) (templ.Component, error)
	AfterRender(ctx context.Context, m *Mount) error
}

// Destroyer is implemented by pages that hold resources outliving their
// markup. BeforeDestroy runs when the page is navigated away from and
// should stop media streams, remove map widgets and clear global
// indicators. Errors are logged and never block navigation.
type Destroyer interface {
	BeforeDestroy(ctx context.Context) error
}

// Actor is implemented by pages that accept form posts while mounted.
// Embedding *Base provides it.
type Actor interface {
	Lookup(name string) (*ActionDef, bool)
}

// ActionFunc handles a page action. The Mount is the one created for the
// visit the form was rendered in.
type ActionFunc func(ctx context.Context, m *Mount, r *http.Request) Result

// Observer receives lifecycle notifications from an App. The server wires
// this to Prometheus; tests use it to count calls.
type Observer interface {
	Navigated(route string, transition bool)
	TeardownFailed(route string, err error)
	LifecycleFailed(err *LifecycleError)
}

type nopObserver struct{}

func (nopObserver) Navigated(string, bool)          {}
func (nopObserver) TeardownFailed(string, error)    {}
func (nopObserver) LifecycleFailed(*LifecycleError) {}
