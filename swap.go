package hxnav

import (
	"net/http"

	"github.com/a-h/templ"
)

// SwapMode defines HTMX swap strategies for how response HTML replaces the target.
//
// See https://htmx.org/attributes/hx-swap/ for visual examples.
type SwapMode string

const (
	// SwapOuter replaces the entire element including its tag (outerHTML).
	SwapOuter SwapMode = "outerHTML"

	// SwapInner replaces only the element's contents (innerHTML). The
	// content region is always swapped this way.
	SwapInner SwapMode = "innerHTML"

	// SwapBeforeEnd appends the response to the end of the target's contents.
	SwapBeforeEnd SwapMode = "beforeend"

	// SwapNone performs no swap. Action responses carry only out-of-band
	// updates.
	SwapNone SwapMode = "none"
)

// CapabilityHeader is sent by the shell script on every navigation request.
// Its value is "1" when the browser supports document.startViewTransition.
const CapabilityHeader = "X-View-Transitions"

// Swapper replaces the content region's markup. The App calls Swap exactly
// once per navigation; the two strategies differ only in animation, never
// in the resulting region content.
type Swapper interface {
	// Swap installs c as the region content and returns the new generation.
	Swap(r *Region, c templ.Component) uint64
	// Reswap is the HX-Reswap value the response carries.
	Reswap() string
}

// ImmediateSwap replaces the region without animation.
type ImmediateSwap struct{}

func (ImmediateSwap) Swap(r *Region, c templ.Component) uint64 { return r.replace(c, false) }
func (ImmediateSwap) Reswap() string                            { return string(SwapInner) }

// TransitionSwap replaces the region inside a view transition. HTMX wraps
// the swap in document.startViewTransition when transition:true is set.
type TransitionSwap struct{}

func (TransitionSwap) Swap(r *Region, c templ.Component) uint64 { return r.replace(c, true) }
func (TransitionSwap) Reswap() string                            { return string(SwapInner) + " transition:true" }

// ProbeSwapper picks the swap strategy from the capability the shell
// reported. The probe runs once, when a session's App is created.
func ProbeSwapper(r *http.Request) Swapper {
	if r != nil && r.Header.Get(CapabilityHeader) == "1" {
		return TransitionSwap{}
	}
	return ImmediateSwap{}
}
