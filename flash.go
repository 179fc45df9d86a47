package hxnav

import (
	"context"
	"html"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/a-h/templ"
)

// Flash levels for toast notifications.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashWarning = "warning"
	FlashInfo    = "info"
)

// Element ids of the overlay containers in the shell.
const (
	ToastsID     = "toasts"
	IndicatorsID = "indicators"
)

// Flash represents a one-time notification message.
//
// Flashes are appended to the #toasts container out-of-band. The shell
// script dismisses them after the data-auto-dismiss delay.
//
//	return hxnav.OK().Flash(hxnav.FlashSuccess, "Story posted")
type Flash struct {
	Level   string // success, error, warning, info
	Message string
}

// Indicator is a persistent notice attached outside the content region,
// such as a camera permission prompt. It stays until removed, so a page
// that shows one must remove it in BeforeDestroy.
type Indicator struct {
	ID      string
	Level   string
	Message string
}

// Overlay holds everything rendered outside the content region for one
// session: persistent indicators and pending flashes.
type Overlay struct {
	mu         sync.Mutex
	indicators map[string]Indicator
	flashes    []Flash
	changed    bool
}

// NewOverlay creates an empty overlay.
func NewOverlay() *Overlay {
	return &Overlay{indicators: make(map[string]Indicator)}
}

// Show adds or replaces the indicator with the given id.
func (o *Overlay) Show(id, level, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.indicators[id] = Indicator{ID: id, Level: level, Message: message}
	o.changed = true
}

// Remove drops an indicator. Removing an absent indicator is a no-op.
func (o *Overlay) Remove(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.indicators[id]; ok {
		delete(o.indicators, id)
		o.changed = true
	}
}

// Has reports whether an indicator is attached.
func (o *Overlay) Has(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.indicators[id]
	return ok
}

// Items returns the attached indicators sorted by id.
func (o *Overlay) Items() []Indicator {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.items()
}

func (o *Overlay) items() []Indicator {
	out := make([]Indicator, 0, len(o.indicators))
	for _, ind := range o.indicators {
		out = append(out, ind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Flash queues a one-shot notification for the next response.
func (o *Overlay) Flash(level, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.flashes = append(o.flashes, Flash{Level: level, Message: message})
}

// take drains pending flashes and reports whether indicators changed
// since the last call, with their current state.
func (o *Overlay) take() (flashes []Flash, indicators []Indicator, changed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	flashes, o.flashes = o.flashes, nil
	changed, o.changed = o.changed, false
	if changed {
		indicators = o.items()
	}
	return flashes, indicators, changed
}

// RenderFlashesOOB renders flashes as OOB swap HTML appending to #toasts.
//
// The data-auto-dismiss attribute is read by the shell script, which
// removes the toast after the delay (milliseconds).
func RenderFlashesOOB(flashes []Flash) string {
	if len(flashes) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(`<div id="` + ToastsID + `" hx-swap-oob="` + string(SwapBeforeEnd) + `">`)

	for _, f := range flashes {
		sb.WriteString(`<div class="toast toast-`)
		sb.WriteString(html.EscapeString(f.Level))
		sb.WriteString(`" role="status" data-auto-dismiss="3000">`)
		sb.WriteString(html.EscapeString(f.Message))
		sb.WriteString(`</div>`)
	}

	sb.WriteString(`</div>`)
	return sb.String()
}

// RenderIndicatorsOOB renders the full indicator set, replacing the
// contents of #indicators. An empty set clears the container.
func RenderIndicatorsOOB(items []Indicator) string {
	var sb strings.Builder
	sb.WriteString(`<div id="` + IndicatorsID + `" hx-swap-oob="` + string(SwapInner) + `">`)
	writeIndicators(&sb, items)
	sb.WriteString(`</div>`)
	return sb.String()
}

func writeIndicators(sb *strings.Builder, items []Indicator) {
	for _, ind := range items {
		sb.WriteString(`<div class="indicator indicator-`)
		sb.WriteString(html.EscapeString(ind.Level))
		sb.WriteString(`" data-indicator="`)
		sb.WriteString(html.EscapeString(ind.ID))
		sb.WriteString(`">`)
		sb.WriteString(html.EscapeString(ind.Message))
		sb.WriteString(`</div>`)
	}
}

// OverlayContainer returns the overlay markup for the shell layout. It
// holds whatever indicators are already attached, so a full page load
// shows the same state an HTMX swap would.
//
//	@hxnav.OverlayContainer(app.Overlay())
func OverlayContainer(o *Overlay) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var sb strings.Builder
		sb.WriteString(`<div id="` + IndicatorsID + `" class="indicator-container">`)
		if o != nil {
			writeIndicators(&sb, o.Items())
		}
		sb.WriteString(`</div><div id="` + ToastsID + `" class="toast-container" aria-live="polite"></div>`)
		_, err := io.WriteString(w, sb.String())
		return err
	})
}
