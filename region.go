package hxnav

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/a-h/templ"
)

// DefaultRegionID is the element id of the content region in the shell.
const DefaultRegionID = "main-content"

// Region is the single shared content subtree. Only the App writes its
// content, once per navigation; pages reach it through their Mount and can
// only fill the slots their own markup declared.
//
// Every content replacement bumps the generation. Work started for an
// older generation (a slow fetch from a page the user already left) finds
// the generation moved on and is discarded with ErrStale.
type Region struct {
	mu         sync.Mutex
	id         string
	base       string
	content    templ.Component
	gen        uint64
	transition bool
	slots      map[string]*slot
	dirty      map[string]bool
}

type slot struct {
	content templ.Component
	filled  bool
	done    chan struct{} // non-nil while a deferred fill is pending
}

// SlotFill is a slot's current content, used for out-of-band updates.
type SlotFill struct {
	ID      string
	Content templ.Component
}

// NewRegion creates an empty region. base is the URL prefix deferred slots
// poll under.
func NewRegion(id, base string) *Region {
	if id == "" {
		id = DefaultRegionID
	}
	return &Region{
		id:    id,
		base:  base,
		slots: make(map[string]*slot),
		dirty: make(map[string]bool),
	}
}

// ID returns the element id of the region.
func (r *Region) ID() string {
	return r.id
}

// Gen returns the current content generation.
func (r *Region) Gen() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

// Transition reports whether the last swap asked for an animated
// transition.
func (r *Region) Transition() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transition
}

// replace swaps in new content and returns the new generation. Waiters on
// slots of the previous generation are woken so they observe ErrStale.
func (r *Region) replace(c templ.Component, transition bool) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.slots {
		if s.done != nil {
			close(s.done)
			s.done = nil
		}
	}
	r.gen++
	r.content = c
	r.transition = transition
	r.slots = make(map[string]*slot)
	r.dirty = make(map[string]bool)
	return r.gen
}

// expect marks a slot as awaiting a deferred fill.
func (r *Region) expect(gen uint64, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.gen {
		return ErrStale
	}
	s := r.slots[id]
	if s == nil {
		s = &slot{}
		r.slots[id] = s
	}
	if s.done == nil {
		s.done = make(chan struct{})
	}
	s.filled = false
	return nil
}

// fill sets a slot's content if gen is still current.
func (r *Region) fill(gen uint64, id string, c templ.Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.gen {
		return ErrStale
	}
	s := r.slots[id]
	if s == nil {
		s = &slot{}
		r.slots[id] = s
	}
	s.content = c
	s.filled = true
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	r.dirty[id] = true
	return nil
}

// Await blocks until the slot of generation gen is filled, the generation
// is replaced (ErrStale), or ctx ends.
func (r *Region) Await(ctx context.Context, gen uint64, id string) (templ.Component, error) {
	for {
		r.mu.Lock()
		if gen != r.gen {
			r.mu.Unlock()
			return nil, ErrStale
		}
		s := r.slots[id]
		if s == nil {
			r.mu.Unlock()
			return nil, fmt.Errorf("%w: slot %q", ErrNotFound, id)
		}
		if s.filled {
			c := withView(s.content, r.viewLocked())
			r.mu.Unlock()
			return c, nil
		}
		done := s.done
		r.mu.Unlock()

		if done == nil {
			return nil, fmt.Errorf("%w: slot %q has no pending fill", ErrNotFound, id)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-done:
		}
	}
}

// takeDirty returns the slots filled since the last full render or the
// last call, sorted by id, and clears the set.
func (r *Region) takeDirty() []SlotFill {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.dirty))
	for id := range r.dirty {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	view := r.viewLocked()
	fills := make([]SlotFill, 0, len(ids))
	for _, id := range ids {
		if s := r.slots[id]; s != nil && s.filled {
			fills = append(fills, SlotFill{ID: id, Content: withView(s.content, view)})
		}
	}
	r.dirty = make(map[string]bool)
	return fills
}

type regionCtxKey struct{}

// regionView is an immutable snapshot of the region used while rendering.
type regionView struct {
	gen   uint64
	base  string
	slots map[string]slotView
}

type slotView struct {
	content templ.Component
	filled  bool
	pending bool
}

func (r *Region) snapshot() (templ.Component, regionView) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := r.viewLocked()
	r.dirty = make(map[string]bool)
	return r.content, v
}

// viewLocked snapshots the slot states. r.mu must be held.
func (r *Region) viewLocked() regionView {
	v := regionView{gen: r.gen, base: r.base, slots: make(map[string]slotView, len(r.slots))}
	for id, s := range r.slots {
		v.slots[id] = slotView{content: s.content, filled: s.filled, pending: s.done != nil}
	}
	return v
}

// withView renders c with view in scope, so slots nested inside a slot's
// content resolve against the generation that filled it.
func withView(c templ.Component, view regionView) templ.Component {
	if c == nil {
		return nil
	}
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return c.Render(context.WithValue(ctx, regionCtxKey{}, view), w)
	})
}

// Render writes the region's inner markup with every slot in its current
// state. A full render supersedes pending out-of-band slot updates.
func (r *Region) Render(ctx context.Context, w io.Writer) error {
	content, view := r.snapshot()
	if content == nil {
		return nil
	}
	return content.Render(context.WithValue(ctx, regionCtxKey{}, view), w)
}

// Slot declares a region area whose content arrives after render.
//
// The placeholder shows until the page fills the slot. A slot filled
// before the response is written renders inline; a slot with a deferred
// fill still running renders a placeholder that fetches the content once
// it lands.
//
//	hxnav.Slot("story-list", loading("Loading stories..."))
func Slot(id string, placeholder templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		view, _ := ctx.Value(regionCtxKey{}).(regionView)
		s := view.slots[id]

		if _, err := fmt.Fprintf(w, `<div id="%s" data-slot>`, templ.EscapeString(id)); err != nil {
			return err
		}

		var err error
		switch {
		case s.filled && s.content != nil:
			err = s.content.Render(ctx, w)
		case s.pending:
			err = pendingSlot(view, id, placeholder).Render(ctx, w)
		case placeholder != nil:
			err = placeholder.Render(ctx, w)
		}
		if err != nil {
			return err
		}

		_, err = io.WriteString(w, `</div>`)
		return err
	})
}

// pendingSlot renders a placeholder that loads the slot once its fill
// completes. Uses HTMX's "load" trigger, which fires once after insertion.
func pendingSlot(view regionView, id string, placeholder templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		url := fmt.Sprintf("%s/slot/%d/%s", view.base, view.gen, id)
		_, err := fmt.Fprintf(w,
			`<div hx-get="%s" hx-trigger="load" hx-target="closest [data-slot]" hx-swap="innerHTML">`,
			templ.EscapeString(url))
		if err != nil {
			return err
		}
		if placeholder != nil {
			if err := placeholder.Render(ctx, w); err != nil {
				return err
			}
		}
		_, err = io.WriteString(w, `</div>`)
		return err
	})
}

// RenderSlotsOOB renders slot fills as out-of-band swaps that replace the
// inner markup of each slot element already in the document.
func RenderSlotsOOB(ctx context.Context, w io.Writer, fills []SlotFill) error {
	for _, f := range fills {
		if _, err := fmt.Fprintf(w, `<div id="%s" hx-swap-oob="innerHTML">`, templ.EscapeString(f.ID)); err != nil {
			return err
		}
		if f.Content != nil {
			if err := f.Content.Render(ctx, w); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `</div>`); err != nil {
			return err
		}
	}
	return nil
}
