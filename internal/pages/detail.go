package pages

import (
	"context"
	"sync"

	"github.com/a-h/templ"

	"github.com/pthm/hxnav"
	"github.com/pthm/hxnav/internal/mapview"
	"github.com/pthm/hxnav/internal/storyapi"
	"github.com/pthm/hxnav/internal/storycache"
)

// DetailZoom is the zoom of the map on the detail page.
const DetailZoom = 13

// Detail shows one story and, when it has coordinates, where it was
// posted.
type Detail struct {
	deps Deps

	mu  sync.Mutex
	loc *mapview.Map
}

func NewDetail(deps Deps) *Detail {
	return &Detail{deps: deps}
}

func (p *Detail) Render(ctx context.Context, v hxnav.Visit) (templ.Component, error) {
	return html(
		`<section class="detail-page"><div class="container">`,
		`<a href="#story-detail" class="skip-link">Skip to story content</a>`,
		`<a href="#/" class="back-button" aria-label="Back to stories">&larr; Back</a>`,
		hxnav.Slot("story-detail", loading("Loading story...")),
		`</div></section>`,
	), nil
}

func (p *Detail) AfterRender(ctx context.Context, m *hxnav.Mount) error {
	p.release()

	tok := token(p.deps.Auth, m.Logger())
	if tok == "" {
		return m.Fill("story-detail", guestMessage("Login to see story details"))
	}
	id := m.Param("id")
	if id == "" {
		return m.Fill("story-detail", errorBox("Story ID is required"))
	}

	return m.Defer("story-detail", func(ctx context.Context) (templ.Component, error) {
		d, err := p.deps.Stories.Story(ctx, tok, id)
		if err != nil {
			return errorBox("Failed to load story: " + storyapi.Message(err)), nil
		}
		return p.view(ctx, d), nil
	})
}

func (p *Detail) view(ctx context.Context, d storycache.Detail) templ.Component {
	s := d.Story
	var widget templ.Component
	if s.HasLocation() {
		if m := p.attachMap(ctx, s); m != nil {
			widget = html(`<div class="story-map-container"><h2>Location</h2>`, m.Component(), `</div>`)
		}
	}

	return html(
		when(d.Stale, offlineNotice()),
		`<article class="story-detail-content" style="view-transition-name: story-`, text(s.ID), `">`,
		`<div class="story-image-container"><img src="`, text(s.PhotoURL), `" alt="Story by `, text(s.Name), `" class="story-detail-image"/></div>`,
		`<div class="story-meta"><h1 class="story-author">`, text(s.Name), `</h1>`,
		`<p class="story-date">`, text(FormatDate(s.CreatedAt, p.deps.Language)), `</p></div>`,
		`<p class="story-description">`, text(s.Description), `</p>`,
		widget,
		`</article>`,
	)
}

// attachMap creates the location map unless the visit already ended.
func (p *Detail) attachMap(ctx context.Context, s storyapi.Story) *mapview.Map {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() != nil {
		return nil
	}
	at := mapview.LatLng{Lat: *s.Lat, Lng: *s.Lon}
	m := p.deps.Maps.New("detail-map", at, DetailZoom)
	_ = m.AddMarker(mapview.Marker{LatLng: at, Title: s.Name, Text: Excerpt(s.Description, 50), Open: true})
	p.loc = m
	return m
}

func (p *Detail) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loc != nil {
		p.loc.Remove()
		p.loc = nil
	}
}

func (p *Detail) BeforeDestroy(ctx context.Context) error {
	p.release()
	return nil
}
