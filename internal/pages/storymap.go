package pages

import (
	"context"
	"sync"

	"github.com/a-h/templ"

	"github.com/pthm/hxnav"
	"github.com/pthm/hxnav/internal/mapview"
	"github.com/pthm/hxnav/internal/storyapi"
)

// Initial view of the story maps: Indonesia.
var (
	DefaultCenter = mapview.LatLng{Lat: -2.5489, Lng: 118.0149}
	DefaultZoom   = 5
)

// boundsPadding is the margin kept around the markers, in pixels.
const boundsPadding = 50

// StoryMap shows every story with coordinates on a map and in a list.
type StoryMap struct {
	deps Deps

	mu     sync.Mutex
	widget *mapview.Map
}

func NewStoryMap(deps Deps) *StoryMap {
	return &StoryMap{deps: deps}
}

func (p *StoryMap) Render(ctx context.Context, v hxnav.Visit) (templ.Component, error) {
	return html(
		`<section class="map-page"><div class="container">`,
		`<a href="#stories-map" class="skip-link">Skip to map</a>`,
		`<div class="map-header"><h1 class="page-title">Story Map</h1>`,
		`<a href="#/" class="back-button" aria-label="Back to stories">&larr; Back to Stories</a></div>`,
		`<div class="map-controls"><div class="map-info"><p>Click on markers to view story details</p></div></div>`,
		hxnav.Slot("stories-map", loading("Loading map...")),
		`<div id="story-list-container" class="story-list-container"><h2>Stories with Location</h2>`,
		hxnav.Slot("map-story-list", html(`<p>Loading stories...</p>`)),
		`</div></div></section>`,
	), nil
}

func (p *StoryMap) AfterRender(ctx context.Context, m *hxnav.Mount) error {
	p.release()

	widget := p.deps.Maps.New("stories-map-widget", DefaultCenter, DefaultZoom)
	p.mu.Lock()
	p.widget = widget
	p.mu.Unlock()
	if err := m.Fill("stories-map", widget.Component()); err != nil {
		return err
	}

	tok := token(p.deps.Auth, m.Logger())
	if tok == "" {
		return m.Fill("map-story-list", guestMessage("Login to see stories on the map"))
	}

	return m.Defer("map-story-list", func(ctx context.Context) (templ.Component, error) {
		list, err := p.deps.Stories.Stories(ctx, tok, storyapi.ListOptions{Size: p.deps.PageSize, Location: true})
		if err != nil {
			return errorBox("Failed to load stories: " + storyapi.Message(err)), nil
		}

		var located []storyapi.Story
		for _, s := range list.Stories {
			if s.HasLocation() {
				located = append(located, s)
			}
		}
		if len(located) == 0 {
			return html(
				when(list.Stale, offlineNotice()),
				`<div class="empty-state"><p>No stories with location available</p>`,
				`<a href="#/add" class="add-story-button">Add Story with Location</a></div>`,
			), nil
		}

		for _, s := range located {
			if err := widget.AddMarker(p.marker(s)); err != nil {
				// Removed: the user already left the page.
				return nil, err
			}
		}
		widget.FitBounds(boundsPadding)

		return html(
			when(list.Stale, offlineNotice()),
			each(located, p.listItem),
			widget.State(),
		), nil
	})
}

func (p *StoryMap) marker(s storyapi.Story) mapview.Marker {
	return mapview.Marker{
		LatLng: mapview.LatLng{Lat: *s.Lat, Lng: *s.Lon},
		Title:  s.Name,
		Text:   Excerpt(s.Description, 100),
		Image:  s.PhotoURL,
		Date:   FormatDate(s.CreatedAt, p.deps.Language),
		Href:   "#/detail/" + s.ID,
	}
}

func (p *StoryMap) listItem(s storyapi.Story) templ.Component {
	return html(
		`<article class="map-story-item"><a href="#/detail/`, text(s.ID), `" class="map-story-link">`,
		`<div class="map-story-image-container"><img src="`, text(s.PhotoURL), `" alt="Story by `, text(s.Name), `" class="map-story-image" loading="lazy"/></div>`,
		`<div class="map-story-content">`,
		`<h3 class="map-story-name">`, text(s.Name), `</h3>`,
		`<p class="map-story-description">`, text(Excerpt(s.Description, 50)), `</p>`,
		`<p class="map-story-date">`, text(FormatDate(s.CreatedAt, p.deps.Language)), `</p>`,
		`<p class="map-story-location">`, iconLocation, ` `, text(FormatCoord(*s.Lat, 4)+", "+FormatCoord(*s.Lon, 4)), `</p>`,
		`</div></a></article>`,
	)
}

func (p *StoryMap) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.widget != nil {
		p.widget.Remove()
		p.widget = nil
	}
}

func (p *StoryMap) BeforeDestroy(ctx context.Context) error {
	p.release()
	return nil
}
