package mapview

import (
	"bytes"
	"context"
	"html"
	"regexp"
	"testing"

	"github.com/a-h/templ"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

var attrRe = regexp.MustCompile(`data-(map|state)="([^"]*)"`)

func decodeAttr(t *testing.T, markup string, v any) {
	t.Helper()
	m := attrRe.FindStringSubmatch(markup)
	require.NotNil(t, m, "no map data in %s", markup)
	require.NoError(t, json.Unmarshal([]byte(html.UnescapeString(m[2])), v))
}

func TestLibraryCountsLiveMaps(t *testing.T) {
	lib := NewLibrary()

	a := lib.New("a", LatLng{}, 5)
	b := lib.New("b", LatLng{}, 5)
	assert.Equal(t, 2, lib.Live())

	a.Remove()
	a.Remove()
	assert.Equal(t, 1, lib.Live())
	assert.True(t, a.Removed())

	b.Remove()
	assert.Equal(t, 0, lib.Live())
}

func TestMapComponent(t *testing.T) {
	lib := NewLibrary()
	m := lib.New("stories-map", LatLng{Lat: -2.5489, Lng: 118.0149}, 5)
	require.NoError(t, m.AddMarker(Marker{LatLng: LatLng{Lat: -6.2, Lng: 106.8}, Title: "Budi <3", Href: "#/detail/s1"}))
	m.FitBounds(50)

	out := render(t, m.Component())
	assert.Contains(t, out, `id="stories-map"`)
	assert.Contains(t, out, `data-leaflet-js="`+LeafletJS+`"`)
	assert.Contains(t, out, "OpenStreetMap")
	assert.NotContains(t, out, "data-click-url")

	var cfg struct {
		Center  LatLng   `json:"center"`
		Zoom    int      `json:"zoom"`
		Markers []Marker `json:"markers"`
		Fit     int      `json:"fit"`
	}
	decodeAttr(t, out, &cfg)
	assert.Equal(t, LatLng{Lat: -2.5489, Lng: 118.0149}, cfg.Center)
	assert.Equal(t, 5, cfg.Zoom)
	require.Len(t, cfg.Markers, 1)
	assert.Equal(t, "Budi <3", cfg.Markers[0].Title)
	assert.Equal(t, 50, cfg.Fit)
}

func TestFitBoundsNeedsMarkers(t *testing.T) {
	m := NewLibrary().New("empty", LatLng{}, 5)
	m.FitBounds(50)

	var cfg struct {
		Fit int `json:"fit"`
	}
	decodeAttr(t, render(t, m.Component()), &cfg)
	assert.Zero(t, cfg.Fit)
}

func TestSelectableMarker(t *testing.T) {
	m := NewLibrary().New("location-map", LatLng{}, 5)
	m.BindClick(templ.Attributes{"hx-post": "/_/a/pick-location", "hx-vals": `{"_gen":"3"}`})

	out := render(t, m.Component())
	assert.Contains(t, out, `data-click-url="/_/a/pick-location"`)
	assert.Contains(t, out, `data-click-vals="{&#34;_gen&#34;:&#34;3&#34;}"`)

	require.NoError(t, m.SetMarker(LatLng{Lat: 1, Lng: 2}))
	require.NoError(t, m.SetMarker(LatLng{Lat: 3, Lng: 4}))
	p, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, LatLng{Lat: 3, Lng: 4}, p)

	state := render(t, m.State())
	assert.Contains(t, state, `data-map-state="location-map"`)
	var st struct {
		Selected *LatLng `json:"selected"`
	}
	decodeAttr(t, state, &st)
	require.NotNil(t, st.Selected)
	assert.Equal(t, 3.0, st.Selected.Lat)

	m.ClearMarker()
	_, ok = m.Selected()
	assert.False(t, ok)
}

func TestRemovedMap(t *testing.T) {
	m := NewLibrary().New("gone", LatLng{}, 5)
	m.Remove()

	assert.ErrorIs(t, m.AddMarker(Marker{}), ErrRemoved)
	assert.ErrorIs(t, m.SetMarker(LatLng{}), ErrRemoved)
	assert.ErrorIs(t, m.Component().Render(context.Background(), &bytes.Buffer{}), ErrRemoved)
}

func TestLatLngFormat(t *testing.T) {
	assert.Equal(t, "-6.2000, 106.8166", LatLng{Lat: -6.2, Lng: 106.81659}.Format(4))
}
