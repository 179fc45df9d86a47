// Package mapview describes Leaflet maps rendered by the server and
// driven by the shell script.
//
// A Map is server-side state: its centre, markers and the single
// selectable marker of a location picker. Component renders the host
// element with that state in data attributes; the shell script loads
// Leaflet on first use and builds the widget. Marker changes made by an
// action are shipped with State, which the script applies to the widget
// already on the page.
package mapview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/a-h/templ"
	"github.com/goccy/go-json"
)

// Leaflet release served to the browser.
const (
	LeafletCSS = "https://unpkg.com/leaflet@1.9.4/dist/leaflet.css"
	LeafletJS  = "https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"
)

// ErrRemoved is returned when a removed map is modified.
var ErrRemoved = errors.New("mapview: map removed")

// LatLng is a geographic position.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Format renders the position with prec decimals as "lat, lng".
func (p LatLng) Format(prec int) string {
	return strconv.FormatFloat(p.Lat, 'f', prec, 64) + ", " + strconv.FormatFloat(p.Lng, 'f', prec, 64)
}

// Layer is a tile layer.
type Layer struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
	MaxZoom     int    `json:"maxZoom,omitempty"`
}

// DefaultLayers are the base layers offered by the layer switcher. The
// first one is shown initially.
var DefaultLayers = []Layer{
	{
		Name:        "OpenStreetMap",
		URL:         "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
		Attribution: `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`,
		MaxZoom:     18,
	},
	{
		Name:        "Satellite",
		URL:         "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Tiles &copy; Esri, i-cubed, USDA, USGS, AEX, GeoEye, Getmapping, Aerogrid, IGN, IGP, UPR-EGP, and the GIS User Community",
	},
	{
		Name:        "Topo Map",
		URL:         "https://{s}.tile.opentopomap.org/{z}/{x}/{y}.png",
		Attribution: `Map data: &copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors, SRTM | Map style: &copy; <a href="https://opentopomap.org">OpenTopoMap</a> (CC-BY-SA)`,
		MaxZoom:     17,
	},
}

// Library is the shared map library of the process. The layer
// configuration is encoded once, on the first map created, and every map
// reuses it.
type Library struct {
	layers []Layer

	once    sync.Once
	encoded string
	err     error

	live atomic.Int64
}

// NewLibrary creates a library offering layers, DefaultLayers when none
// are given.
func NewLibrary(layers ...Layer) *Library {
	if len(layers) == 0 {
		layers = DefaultLayers
	}
	return &Library{layers: layers}
}

func (l *Library) load() (string, error) {
	l.once.Do(func() {
		data, err := json.Marshal(l.layers)
		if err != nil {
			l.err = fmt.Errorf("mapview: encode layers: %w", err)
			return
		}
		l.encoded = string(data)
	})
	return l.encoded, l.err
}

// Live returns the number of maps created and not yet removed.
func (l *Library) Live() int {
	return int(l.live.Load())
}

// New creates a map rendered into the element elementID.
func (l *Library) New(elementID string, center LatLng, zoom int) *Map {
	l.live.Add(1)
	return &Map{lib: l, id: elementID, center: center, zoom: zoom}
}

// Marker is a map marker with an optional popup. Popup text is escaped
// by the script.
type Marker struct {
	LatLng
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
	Date  string `json:"date,omitempty"`
	Href  string `json:"href,omitempty"`
	Open  bool   `json:"open,omitempty"`
}

// Map is the state of one map widget.
type Map struct {
	lib    *Library
	id     string
	center LatLng
	zoom   int

	mu       sync.Mutex
	markers  []Marker
	selected *LatLng
	fit      int
	click    templ.Attributes
	removed  bool
}

// ID returns the element id the map renders into.
func (m *Map) ID() string { return m.id }

// AddMarker adds a fixed marker.
func (m *Map) AddMarker(mk Marker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removed {
		return ErrRemoved
	}
	m.markers = append(m.markers, mk)
	return nil
}

// SetMarker places the selectable marker, replacing the previous one.
func (m *Map) SetMarker(p LatLng) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removed {
		return ErrRemoved
	}
	m.selected = &p
	return nil
}

// ClearMarker removes the selectable marker.
func (m *Map) ClearMarker() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selected = nil
}

// Selected returns the selectable marker's position.
func (m *Map) Selected() (LatLng, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selected == nil {
		return LatLng{}, false
	}
	return *m.selected, true
}

// Markers returns the fixed markers.
func (m *Map) Markers() []Marker {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Marker, len(m.markers))
	copy(out, m.markers)
	return out
}

// FitBounds zooms the widget to show every marker, with padding pixels
// around them. It has no effect without markers.
func (m *Map) FitBounds(padding int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fit = padding
}

// BindClick posts map clicks to a page action. attrs are the action's
// attributes, as returned by Visit.Post; the script adds lat and lon to
// the posted values.
func (m *Map) BindClick(attrs templ.Attributes) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.click = attrs
}

// Remove releases the map. The script removes the widget when its element
// leaves the document. Removing twice is a no-op.
func (m *Map) Remove() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removed {
		return
	}
	m.removed = true
	m.markers = nil
	m.selected = nil
	m.click = nil
	m.lib.live.Add(-1)
}

// Removed reports whether Remove was called.
func (m *Map) Removed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removed
}

type state struct {
	Markers  []Marker `json:"markers"`
	Selected *LatLng  `json:"selected,omitempty"`
	Fit      int      `json:"fit,omitempty"`
}

type config struct {
	Center LatLng `json:"center"`
	Zoom   int    `json:"zoom"`
	state
}

func (m *Map) snapshot() (config, templ.Attributes) {
	m.mu.Lock()
	defer m.mu.Unlock()
	markers := make([]Marker, len(m.markers))
	copy(markers, m.markers)
	c := config{
		Center: m.center,
		Zoom:   m.zoom,
		state:  state{Markers: markers, Selected: m.selected},
	}
	if len(markers) > 0 {
		c.Fit = m.fit
	}
	return c, m.click
}

// Component renders the element hosting the widget.
func (m *Map) Component() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if m.Removed() {
			return ErrRemoved
		}
		layers, err := m.lib.load()
		if err != nil {
			return err
		}
		cfg, click := m.snapshot()
		data, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("mapview: encode map: %w", err)
		}

		if _, err := fmt.Fprintf(w,
			`<div id="%s" class="leaflet-host" data-map="%s" data-layers="%s" data-leaflet-css="%s" data-leaflet-js="%s"`,
			templ.EscapeString(m.id), templ.EscapeString(string(data)), templ.EscapeString(layers),
			LeafletCSS, LeafletJS); err != nil {
			return err
		}
		if click != nil {
			if url, ok := postURL(click); ok {
				if _, err := fmt.Fprintf(w, ` data-click-url="%s"`, templ.EscapeString(url)); err != nil {
					return err
				}
			}
			if vals, ok := click["hx-vals"].(string); ok {
				if _, err := fmt.Fprintf(w, ` data-click-vals="%s"`, templ.EscapeString(vals)); err != nil {
					return err
				}
			}
		}
		_, err = io.WriteString(w, `><p class="loading-indicator">Loading map...</p></div>`)
		return err
	})
}

func postURL(attrs templ.Attributes) (string, bool) {
	for _, k := range []string{"hx-post", "hx-put", "hx-patch", "hx-delete"} {
		if v, ok := attrs[k].(string); ok {
			return v, true
		}
	}
	return "", false
}

// State renders the current markers for the widget already on the page.
// Fill it into a slot after SetMarker or ClearMarker.
func (m *Map) State() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		cfg, _ := m.snapshot()
		data, err := json.Marshal(cfg.state)
		if err != nil {
			return fmt.Errorf("mapview: encode map state: %w", err)
		}
		_, err = fmt.Fprintf(w, `<template data-map-state="%s" data-state="%s"></template>`,
			templ.EscapeString(m.id), templ.EscapeString(string(data)))
		return err
	})
}
