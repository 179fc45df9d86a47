package hxnav

import (
	"fmt"
	"sort"
	"strings"
)

// RootKey is the route key of the application root.
const RootKey = "/"

// NotFoundKey is the pseudo-route every unmatched path resolves to.
const NotFoundKey = "*"

// Params holds the values captured by dynamic path segments, keyed by the
// segment name without its leading colon.
type Params map[string]string

// Get returns the named parameter or "" when absent.
func (p Params) Get(name string) string {
	if p == nil {
		return ""
	}
	return p[name]
}

// Active is the route derived from the current location. It is computed
// fresh on every navigation and never stored as the source of truth.
type Active struct {
	Key    string // Registered pattern, e.g. "/detail/:id", or NotFoundKey
	Params Params // Captured dynamic segments
	Path   string // Normalized path the route was resolved from
}

// NotFound reports whether the route resolved to the fallback.
func (a Active) NotFound() bool {
	return a.Key == NotFoundKey
}

// NormalizeFragment converts a raw fragment ("#/detail/42", "/about/",
// "") into a canonical path. Empty input yields "/".
func NormalizeFragment(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "#")
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	segs := split(raw)
	if len(segs) == 0 {
		return RootKey
	}
	return "/" + strings.Join(segs, "/")
}

// split breaks a path into its non-empty segments.
func split(path string) []string {
	parts := strings.Split(path, "/")
	segs := parts[:0]
	for _, p := range parts {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}

// Pattern is a parsed route key. At most one segment may be dynamic.
type Pattern struct {
	key      string
	segments []string
	param    int // index of the dynamic segment, -1 if none
}

// ParsePattern validates and parses a route key such as "/detail/:id".
func ParsePattern(key string) (Pattern, error) {
	if !strings.HasPrefix(key, "/") {
		return Pattern{}, fmt.Errorf("%w: %q must start with /", ErrInvalidPattern, key)
	}
	segs := split(key)
	if key != RootKey && "/"+strings.Join(segs, "/") != key {
		return Pattern{}, fmt.Errorf("%w: %q is not normalized", ErrInvalidPattern, key)
	}

	p := Pattern{key: key, segments: segs, param: -1}
	for i, s := range segs {
		if !strings.HasPrefix(s, ":") {
			continue
		}
		if len(s) == 1 {
			return Pattern{}, fmt.Errorf("%w: %q has an unnamed parameter", ErrInvalidPattern, key)
		}
		if p.param >= 0 {
			return Pattern{}, fmt.Errorf("%w: %q has more than one parameter", ErrInvalidPattern, key)
		}
		p.param = i
	}
	return p, nil
}

// Key returns the route key the pattern was parsed from.
func (p Pattern) Key() string {
	return p.key
}

// Dynamic reports whether the pattern captures a parameter.
func (p Pattern) Dynamic() bool {
	return p.param >= 0
}

// Match compares the pattern against concrete path segments.
func (p Pattern) Match(segments []string) (Params, bool) {
	if len(segments) != len(p.segments) {
		return nil, false
	}
	var params Params
	for i, s := range p.segments {
		if i == p.param {
			params = Params{s[1:]: segments[i]}
			continue
		}
		if s != segments[i] {
			return nil, false
		}
	}
	return params, true
}

// Matcher finds which registered pattern a path belongs to.
//
// Lookup is structural rather than precedence-ordered: a fully literal
// pattern always beats a pattern that needs its dynamic segment, so the
// result does not depend on registration order.
type Matcher struct {
	literal []Pattern
	dynamic []Pattern
}

// NewMatcher parses the given route keys. Duplicate keys are rejected.
func NewMatcher(keys ...string) (*Matcher, error) {
	m := &Matcher{}
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			return nil, fmt.Errorf("%w: duplicate key %q", ErrInvalidPattern, k)
		}
		seen[k] = true

		p, err := ParsePattern(k)
		if err != nil {
			return nil, err
		}
		if p.Dynamic() {
			m.dynamic = append(m.dynamic, p)
		} else {
			m.literal = append(m.literal, p)
		}
	}
	// Sorting keeps dynamic matches deterministic across map iteration orders.
	sort.Slice(m.dynamic, func(i, j int) bool { return m.dynamic[i].key < m.dynamic[j].key })
	return m, nil
}

// Match returns the active route for an arbitrary path, if any pattern
// matches it.
func (m *Matcher) Match(path string) (Active, bool) {
	norm := NormalizeFragment(path)
	segs := split(norm)

	for _, p := range m.literal {
		if _, ok := p.Match(segs); ok {
			return Active{Key: p.key, Path: norm}, true
		}
	}
	for _, p := range m.dynamic {
		if params, ok := p.Match(segs); ok {
			return Active{Key: p.key, Params: params, Path: norm}, true
		}
	}
	return Active{}, false
}

// Resolve converts a raw fragment into the active route. It never fails:
// unmatched paths resolve to NotFoundKey.
func (m *Matcher) Resolve(fragment string) Active {
	if a, ok := m.Match(fragment); ok {
		return a
	}
	return Active{Key: NotFoundKey, Path: NormalizeFragment(fragment)}
}
