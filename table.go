package hxnav

import (
	"errors"
	"fmt"
	"sort"
)

// Table is the static registry of route key to page. It is built once,
// before the first navigation, and never changes afterwards.
//
// Pages are singletons: the same instance serves every visit to its route,
// which is why pages holding resources implement Destroyer.
type Table struct {
	matcher  *Matcher
	pages    map[string]Page
	fallback Page
	keys     []string
}

// NewTable builds a route table. The fallback page serves NotFoundKey.
//
//	table, err := hxnav.NewTable(map[string]hxnav.Page{
//	    "/":           home,
//	    "/detail/:id": detail,
//	}, notFound)
func NewTable(routes map[string]Page, fallback Page) (*Table, error) {
	if fallback == nil {
		return nil, errors.New("hxnav: route table requires a fallback page")
	}

	keys := make([]string, 0, len(routes))
	pages := make(map[string]Page, len(routes)+1)
	for k, p := range routes {
		if p == nil {
			return nil, fmt.Errorf("hxnav: nil page for route %q", k)
		}
		keys = append(keys, k)
		pages[k] = p
	}
	sort.Strings(keys)

	matcher, err := NewMatcher(keys...)
	if err != nil {
		return nil, err
	}
	pages[NotFoundKey] = fallback

	return &Table{
		matcher:  matcher,
		pages:    pages,
		fallback: fallback,
		keys:     keys,
	}, nil
}

// Resolve returns the active route and its page for a raw fragment.
// Unknown routes resolve to the fallback page.
func (t *Table) Resolve(fragment string) (Active, Page) {
	a := t.matcher.Resolve(fragment)
	return a, t.pages[a.Key]
}

// Match finds the registered route for an arbitrary path.
func (t *Table) Match(path string) (Active, bool) {
	return t.matcher.Match(path)
}

// Lookup returns the page registered under key. NotFoundKey returns the
// fallback.
func (t *Table) Lookup(key string) (Page, bool) {
	p, ok := t.pages[key]
	return p, ok
}

// Keys returns the registered route keys in sorted order, excluding the
// fallback pseudo-route.
func (t *Table) Keys() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}
