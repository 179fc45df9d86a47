package hxnav

import (
	"net/http"

	"github.com/a-h/templ"
)

// Visit describes one navigation to a page. It is what Render sees: the
// route that matched, the raw fragment and the region generation the
// markup will be installed under.
type Visit struct {
	Route    Active
	Fragment string
	Gen      uint64
	base     string
}

// Param returns a captured route parameter, "" when absent.
//
//	id := v.Param("id") // "/detail/:id"
func (v Visit) Param(name string) string {
	return v.Route.Params.Get(name)
}

// Base returns the URL prefix the App's endpoints are served under.
func (v Visit) Base() string {
	return v.base
}

// Post returns the attributes for a form or button posting to a page
// action.
//
//	<form { v.Post("submit")... }>
func (v Visit) Post(name string) templ.Attributes {
	return ActionAttrs(v, name, http.MethodPost)
}

// Delete returns the attributes for an action registered with DELETE.
func (v Visit) Delete(name string) templ.Attributes {
	return ActionAttrs(v, name, http.MethodDelete)
}
