package hxnav

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/a-h/templ"
)

// Form field names carrying the visit identity of an action post.
const (
	FieldRoute = "_route"
	FieldGen   = "_gen"
)

// ActionDef holds metadata about a registered page action.
type ActionDef struct {
	Name    string
	Method  string
	Handler ActionFunc
}

// ActionBuilder configures action registration (e.g., HTTP method override).
//
// Returned by Base.Action to allow optional method override:
//
//	p.Action("submit", p.handleSubmit)  // POST by default
//	p.Action("clear", p.handleClear).Method(http.MethodDelete)
type ActionBuilder struct {
	action *ActionDef
}

// Method overrides the default POST method for an action.
func (ab *ActionBuilder) Method(m string) *ActionBuilder {
	ab.action.Method = m
	return ab
}

// Base is embedded by pages that accept actions. It plays the role DOM
// event listeners play in a browser page: handlers only run while the page
// is mounted, and a post from markup of a previous visit is rejected.
//
//	type Login struct {
//	    *hxnav.Base
//	    auth AuthStore
//	}
//
//	func NewLogin(auth AuthStore) *Login {
//	    p := &Login{Base: hxnav.NewBase(), auth: auth}
//	    p.Action("submit", p.handleSubmit)
//	    return p
//	}
type Base struct {
	actions map[string]*ActionDef
}

// NewBase creates an empty action registry.
func NewBase() *Base {
	return &Base{actions: make(map[string]*ActionDef)}
}

// Action registers a named action handler with default POST method.
//
// Actions use semantic names that describe intent (submit, capture,
// locate) rather than HTTP methods.
func (b *Base) Action(name string, handler ActionFunc) *ActionBuilder {
	def := &ActionDef{
		Name:    name,
		Method:  http.MethodPost,
		Handler: handler,
	}
	b.actions[name] = def
	return &ActionBuilder{action: def}
}

// Lookup returns the action registered under name. It implements Actor.
func (b *Base) Lookup(name string) (*ActionDef, bool) {
	def, ok := b.actions[name]
	return def, ok
}

// ActionAttrs builds the HTMX attributes that post to a page action.
//
// The visit's route key and generation travel in hx-vals so the App can
// refuse posts from markup that has since been replaced. Responses are
// out-of-band only, hence hx-swap="none".
//
//	<form { v.ActionAttrs("submit")... }>
func ActionAttrs(v Visit, name, method string) templ.Attributes {
	attrs := templ.Attributes{}
	path := v.base + "/a/" + name

	switch method {
	case http.MethodPut:
		attrs["hx-put"] = path
	case http.MethodPatch:
		attrs["hx-patch"] = path
	case http.MethodDelete:
		attrs["hx-delete"] = path
	default:
		attrs["hx-post"] = path
	}

	data, _ := json.Marshal(map[string]string{
		FieldRoute: v.Route.Key,
		FieldGen:   strconv.FormatUint(v.Gen, 10),
	})
	attrs["hx-vals"] = string(data)
	attrs["hx-swap"] = string(SwapNone)
	return attrs
}
