package hxnav

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/a-h/templ"
)

// Events the shell script listens for on HX-Trigger.
const (
	EventNavigate = "hxnav:navigate"
	EventReload   = "hxnav:reload"
)

// Render writes a templ component to the HTTP response.
//
//	func shell(w http.ResponseWriter, r *http.Request) {
//	    hxnav.Render(w, r, layout(app))
//	}
func Render(w http.ResponseWriter, r *http.Request, component templ.Component) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(r.Context(), w)
}

// IsHTMX returns true if the request originated from HTMX.
//
// HTMX sends HX-Request: true on all requests. The Host uses it as the
// CSRF guard for mutating methods.
func IsHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// CurrentURL returns the current URL from the HX-Current-URL header.
//
// This is the URL the browser is currently on (not the request URL).
// Returns empty string if header not present (non-HTMX request).
func CurrentURL(r *http.Request) string {
	return r.Header.Get("HX-Current-URL")
}

// CurrentFragment returns the fragment of the browser's current URL, or
// "" when the header is absent or has none.
func CurrentFragment(r *http.Request) string {
	raw := CurrentURL(r)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Fragment
}

// TriggerID returns the id attribute of the element that triggered the request.
func TriggerID(r *http.Request) string {
	return r.Header.Get("HX-Trigger")
}

// BuildTriggerHeader builds the HX-Trigger header value for a result.
//
// A lone event without data is sent as its bare name. Otherwise the value
// is a JSON object: the custom event with its data, plus the navigate and
// reload events the shell script acts on.
func BuildTriggerHeader(res Result) string {
	trigger, data := res.GetTrigger(), res.GetTriggerData()
	nav, reload := res.GetNavigate(), res.ShouldReload()

	if trigger == "" && nav == "" && !reload {
		return ""
	}
	if nav == "" && !reload && data == nil {
		return trigger
	}

	merged := make(map[string]any)
	if trigger != "" {
		if data != nil {
			merged[trigger] = data
		} else {
			merged[trigger] = true
		}
	}
	if nav != "" {
		merged[EventNavigate] = map[string]any{"fragment": nav}
	}
	if reload {
		merged[EventReload] = true
	}

	out, _ := json.Marshal(merged)
	return string(out)
}
