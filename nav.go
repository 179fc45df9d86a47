package hxnav

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// NavListID is the element id of the navigation list in the shell.
const NavListID = "nav-list"

// NavLink is one entry of the navigation list. Links with an Href are
// anchors; links without one render as buttons carrying Attrs, for
// entries such as logout that post instead of navigating.
type NavLink struct {
	ID     string
	Href   string
	Label  string
	Attrs  templ.Attributes
	Active bool
}

// NavFunc produces the navigation links for a session. It runs after every
// navigation so links can depend on state such as whether the user is
// logged in.
type NavFunc func(ctx context.Context) []NavLink

// Highlight marks the link whose href equals the current fragment. An
// empty fragment counts as "#/". Matching is exact: "#/detail/42"
// highlights nothing.
func Highlight(links []NavLink, fragment string) []NavLink {
	current := fragment
	if current == "" || current == "#" {
		current = "#/"
	}
	if !strings.HasPrefix(current, "#") {
		current = "#" + current
	}

	out := make([]NavLink, len(links))
	for i, l := range links {
		l.Active = l.Href != "" && l.Href == current
		out[i] = l
	}
	return out
}

// NavList renders the navigation list. With oob set, it is marked for an
// out-of-band swap replacing the list already in the document.
func NavList(links []NavLink, oob bool) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var sb strings.Builder
		sb.WriteString(`<ul id="` + NavListID + `" class="nav-list"`)
		if oob {
			sb.WriteString(` hx-swap-oob="` + string(SwapOuter) + `"`)
		}
		sb.WriteString(`>`)
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}

		for _, l := range links {
			if err := navItem(l).Render(ctx, w); err != nil {
				return err
			}
		}

		_, err := io.WriteString(w, `</ul>`)
		return err
	})
}

func navItem(l NavLink) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var sb strings.Builder
		sb.WriteString(`<li>`)
		if l.Href != "" {
			sb.WriteString(`<a href="`)
			sb.WriteString(templ.EscapeString(l.Href))
			sb.WriteString(`"`)
		} else {
			sb.WriteString(`<button type="button"`)
		}
		if l.ID != "" {
			sb.WriteString(` id="`)
			sb.WriteString(templ.EscapeString(l.ID))
			sb.WriteString(`"`)
		}
		if l.Active {
			sb.WriteString(` class="active" aria-current="page"`)
		}
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
		if len(l.Attrs) > 0 {
			if err := templ.RenderAttributes(ctx, w, l.Attrs); err != nil {
				return err
			}
		}

		sb.Reset()
		sb.WriteString(`>`)
		sb.WriteString(templ.EscapeString(l.Label))
		if l.Href != "" {
			sb.WriteString(`</a>`)
		} else {
			sb.WriteString(`</button>`)
		}
		sb.WriteString(`</li>`)
		_, err := io.WriteString(w, sb.String())
		return err
	})
}
