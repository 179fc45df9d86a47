package hxnav

import (
	"strings"
	"testing"

	"github.com/a-h/templ"
)

func TestHighlight(t *testing.T) {
	links := []NavLink{
		{Href: "#/", Label: "Beranda"},
		{Href: "#/add", Label: "Tambah Cerita"},
		{Label: "Logout", Attrs: templ.Attributes{"hx-post": "/logout"}},
	}

	tests := []struct {
		fragment string
		want     []bool
	}{
		{"", []bool{true, false, false}},
		{"#", []bool{true, false, false}},
		{"#/", []bool{true, false, false}},
		{"/add", []bool{false, true, false}},
		{"#/add", []bool{false, true, false}},
		{"#/add/", []bool{false, false, false}},
	}
	for _, tt := range tests {
		got := Highlight(links, tt.fragment)
		for i, l := range got {
			if l.Active != tt.want[i] {
				t.Errorf("Highlight(%q)[%d].Active = %v, want %v", tt.fragment, i, l.Active, tt.want[i])
			}
		}
	}
	if links[0].Active {
		t.Error("Highlight must not modify its input")
	}
}

func TestNavList(t *testing.T) {
	links := []NavLink{
		{Href: "#/", Label: "Home", Active: true},
		{ID: "logout-btn", Label: "Logout <now>", Attrs: templ.Attributes{"hx-post": "/logout"}},
	}

	html := renderString(t, NavList(links, false))

	for _, want := range []string{
		`<ul id="nav-list" class="nav-list">`,
		`<li><a href="#/" class="active" aria-current="page">Home</a></li>`,
		`<button type="button" id="logout-btn" hx-post="/logout">Logout &lt;now&gt;</button>`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("NavList() missing %q in %s", want, html)
		}
	}
	if strings.Contains(html, "hx-swap-oob") {
		t.Error("non-OOB list must not carry hx-swap-oob")
	}
	if oob := renderString(t, NavList(nil, true)); !strings.Contains(oob, `hx-swap-oob="outerHTML"`) {
		t.Errorf("OOB list = %q", oob)
	}
}
