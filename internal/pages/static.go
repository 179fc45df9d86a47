package pages

import (
	"context"

	"github.com/a-h/templ"

	"github.com/pthm/hxnav"
)

// About describes the app.
type About struct{}

func (About) Render(ctx context.Context, v hxnav.Visit) (templ.Component, error) {
	return aboutView, nil
}

func (About) AfterRender(ctx context.Context, m *hxnav.Mount) error { return nil }

var aboutView = html(
	`<section class="about-page"><div class="container">`,
	`<a href="#about-content" class="skip-link">Skip to content</a>`,
	`<h1 class="page-title">About Dicoding Stories</h1>`,
	`<div id="about-content" class="about-content">`,
	`<div class="about-section"><h2>What is Dicoding Stories?</h2>`,
	`<p>Dicoding Stories is a platform where the Dicoding community can share their stories, experiences, and moments through photos and text. Think of it as a special Instagram just for the Dicoding community!</p></div>`,
	`<div class="about-section"><h2>Features</h2><ul class="feature-list">`,
	`<li><h3>Share Stories</h3><p>Capture moments with your camera or upload photos and share your stories with the community.</p></li>`,
	`<li><h3>Location Sharing</h3><p>Add your location to stories and see where other community members are posting from.</p></li>`,
	`<li><h3>Notifications</h3><p>Get notified when your story is successfully posted.</p></li>`,
	`<li><h3>Mobile Friendly</h3><p>Access Dicoding Stories from any device: mobile, tablet, or desktop.</p></li>`,
	`</ul></div>`,
	`<div class="about-section"><h2>Technologies Used</h2><ul class="tech-list">`,
	`<li>Server-driven pages with HTMX</li>`,
	`<li>Leaflet.js for Maps</li>`,
	`<li>Accessibility Features</li>`,
	`<li>View Transition API</li>`,
	`</ul></div>`,
	`<div class="about-section"><h2>Developer</h2>`,
	`<p>This application uses the Dicoding Story API to run a story sharing platform for the Dicoding community.</p>`,
	`<p>Feel free to explore the app, create an account, and share your own stories!</p></div>`,
	`</div></div></section>`,
)

// NotFound is the fallback page for unknown routes.
type NotFound struct{}

func (NotFound) Render(ctx context.Context, v hxnav.Visit) (templ.Component, error) {
	return html(
		`<section class="not-found-page"><div class="container">`,
		`<h1 class="page-title">Page not found</h1>`,
		`<p>There is nothing at `, text(v.Fragment), `.</p>`,
		`<a href="#/" class="primary-button">Back to home</a>`,
		`</div></section>`,
	), nil
}

func (NotFound) AfterRender(ctx context.Context, m *hxnav.Mount) error { return nil }
