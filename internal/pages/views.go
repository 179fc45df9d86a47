package pages

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// text is escaped when rendered by html.
type text string

// html renders its parts in order. Strings are trusted markup, text is
// escaped, attributes are rendered with templ and components are
// rendered in place. Nil parts are skipped.
func html(parts ...any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		for _, p := range parts {
			var err error
			switch v := p.(type) {
			case nil:
			case string:
				_, err = io.WriteString(w, v)
			case text:
				_, err = io.WriteString(w, templ.EscapeString(string(v)))
			case templ.Attributes:
				err = templ.RenderAttributes(ctx, w, v)
			case templ.Component:
				if v != nil {
					err = v.Render(ctx, w)
				}
			default:
				err = fmt.Errorf("pages: cannot render %T", p)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// each renders fn for every item.
func each[T any](items []T, fn func(T) templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		for _, it := range items {
			if err := fn(it).Render(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
}

func when(cond bool, c templ.Component) templ.Component {
	if !cond {
		return nil
	}
	return c
}

func loading(msg string) templ.Component {
	return html(`<div class="loading-indicator"><p>`, text(msg), `</p></div>`)
}

func errorBox(msg string) templ.Component {
	return html(`<div class="error-container"><p>`, text(msg), `</p></div>`)
}

func errorMessage(msg string) templ.Component {
	return html(`<div class="error-message" role="alert"><p>`, text(msg), `</p></div>`)
}

func successMessage(msg string) templ.Component {
	return html(`<div class="success-message" role="status"><p>`, text(msg), `</p></div>`)
}

func offlineNotice() templ.Component {
	return html(`<div class="offline-notice" role="status"><p>You are offline. Showing the stories saved on this device.</p></div>`)
}

func guestMessage(msg string) templ.Component {
	return html(`<div class="guest-message"><p>`, text(msg), `</p>`,
		`<a href="#/login" class="login-button">Login</a>`,
		`<a href="#/register" class="register-button">Register</a></div>`)
}

const (
	iconLocation = `<svg xmlns="http://www.w3.org/2000/svg" width="12" height="12" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><path d="M21 10c0 7-9 13-9 13s-9-6-9-13a9 9 0 0 1 18 0z"></path><circle cx="12" cy="10" r="3"></circle></svg>`
	iconCamera   = `<svg xmlns="http://www.w3.org/2000/svg" width="16" height="16" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><path d="M23 19a2 2 0 0 1-2 2H3a2 2 0 0 1-2-2V8a2 2 0 0 1 2-2h4l2-3h6l2 3h4a2 2 0 0 1 2 2z"></path><circle cx="12" cy="13" r="4"></circle></svg>`
	iconBook     = `<svg xmlns="http://www.w3.org/2000/svg" fill="none" viewBox="0 0 24 24" stroke="currentColor"><path stroke-linecap="round" stroke-linejoin="round" stroke-width="2" d="M12 6.253v13m0-13C10.832 5.477 9.246 5 7.5 5S4.168 5.477 3 6.253v13C4.168 18.477 5.754 18 7.5 18s3.332.477 4.5 1.253m0-13C13.168 5.477 14.754 5 16.5 5c1.747 0 3.332.477 4.5 1.253v13C19.832 18.477 18.247 18 16.5 18c-1.746 0-3.332.477-4.5 1.253"></path></svg>`
)
