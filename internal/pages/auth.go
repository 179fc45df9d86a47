package pages

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/pthm/hxnav"
	"github.com/pthm/hxnav/internal/authstore"
	"github.com/pthm/hxnav/internal/storyapi"
	"github.com/pthm/hxnav/internal/validation"
)

const statusSlot = "form-status"

type loginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required,min=8"`
}

func (loginForm) ValidationMessages() map[string]string {
	return map[string]string{
		"email.required":    "Please fill in all fields",
		"password.required": "Please fill in all fields",
		"email.email":       "Please enter a valid email address",
		"password.min":      "Password must be at least 8 characters long",
	}
}

// Login signs a user in.
type Login struct {
	*hxnav.Base
	deps Deps
}

func NewLogin(deps Deps) *Login {
	p := &Login{Base: hxnav.NewBase(), deps: deps}
	p.Action("submit", p.submit)
	return p
}

func (p *Login) Render(ctx context.Context, v hxnav.Visit) (templ.Component, error) {
	return html(
		`<section class="auth-page"><div class="container"><div class="auth-container">`,
		`<div class="auth-header"><h1>Login to Dicoding Stories</h1><p>Welcome back! Please sign in to your account.</p></div>`,
		`<form id="login-form" class="auth-form"`, v.Post("submit"), `>`,
		`<div class="form-group"><label for="email">Email Address</label>`,
		`<input type="email" id="email" name="email" required placeholder="Enter your email address" autocomplete="email" autofocus/></div>`,
		`<div class="form-group"><label for="password">Password</label>`,
		`<input type="password" id="password" name="password" required placeholder="Enter your password" autocomplete="current-password" minlength="8"/></div>`,
		hxnav.Slot(statusSlot, nil),
		`<div class="auth-actions"><button type="submit" id="login-button" class="primary-button">Login</button></div>`,
		`</form>`,
		`<div class="auth-footer"><p>Don't have an account? <a href="#/register">Create new account</a></p></div>`,
		`</div></div></section>`,
	), nil
}

func (p *Login) AfterRender(ctx context.Context, m *hxnav.Mount) error {
	if p.deps.Auth.IsLoggedIn() {
		m.Navigate("#/")
	}
	return nil
}

func (p *Login) submit(ctx context.Context, m *hxnav.Mount, r *http.Request) hxnav.Result {
	f := loginForm{
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
	}
	if verr := validation.ValidateStruct(&f); verr != nil {
		return failForm(m, verr.First())
	}

	res, err := p.deps.API.Login(ctx, f.Email, f.Password)
	if err != nil {
		m.Logger().Info().Err(err).Msg("login failed")
		return failForm(m, storyapi.Message(err))
	}
	if err := p.deps.Auth.SaveAuth(authstore.Auth{UserID: res.UserID, Name: res.Name, Token: res.Token}); err != nil {
		m.Logger().Error().Err(err).Msg("saving auth record")
		return failForm(m, "Login failed. Please try again.")
	}

	if err := m.Fill(statusSlot, successMessage("Login successful! Redirecting...")); err != nil {
		return hxnav.Err(err)
	}
	// The navigation list depends on the login state, so the shell reloads.
	return hxnav.Navigate("#/").Reload()
}

type registerForm struct {
	Name     string `form:"name" validate:"required,min=2"`
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required,min=8,strongpassword"`
}

func (registerForm) ValidationMessages() map[string]string {
	return map[string]string{
		"name.required":           "Please fill in all fields",
		"email.required":          "Please fill in all fields",
		"password.required":       "Please fill in all fields",
		"name.min":                "Name must be at least 2 characters long",
		"email.email":             "Please enter a valid email address",
		"password.min":            "Password must be at least 8 characters long",
		"password.strongpassword": "Password should contain at least one letter and one number",
	}
}

// Register creates an account.
type Register struct {
	*hxnav.Base
	deps Deps
}

func NewRegister(deps Deps) *Register {
	p := &Register{Base: hxnav.NewBase(), deps: deps}
	p.Action("submit", p.submit)
	p.Action("password-hint", p.passwordHint)
	return p
}

func (p *Register) Render(ctx context.Context, v hxnav.Visit) (templ.Component, error) {
	hint := v.Post("password-hint")
	hint["hx-trigger"] = "input changed delay:300ms"

	return html(
		`<section class="auth-page"><div class="container"><div class="auth-container">`,
		`<div class="auth-header"><h1>Create Your Account</h1><p>Join the Dicoding Stories community and start sharing your experiences!</p></div>`,
		`<form id="register-form" class="auth-form"`, v.Post("submit"), `>`,
		`<div class="form-group"><label for="name">Full Name</label>`,
		`<input type="text" id="name" name="name" required placeholder="Enter your full name" autocomplete="name" autofocus/></div>`,
		`<div class="form-group"><label for="email">Email Address</label>`,
		`<input type="email" id="email" name="email" required placeholder="Enter your email address" autocomplete="email"/></div>`,
		`<div class="form-group"><label for="password">Password</label>`,
		`<input type="password" id="password" name="password" required placeholder="Create a strong password (min. 8 characters)" autocomplete="new-password" minlength="8"`, hint, `/>`,
		hxnav.Slot("password-hint", passwordHint("")),
		`</div>`,
		hxnav.Slot(statusSlot, nil),
		`<div class="auth-actions"><button type="submit" id="register-button" class="primary-button">Create Account</button></div>`,
		`</form>`,
		`<div class="auth-footer"><p>Already have an account? <a href="#/login">Sign in here</a></p></div>`,
		`</div></div></section>`,
	), nil
}

func (p *Register) AfterRender(ctx context.Context, m *hxnav.Mount) error {
	if p.deps.Auth.IsLoggedIn() {
		m.Navigate("#/")
	}
	return nil
}

func (p *Register) submit(ctx context.Context, m *hxnav.Mount, r *http.Request) hxnav.Result {
	f := registerForm{
		Name:     strings.TrimSpace(r.FormValue("name")),
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
	}
	if verr := validation.ValidateStruct(&f); verr != nil {
		return failForm(m, verr.First())
	}

	if err := p.deps.API.Register(ctx, f.Name, f.Email, f.Password); err != nil {
		m.Logger().Info().Err(err).Msg("registration failed")
		return failForm(m, storyapi.Message(err))
	}

	if err := m.Fill(statusSlot, successMessage("Account created successfully! Redirecting to login...")); err != nil {
		return hxnav.Err(err)
	}
	return hxnav.Navigate("#/login").Flash(hxnav.FlashSuccess, "Account created. Please log in.")
}

func (p *Register) passwordHint(ctx context.Context, m *hxnav.Mount, r *http.Request) hxnav.Result {
	if err := m.Fill("password-hint", passwordHint(r.FormValue("password"))); err != nil {
		return hxnav.Err(err)
	}
	return hxnav.OK()
}

func passwordHint(pw string) templ.Component {
	n := len([]rune(pw))
	switch {
	case n == 0:
		return html(`<small class="password-hint">Password must be at least 8 characters long</small>`)
	case n < 8:
		return html(`<small class="password-hint weak">Password too short (`, text(strconv.Itoa(n)), `/8 characters)</small>`)
	case !validation.StrongPassword(pw):
		return html(`<small class="password-hint medium">Password should contain letters and numbers</small>`)
	default:
		return html(`<small class="password-hint strong">Strong password &#10003;</small>`)
	}
}

// failForm shows msg in the form's status slot.
func failForm(m *hxnav.Mount, msg string) hxnav.Result {
	if err := m.Fill(statusSlot, errorMessage(msg)); err != nil {
		return hxnav.Err(err)
	}
	return hxnav.OK()
}
