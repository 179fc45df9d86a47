package hxnav

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"
)

type hostFixture struct {
	host  *Host
	log   *CallLog
	login *actorPage
	home  *MockPage
	made  int
}

func newHostFixture(t *testing.T) *hostFixture {
	t.Helper()
	f := &hostFixture{log: &CallLog{}}
	f.home = NewMockPage("home", f.log)
	f.home.RenderFunc = func(ctx context.Context, v Visit) (templ.Component, error) {
		return Slot("stories", templ.Raw("<p>Loading...</p>")), nil
	}
	f.home.AfterRenderFunc = func(ctx context.Context, m *Mount) error {
		return m.Defer("stories", func(ctx context.Context) (templ.Component, error) {
			return templ.Raw("<ul><li>story</li></ul>"), nil
		})
	}

	f.login = &actorPage{MockPage: NewMockPage("login", f.log), Base: NewBase()}
	f.login.Action("submit", func(ctx context.Context, m *Mount, r *http.Request) Result {
		if r.FormValue("password") == "" {
			_ = m.Fill("login-error", templ.Raw("Password is required"))
			return OK().Status(http.StatusUnprocessableEntity)
		}
		return OK().Flash(FlashSuccess, "Logged in").Reload()
	})
	f.login.Action("forget", func(ctx context.Context, m *Mount, r *http.Request) Result {
		return OK().Flash(FlashInfo, "Forgot "+r.FormValue("email"))
	}).Method(http.MethodDelete)

	table, err := NewTable(map[string]Page{"/": f.home, "/login": f.login}, NewMockPage("notfound", f.log))
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}

	f.host = NewHost([]byte("test-key"), "/_", func(ctx context.Context, id string, r *http.Request) (*App, error) {
		f.made++
		return New(table, Options{
			Swapper: ProbeSwapper(r),
			Nav: func(ctx context.Context) []NavLink {
				return []NavLink{{Href: "#/", Label: "Home"}, {Href: "#/login", Label: "Login"}}
			},
		}), nil
	})
	t.Cleanup(func() { f.host.Close(context.Background()) })
	return f
}

func TestHostNavigate(t *testing.T) {
	f := newHostFixture(t)
	s := NewTestSession(f.host).WithHeader(CapabilityHeader, "1")

	res, err := s.Navigate("#/login")
	if err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	if !res.IsOK() {
		t.Fatalf("status = %d, body %q", res.StatusCode, res.HTML)
	}
	if !res.HTMLContains("<p>login</p>") {
		t.Errorf("response missing page markup: %s", res.HTML)
	}
	if !res.HasHeader("HX-Reswap", "innerHTML transition:true") {
		t.Errorf("HX-Reswap = %q, want transition swap", res.GetHeader("HX-Reswap"))
	}
	if !res.HasHeader("HX-Retarget", "#main-content") {
		t.Errorf("HX-Retarget = %q", res.GetHeader("HX-Retarget"))
	}
	if !res.HTMLContains(`<a href="#/login" class="active" aria-current="page">Login</a>`) {
		t.Errorf("nav not highlighted: %s", res.HTML)
	}

	if _, err := s.Navigate("#/"); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	if f.made != 1 {
		t.Errorf("factory calls = %d, want one session", f.made)
	}
	if f.host.Len() != 1 {
		t.Errorf("Len() = %d, want 1", f.host.Len())
	}
}

func TestHostNavigateFallsBackToCurrentURL(t *testing.T) {
	f := newHostFixture(t)
	h := f.host.Handler()

	req := httptest.NewRequest(http.MethodGet, "/_/nav", nil)
	req.Header.Set("HX-Request", "true")
	req.Header.Set("HX-Current-URL", "https://stories.example/#/login")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "<p>login</p>") {
		t.Errorf("body = %q, want login page", rec.Body.String())
	}
}

func TestHostDeferredSlot(t *testing.T) {
	f := newHostFixture(t)
	s := NewTestSession(f.host)

	if _, err := s.Navigate(""); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	gen := s.App().Visit().Gen

	res, err := s.Slot(gen, "stories")
	if err != nil {
		t.Fatalf("Slot() error = %v", err)
	}
	if res.HTML != "<ul><li>story</li></ul>" {
		t.Errorf("slot body = %q", res.HTML)
	}

	if _, err := s.Navigate("#/login"); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	res, _ = s.Slot(gen, "stories")
	if !res.HasStatus(http.StatusNoContent) {
		t.Errorf("stale slot status = %d, want 204", res.StatusCode)
	}
}

func TestHostAction(t *testing.T) {
	f := newHostFixture(t)
	s := NewTestSession(f.host)

	if _, err := s.Navigate("#/login"); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}

	res, err := s.Post("submit", map[string]string{"password": ""})
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if !res.HasStatus(http.StatusUnprocessableEntity) {
		t.Errorf("status = %d, want 422", res.StatusCode)
	}
	if !res.HTMLContains(`<div id="login-error" hx-swap-oob="innerHTML">Password is required</div>`) {
		t.Errorf("missing slot update: %s", res.HTML)
	}

	res, _ = s.Post("submit", map[string]string{"password": "secret123"})
	if !res.HasFlash(FlashSuccess, "Logged in") {
		t.Errorf("flashes = %+v", res.Flashes)
	}
	if !res.Reloaded || !res.HasEvent(EventReload) {
		t.Errorf("expected reload event, got %v", res.TriggeredEvents)
	}
}

func TestHostDeleteAction(t *testing.T) {
	f := newHostFixture(t)
	s := NewTestSession(f.host)
	_, _ = s.Navigate("#/login")

	res, err := s.Act(http.MethodDelete, "forget", map[string]string{"email": "rina@example.com"})
	if err != nil {
		t.Fatalf("Act() error = %v", err)
	}
	if !res.IsOK() {
		t.Fatalf("status = %d, body %q", res.StatusCode, res.HTML)
	}
	if !res.HasFlash(FlashInfo, "Forgot rina@example.com") {
		t.Errorf("flashes = %+v", res.Flashes)
	}
}

func TestHostActionStale(t *testing.T) {
	f := newHostFixture(t)
	s := NewTestSession(f.host)

	_, _ = s.Navigate("#/login")
	old := s.App().Visit()
	_, _ = s.Navigate("#/")

	res, _ := s.ActAt(http.MethodPost, "submit", old.Route.Key, old.Gen, map[string]string{"password": "x"})
	if !res.HasStatus(http.StatusConflict) {
		t.Errorf("stale post status = %d, want 409", res.StatusCode)
	}
}

func TestHostCSRF(t *testing.T) {
	f := newHostFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/_/a/submit", strings.NewReader("_route=/login&_gen=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	f.host.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestHostActionWithoutSession(t *testing.T) {
	f := newHostFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/_/a/submit", strings.NewReader("_route=/login&_gen=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "forged.cookie"})
	rec := httptest.NewRecorder()

	f.host.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusGone {
		t.Errorf("status = %d, want 410", rec.Code)
	}
}

func TestHostSweep(t *testing.T) {
	f := newHostFixture(t)
	s := NewTestSession(f.host)
	_, _ = s.Navigate("#/login")
	app := s.App()

	if n := f.host.Sweep(context.Background(), time.Now()); n != 0 {
		t.Errorf("Sweep(now) evicted %d, want 0", n)
	}
	if n := f.host.Sweep(context.Background(), time.Now().Add(time.Hour)); n != 1 {
		t.Errorf("Sweep(+1h) evicted %d, want 1", n)
	}
	if f.log.Count("login.beforeDestroy") != 1 {
		t.Error("evicted session should tear down its page")
	}
	if err := app.RenderPage(context.Background(), "#/"); err != ErrClosed {
		t.Errorf("evicted App RenderPage error = %v, want ErrClosed", err)
	}

	// The cookie survives eviction; the next request rebuilds the session
	// under the same id.
	if _, err := s.Navigate("#/"); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	if f.made != 2 || s.App() == nil {
		t.Errorf("factory calls = %d, want a rebuilt session", f.made)
	}
}
