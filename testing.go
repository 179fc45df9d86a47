package hxnav

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/a-h/templ"
)

// TestResult holds the result of a request or render for testing.
//
// Provides convenience methods for asserting on HTML content, headers,
// status codes, events, flashes and requested navigation.
type TestResult struct {
	HTML            string
	StatusCode      int
	Headers         http.Header
	TriggeredEvents []string
	Flashes         []Flash
	NavigateTo      string
	Reloaded        bool
}

// TestVisit builds a Visit for rendering a page outside an App.
//
//	v := hxnav.TestVisit("/detail/:id", hxnav.Params{"id": "42"})
func TestVisit(key string, params Params) Visit {
	return Visit{
		Route:    Active{Key: key, Params: params, Path: key},
		Fragment: "#" + key,
		Gen:      1,
		base:     DefaultBasePath,
	}
}

// TestRender renders a page for a visit and returns testable output.
//
// Use this for pure unit tests of rendering logic. Slots render their
// placeholders since nothing was mounted.
//
//	result, err := hxnav.TestRender(about, hxnav.TestVisit("/about", nil))
//	if !result.HTMLContains("About") {
//	    t.Fatal("missing heading")
//	}
func TestRender(p Page, v Visit) (*TestResult, error) {
	return TestRenderWithContext(context.Background(), p, v)
}

// TestRenderWithContext renders a page with a custom context.
func TestRenderWithContext(ctx context.Context, p Page, v Visit) (*TestResult, error) {
	c, err := p.Render(ctx, v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if c != nil {
		if err := c.Render(ctx, &buf); err != nil {
			return nil, err
		}
	}
	return &TestResult{HTML: buf.String(), StatusCode: http.StatusOK, Headers: http.Header{}}, nil
}

// TestSession drives a Host like a browser tab: it keeps the session
// cookie and fills in the visit fields of action posts.
//
//	s := hxnav.NewTestSession(host)
//	res, _ := s.Navigate("#/login")
//	res, _ = s.Post("submit", map[string]string{"email": "a@b.c", "password": "secret123"})
type TestSession struct {
	handler http.Handler
	host    *Host
	cookies []*http.Cookie
	headers map[string]string
}

// NewTestSession creates a session against host.
func NewTestSession(host *Host) *TestSession {
	return &TestSession{
		handler: host.Handler(),
		host:    host,
		headers: make(map[string]string),
	}
}

// WithHeader sets a header sent on every request, such as
// CapabilityHeader before the first navigation.
func (s *TestSession) WithHeader(key, value string) *TestSession {
	s.headers[key] = value
	return s
}

// App returns the App of the session, nil before the first request.
func (s *TestSession) App() *App {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range s.cookies {
		req.AddCookie(c)
	}
	_, app, err := s.host.Lookup(req)
	if err != nil {
		return nil
	}
	return app
}

// Navigate requests a navigation to fragment.
func (s *TestSession) Navigate(fragment string) (*TestResult, error) {
	u := s.host.base + "/nav?f=" + url.QueryEscape(fragment)
	return s.do(httptest.NewRequest(http.MethodGet, u, nil))
}

// Post submits a form to an action of the mounted page.
func (s *TestSession) Post(action string, formData map[string]string) (*TestResult, error) {
	return s.Act(http.MethodPost, action, formData)
}

// Act submits a form with the given method to an action of the mounted
// page, using the visit fields of the current visit.
func (s *TestSession) Act(method, action string, formData map[string]string) (*TestResult, error) {
	app := s.App()
	if app == nil {
		return nil, ErrNoSession
	}
	v := app.Visit()
	return s.ActAt(method, action, v.Route.Key, v.Gen, formData)
}

// ActAt submits an action with explicit visit fields, e.g. to replay a
// post from markup that has since been replaced.
func (s *TestSession) ActAt(method, action, routeKey string, gen uint64, formData map[string]string) (*TestResult, error) {
	form := url.Values{}
	for k, v := range formData {
		form.Set(k, v)
	}
	form.Set(FieldRoute, routeKey)
	form.Set(FieldGen, strconv.FormatUint(gen, 10))

	target := s.host.base + "/a/" + action
	// htmx sends GET and DELETE parameters in the query string, and
	// ParseForm only reads the body of POST, PUT and PATCH.
	if method == http.MethodGet || method == http.MethodDelete {
		return s.do(httptest.NewRequest(method, target+"?"+form.Encode(), nil))
	}
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req)
}

// TestFile is a file part of an Upload.
type TestFile struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

// Upload submits a multipart form with files to an action of the
// mounted page.
func (s *TestSession) Upload(action string, formData map[string]string, files ...TestFile) (*TestResult, error) {
	app := s.App()
	if app == nil {
		return nil, ErrNoSession
	}
	v := app.Visit()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, val := range formData {
		if err := mw.WriteField(k, val); err != nil {
			return nil, err
		}
	}
	_ = mw.WriteField(FieldRoute, v.Route.Key)
	_ = mw.WriteField(FieldGen, strconv.FormatUint(v.Gen, 10))
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Name))
		h.Set("Content-Type", f.ContentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req := httptest.NewRequest(http.MethodPost, s.host.base+"/a/"+action, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.do(req)
}

// Slot long-polls a deferred slot.
func (s *TestSession) Slot(gen uint64, id string) (*TestResult, error) {
	u := fmt.Sprintf("%s/slot/%d/%s", s.host.base, gen, id)
	return s.do(httptest.NewRequest(http.MethodGet, u, nil))
}

func (s *TestSession) do(req *http.Request) (*TestResult, error) {
	req.Header.Set("HX-Request", "true")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	for _, c := range s.cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	if set := rec.Result().Cookies(); len(set) > 0 {
		s.cookies = set
	}
	return newTestResult(rec), nil
}

func newTestResult(rec *httptest.ResponseRecorder) *TestResult {
	result := &TestResult{
		HTML:       rec.Body.String(),
		StatusCode: rec.Code,
		Headers:    rec.Header(),
	}

	// Parse triggered events from HX-Trigger header
	if trigger := rec.Header().Get("HX-Trigger"); trigger != "" {
		result.TriggeredEvents = parseTriggerHeader(trigger)
		result.NavigateTo, result.Reloaded = parseEffects(trigger)
	}

	// Parse flashes from the HTML (they appear as OOB swaps)
	result.Flashes = parseFlashesFromHTML(result.HTML)
	return result
}

// HTMLContains checks if the HTML contains a substring.
func (r *TestResult) HTMLContains(substr string) bool {
	return strings.Contains(r.HTML, substr)
}

// HTMLContainsAll checks if the HTML contains all the given substrings.
func (r *TestResult) HTMLContainsAll(substrs ...string) bool {
	for _, s := range substrs {
		if !strings.Contains(r.HTML, s) {
			return false
		}
	}
	return true
}

// HTMLContainsAny checks if the HTML contains any of the given substrings.
func (r *TestResult) HTMLContainsAny(substrs ...string) bool {
	for _, s := range substrs {
		if strings.Contains(r.HTML, s) {
			return true
		}
	}
	return false
}

// HasEvent checks if an event was triggered.
func (r *TestResult) HasEvent(event string) bool {
	for _, e := range r.TriggeredEvents {
		if e == event {
			return true
		}
	}
	return false
}

// HasFlash checks if a flash message was set with the given level and message.
func (r *TestResult) HasFlash(level, message string) bool {
	for _, f := range r.Flashes {
		if f.Level == level && f.Message == message {
			return true
		}
	}
	return false
}

// HasFlashLevel checks if any flash message was set with the given level.
func (r *TestResult) HasFlashLevel(level string) bool {
	for _, f := range r.Flashes {
		if f.Level == level {
			return true
		}
	}
	return false
}

// IsOK checks if the status code is 200.
func (r *TestResult) IsOK() bool {
	return r.StatusCode == http.StatusOK
}

// HasStatus checks if the status code matches.
func (r *TestResult) HasStatus(code int) bool {
	return r.StatusCode == code
}

// HasHeader checks if a header is set with the given value.
func (r *TestResult) HasHeader(key, value string) bool {
	return r.Headers.Get(key) == value
}

// GetHeader returns the value of a header.
func (r *TestResult) GetHeader(key string) string {
	return r.Headers.Get(key)
}

// parseTriggerHeader parses the HX-Trigger header value into event names.
// The header can be a simple event name, a comma-separated list or JSON.
func parseTriggerHeader(trigger string) []string {
	trigger = strings.TrimSpace(trigger)
	if trigger == "" {
		return nil
	}

	if strings.HasPrefix(trigger, "{") {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(trigger), &obj); err != nil {
			return nil
		}
		events := make([]string, 0, len(obj))
		for k := range obj {
			events = append(events, k)
		}
		return events
	}

	parts := strings.Split(trigger, ",")
	events := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			events = append(events, p)
		}
	}
	return events
}

// parseEffects extracts the navigate and reload events the shell acts on.
func parseEffects(trigger string) (navigate string, reload bool) {
	if !strings.HasPrefix(strings.TrimSpace(trigger), "{") {
		return "", trigger == EventReload
	}
	var obj struct {
		Navigate *struct {
			Fragment string `json:"fragment"`
		} `json:"hxnav:navigate"`
		Reload bool `json:"hxnav:reload"`
	}
	if err := json.Unmarshal([]byte(trigger), &obj); err != nil {
		return "", false
	}
	if obj.Navigate != nil {
		navigate = obj.Navigate.Fragment
	}
	return navigate, obj.Reload
}

// parseFlashesFromHTML extracts flash messages from OOB swap HTML.
// Looks for patterns like: <div class="toast toast-success" ...>message</div>
func parseFlashesFromHTML(html string) []Flash {
	var flashes []Flash

	const prefix = `<div class="toast toast-`
	idx := 0
	for {
		start := strings.Index(html[idx:], prefix)
		if start == -1 {
			break
		}
		start += idx + len(prefix)

		levelEnd := strings.Index(html[start:], `"`)
		if levelEnd == -1 {
			break
		}
		level := html[start : start+levelEnd]

		tagEnd := strings.Index(html[start:], ">")
		if tagEnd == -1 {
			break
		}
		contentStart := start + tagEnd + 1

		contentEnd := strings.Index(html[contentStart:], "</div>")
		if contentEnd == -1 {
			break
		}
		message := html[contentStart : contentStart+contentEnd]

		flashes = append(flashes, Flash{
			Level:   level,
			Message: message,
		})

		idx = contentStart + contentEnd
	}

	return flashes
}

// MockPage is a Page built from functions that records its lifecycle
// calls. Several mocks can share one CallLog to assert ordering across
// pages.
//
//	log := &hxnav.CallLog{}
//	home := hxnav.NewMockPage("home", log)
//	home.AfterRenderFunc = func(ctx context.Context, m *hxnav.Mount) error {
//	    return m.Fill("list", templ.Raw("<li>one</li>"))
//	}
type MockPage struct {
	Name            string
	Log             *CallLog
	RenderFunc      func(ctx context.Context, v Visit) (templ.Component, error)
	AfterRenderFunc func(ctx context.Context, m *Mount) error
	DestroyFunc     func(ctx context.Context) error

	mu     sync.Mutex
	visits []Visit
}

// NewMockPage creates a mock that renders `<p>{name}</p>`.
func NewMockPage(name string, log *CallLog) *MockPage {
	if log == nil {
		log = &CallLog{}
	}
	return &MockPage{Name: name, Log: log}
}

// Render records the call and delegates to RenderFunc.
func (p *MockPage) Render(ctx context.Context, v Visit) (templ.Component, error) {
	p.Log.add(p.Name + ".render")
	p.mu.Lock()
	p.visits = append(p.visits, v)
	p.mu.Unlock()
	if p.RenderFunc != nil {
		return p.RenderFunc(ctx, v)
	}
	return templ.Raw("<p>" + templ.EscapeString(p.Name) + "</p>"), nil
}

// AfterRender records the call and delegates to AfterRenderFunc.
func (p *MockPage) AfterRender(ctx context.Context, m *Mount) error {
	p.Log.add(p.Name + ".afterRender")
	if p.AfterRenderFunc != nil {
		return p.AfterRenderFunc(ctx, m)
	}
	return nil
}

// BeforeDestroy records the call and delegates to DestroyFunc.
func (p *MockPage) BeforeDestroy(ctx context.Context) error {
	p.Log.add(p.Name + ".beforeDestroy")
	if p.DestroyFunc != nil {
		return p.DestroyFunc(ctx)
	}
	return nil
}

// LastVisit returns the visit of the latest Render call.
func (p *MockPage) LastVisit() (Visit, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.visits) == 0 {
		return Visit{}, false
	}
	return p.visits[len(p.visits)-1], true
}

// CallLog records lifecycle calls in order.
type CallLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *CallLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

// Calls returns a copy of the recorded calls.
func (l *CallLog) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

// Count returns how many times call was recorded.
func (l *CallLog) Count(call string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c == call {
			n++
		}
	}
	return n
}

// Reset clears the log.
func (l *CallLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}
