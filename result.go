package hxnav

// Result is returned from action handlers to describe side effects.
//
// Result is a fluent builder: handlers say what should happen (flash a
// toast, go to another page, reload the shell) without writing to the
// ResponseWriter. The Host applies it after the handler returns, together
// with any slot updates the handler made through its Mount.
//
//	// Success with flash message
//	return hxnav.OK().Flash(hxnav.FlashSuccess, "Story posted")
//
//	// Error, rendered through the Host's OnError
//	return hxnav.Err(err)
//
//	// Go to another page; the browser's hash changes and the App
//	// navigates as for any other hashchange
//	return hxnav.Navigate("#/")
//
//	// Full reload, e.g. after the auth state changed the nav
//	return hxnav.OK().Reload()
type Result struct {
	err         error
	navigate    string
	reload      bool
	flashes     []Flash
	trigger     string
	triggerData map[string]any
	headers     map[string]string
	status      int
}

// OK creates a success result.
func OK() Result {
	return Result{}
}

// Err creates an error result that is passed to the Host's OnError.
//
// Use it for failures the user cannot act on. Validation problems are
// better reported with a flash or by filling a slot with the messages.
func Err(err error) Result {
	return Result{err: err}
}

// Navigate creates a result that moves the browser to fragment. The shell
// assigns location.hash, so the navigation goes through the same
// hashchange path as a clicked link.
func Navigate(fragment string) Result {
	return Result{navigate: fragment}
}

// Flash adds a flash message (toast notification) to the result.
//
// Multiple flashes can be chained:
//
//	return hxnav.OK().
//	    Flash(hxnav.FlashSuccess, "Logged in").
//	    Flash(hxnav.FlashInfo, "Welcome back")
func (r Result) Flash(level, message string) Result {
	r.flashes = append(r.flashes, Flash{Level: level, Message: message})
	return r
}

// Navigate sets the fragment to move to after the response is applied.
func (r Result) Navigate(fragment string) Result {
	r.navigate = fragment
	return r
}

// Reload asks the shell to reload the whole document.
func (r Result) Reload() Result {
	r.reload = true
	return r
}

// Trigger emits an event via the HX-Trigger header.
//
//	return hxnav.OK().Trigger("story:posted", map[string]any{"id": id})
func (r Result) Trigger(event string, data ...map[string]any) Result {
	r.trigger = event
	if len(data) > 0 {
		r.triggerData = data[0]
	}
	return r
}

// Header sets a custom response header.
func (r Result) Header(key, value string) Result {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

// Status sets the HTTP status code. The default is 200.
func (r Result) Status(code int) Result {
	r.status = code
	return r
}

// GetErr returns the error from the result.
func (r Result) GetErr() error {
	return r.err
}

// GetNavigate returns the fragment to navigate to, or "".
func (r Result) GetNavigate() string {
	return r.navigate
}

// ShouldReload reports whether the shell should reload.
func (r Result) ShouldReload() bool {
	return r.reload
}

// GetFlashes returns the flash messages.
func (r Result) GetFlashes() []Flash {
	return r.flashes
}

// GetTrigger returns the trigger event name.
func (r Result) GetTrigger() string {
	return r.trigger
}

// GetTriggerData returns the trigger event data.
func (r Result) GetTriggerData() map[string]any {
	return r.triggerData
}

// GetHeaders returns the response headers.
func (r Result) GetHeaders() map[string]string {
	return r.headers
}

// GetStatus returns the HTTP status code (0 means not set, use default 200).
func (r Result) GetStatus() int {
	return r.status
}
