package pages

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/pthm/hxnav"
	"github.com/pthm/hxnav/internal/device"
	"github.com/pthm/hxnav/internal/mapview"
	"github.com/pthm/hxnav/internal/storyapi"
	"github.com/pthm/hxnav/internal/validation"
)

// PermissionIndicator is the id of the camera and location notice shown
// outside the content region while the add-story page is mounted.
const PermissionIndicator = "permission-indicator"

type photo struct {
	data  []byte
	ctype string
	name  string
}

func (ph photo) dataURL() string {
	return "data:" + ph.ctype + ";base64," + base64.StdEncoding.EncodeToString(ph.data)
}

type storyForm struct {
	Description string `form:"description" validate:"required,min=10"`
}

func (storyForm) ValidationMessages() map[string]string {
	return map[string]string{
		"description.required": "Please enter a description for your story",
		"description.min":      "Story description should be at least 10 characters long",
	}
}

type locationForm struct {
	Lat string `form:"lat" validate:"required,latitude"`
	Lon string `form:"lon" validate:"required,longitude"`
}

// AddStory posts a story with a photo from the camera or the gallery and
// an optional location picked on a map. Logged-out users post as guests.
//
// Fields are only touched from lifecycle hooks and actions, which the App
// runs one at a time.
type AddStory struct {
	*hxnav.Base
	deps Deps

	mount  *hxnav.Mount
	facing device.Facing
	stream *device.StagingStream
	upload *photo
	loc    *mapview.Map
}

func NewAddStory(deps Deps) *AddStory {
	p := &AddStory{Base: hxnav.NewBase(), deps: deps, facing: device.FacingEnvironment}
	p.Action("camera", p.requestCamera)
	p.Action("close-camera", p.closeCamera)
	p.Action("switch-camera", p.switchCamera)
	p.Action("capture", p.capture)
	p.Action("retake", p.retake)
	p.Action("use-photo", p.usePhoto)
	p.Action("reset-photo", p.resetPhoto)
	p.Action("upload", p.uploadPhoto)
	p.Action("pick-location", p.pickLocation)
	p.Action("clear-location", p.clearLocation).Method(http.MethodDelete)
	p.Action("submit", p.submit)
	return p
}

func (p *AddStory) Render(ctx context.Context, v hxnav.Visit) (templ.Component, error) {
	upload := v.Post("upload")
	upload["hx-trigger"] = "change"
	upload["hx-encoding"] = "multipart/form-data"

	geo := v.Post("pick-location")
	geo["hx-trigger"] = "locate"
	geo["hx-include"] = "this"

	return html(
		`<section class="add-story-page"><div class="container"><div class="add-story-container">`,
		`<div class="add-story-header"><h1>Add New Story</h1><a href="#/" class="back-button" aria-label="Back to Home">&larr; Back to Home</a></div>`,
		when(!p.deps.Auth.IsLoggedIn(), html(`<p class="guest-notice">You are not logged in. Your story will be posted as a guest.</p>`)),
		`<form id="add-story-form" class="add-story-form"`, v.Post("submit"), `>`,
		`<div class="form-group"><label for="description">Description</label>`,
		`<textarea id="description" name="description" required placeholder="Share your story..." rows="4"></textarea></div>`,
		`<div class="form-group"><label>Photo</label><div class="photo-input-container">`,
		`<div id="camera-interface" class="camera-interface"><div class="camera-main">`,
		hxnav.Slot("camera", permissionScreen(v, false)),
		`</div></div>`,
		`<div class="file-upload-section"><div class="upload-divider"><span>Or upload from gallery</span></div>`,
		`<input type="file" id="photo-upload" name="photo" accept="image/*" aria-label="Upload a photo"`, upload, `/></div>`,
		`</div></div>`,
		`<div class="form-group"><label>Location (Optional)</label>`,
		hxnav.Slot("location-map", loading("Loading map...")),
		`<div class="location-controls">`,
		`<button type="button" id="use-my-location-btn" class="location-btn" data-geolocate="geolocate">`, iconLocation, ` Use My Location</button>`,
		`<div id="geolocate" hidden`, geo, `>`,
		`<input type="hidden" name="lat"/><input type="hidden" name="lon"/><input type="hidden" name="geo_error"/></div>`,
		`<div class="location-info">`, hxnav.Slot("location", locationHint()), `</div>`,
		`</div></div>`,
		hxnav.Slot(statusSlot, nil),
		`<div class="form-actions"><button type="submit" id="submit-button" class="submit-button">Post Story</button></div>`,
		`</form></div></div></section>`,
	), nil
}

func (p *AddStory) AfterRender(ctx context.Context, m *hxnav.Mount) error {
	// Pages are reused across visits; drop whatever the last one left.
	p.release()
	p.mount = m
	p.facing = device.FacingEnvironment

	p.loc = p.deps.Maps.New("location-map-widget", DefaultCenter, DefaultZoom)
	p.loc.BindClick(m.Visit().Post("pick-location"))
	return m.Fill("location-map", p.loc.Component())
}

func (p *AddStory) BeforeDestroy(ctx context.Context) error {
	p.release()
	return nil
}

// release stops the camera, removes the map and the indicator.
func (p *AddStory) release() {
	p.closeStream()
	p.upload = nil
	if p.loc != nil {
		p.loc.Remove()
		p.loc = nil
	}
	if p.mount != nil {
		p.mount.ClearIndicator(PermissionIndicator)
		p.mount = nil
	}
}

func (p *AddStory) closeStream() {
	if p.stream == nil {
		return
	}
	if err := p.stream.Close(); err != nil {
		p.deps.Logger.Warn().Err(err).Msg("closing camera stream")
	}
	p.stream = nil
}

func (p *AddStory) acquire(ctx context.Context) error {
	s, err := p.open(ctx, p.facing)
	if err != nil {
		return err
	}
	p.stream = s
	return nil
}

func (p *AddStory) open(ctx context.Context, facing device.Facing) (*device.StagingStream, error) {
	if p.deps.Camera == nil {
		return nil, device.ErrUnsupported
	}
	s, err := device.Acquire(ctx, p.deps.Camera, facing)
	if err != nil {
		return nil, err
	}
	ss, ok := s.(*device.StagingStream)
	if !ok {
		_ = s.Close()
		return nil, device.ErrUnsupported
	}
	return ss, nil
}

// requestCamera runs in two steps. Without a status it asks the browser
// to probe its cameras; the probe posts back what it found, or the name
// of the error the browser raised, and the server picks constraints.
func (p *AddStory) requestCamera(ctx context.Context, m *hxnav.Mount, r *http.Request) hxnav.Result {
	status := r.FormValue("status")
	if status == "" {
		m.Indicate(PermissionIndicator, hxnav.FlashInfo, `Browser will ask for camera permission. Please click "Allow"`)
		return fill(m, "camera", permissionScreen(m.Visit(), true))
	}

	caps := device.Capabilities{
		MaxWidth:     atoi(r.FormValue("max_width")),
		MaxHeight:    atoi(r.FormValue("max_height")),
		MaxFrameRate: atoi(r.FormValue("max_frame_rate")),
	}
	if status != "ok" {
		caps.Err = device.FromName(status)
	}
	for _, f := range strings.Split(r.FormValue("facing"), ",") {
		switch device.Facing(strings.TrimSpace(f)) {
		case device.FacingUser:
			caps.Facing = append(caps.Facing, device.FacingUser)
		case device.FacingEnvironment:
			caps.Facing = append(caps.Facing, device.FacingEnvironment)
		}
	}
	if p.deps.Camera != nil {
		p.deps.Camera.Report(caps)
	}

	p.closeStream()
	if err := p.acquire(ctx); err != nil {
		m.Logger().Info().Err(err).Str("facing", string(p.facing)).Msg("camera unavailable")
		m.Indicate(PermissionIndicator, hxnav.FlashError, "Camera access failed")
		if res := fill(m, "camera", permissionScreen(m.Visit(), false)); res.GetErr() != nil {
			return res
		}
		return failForm(m, device.Message(err))
	}

	m.Indicate(PermissionIndicator, hxnav.FlashSuccess, "Camera access granted!")
	return p.showCamera(m)
}

func (p *AddStory) showCamera(m *hxnav.Mount) hxnav.Result {
	media, err := p.stream.Constraints().MediaJSON()
	if err != nil {
		return hxnav.Err(err)
	}
	return fill(m, "camera", cameraView(m.Visit(), string(media), p.stream.Constraints().Facing))
}

func (p *AddStory) closeCamera(ctx context.Context, m *hxnav.Mount, r *http.Request) hxnav.Result {
	p.closeStream()
	m.ClearIndicator(PermissionIndicator)
	return fill(m, "camera", permissionScreen(m.Visit(), false))
}

// switchCamera keeps the current stream unless the other camera opens
// with the requested facing.
func (p *AddStory) switchCamera(ctx context.Context, m *hxnav.Mount, r *http.Request) hxnav.Result {
	next := device.Switch(p.facing)
	s, err := p.open(ctx, next)
	if err == nil && s.Constraints().Facing != next {
		_ = s.Close()
		err = fmt.Errorf("%w: no %s camera", device.ErrOverconstrained, next.Label())
	}
	if err != nil {
		m.Logger().Info().Err(err).Str("facing", string(next)).Msg("switching camera failed")
		return failForm(m, "Unable to switch camera")
	}

	p.closeStream()
	p.stream, p.facing = s, next
	label := next.Label()
	m.Indicate(PermissionIndicator, hxnav.FlashSuccess, "Switched to "+strings.ToUpper(label[:1])+label[1:]+" camera")
	return p.showCamera(m)
}

func (p *AddStory) capture(ctx context.Context, m *hxnav.Mount, r *http.Request) hxnav.Result {
	if p.stream == nil {
		return failForm(m, "Camera not ready. Please wait a moment and try again.")
	}
	ph, msg := readPhoto(r, "frame", p.deps.MaxPhotoSize)
	if msg != "" {
		return failForm(m, msg)
	}
	if err := p.stream.WriteFrame(ph.data, ph.ctype); err != nil {
		m.Logger().Error().Err(err).Msg("staging captured frame")
		return failForm(m, "Failed to capture photo. Please try again.")
	}
	p.upload = nil

	m.Indicate(PermissionIndicator, hxnav.FlashSuccess, "Photo captured successfully!")
	return fill(m, "camera", photoResult(m.Visit(), ph.dataURL()))
}

func (p *AddStory) retake(ctx context.Context, m *hxnav.Mount, r *http.Request) hxnav.Result {
	p.upload = nil
	if p.stream != nil {
		if err := p.stream.Reset(); err != nil {
			return hxnav.Err(err)
		}
		return p.showCamera(m)
	}
	if err := p.acquire(ctx); err != nil {
		if res := fill(m, "camera", permissionScreen(m.Visit(), false)); res.GetErr() != nil {
			return res
		}
		return failForm(m, device.Message(err))
	}
	return p.showCamera(m)
}

func (p *AddStory) usePhoto(ctx context.Context, m *hxnav.Mount, r *http.Request) hxnav.Result {
	ph, ok := p.photo()
	if !ok {
		return failForm(m, "Please capture or upload a photo")
	}
	m.Indicate(PermissionIndicator, hxnav.FlashSuccess, "Photo selected successfully!")
	return fill(m, "camera", photoChosen(m.Visit(), ph.dataURL()))
}

func (p *AddStory) resetPhoto(ctx context.Context, m *hxnav.Mount, r *http.Request) hxnav.Result {
	p.upload = nil
	p.closeStream()
	m.Indicate(PermissionIndicator, hxnav.FlashInfo, "Photo cleared. Ready to take a new photo.")
	return fill(m, "camera", permissionScreen(m.Visit(), false))
}

func (p *AddStory) uploadPhoto(ctx context.Context, m *hxnav.Mount, r *http.Request) hxnav.Result {
	ph, msg := readPhoto(r, "photo", p.deps.MaxPhotoSize)
	if msg != "" {
		return failForm(m, msg)
	}
	// A gallery photo replaces the camera.
	p.closeStream()
	p.upload = &ph

	m.Indicate(PermissionIndicator, hxnav.FlashSuccess, "Photo uploaded successfully!")
	if res := fill(m, statusSlot, nil); res.GetErr() != nil {
		return res
	}
	return fill(m, "camera", photoResult(m.Visit(), ph.dataURL()))
}

// photo returns the photo to post: an upload, else the captured frame.
func (p *AddStory) photo() (photo, bool) {
	if p.upload != nil {
		return *p.upload, true
	}
	if p.stream == nil || !p.stream.HasFrame() {
		return photo{}, false
	}
	data, ctype, err := p.stream.Frame()
	if err != nil {
		p.deps.Logger.Warn().Err(err).Msg("reading captured frame")
		return photo{}, false
	}
	return photo{data: data, ctype: ctype, name: fmt.Sprintf("camera-photo-%d.jpg", time.Now().UnixMilli())}, true
}

var geoErrors = map[string]string{
	"1": "Location permission denied. Please enable location access in your browser settings.",
	"2": "Location information unavailable. Try again later.",
	"3": "Location request timed out. Check your internet connection.",
}

func (p *AddStory) pickLocation(ctx context.Context, m *hxnav.Mount, r *http.Request) hxnav.Result {
	if code := r.FormValue("geo_error"); code != "" {
		if code == "unsupported" {
			return failForm(m, "Geolocation is not supported by your browser.")
		}
		m.Indicate(PermissionIndicator, hxnav.FlashError, "Location access failed")
		msg := "Unable to get your location. "
		if detail, ok := geoErrors[code]; ok {
			msg += detail + " "
		}
		return failForm(m, msg+"You can select a location manually on the map.")
	}

	f := locationForm{Lat: r.FormValue("lat"), Lon: r.FormValue("lon")}
	if verr := validation.ValidateStruct(&f); verr != nil {
		return failForm(m, verr.First())
	}
	lat, _ := strconv.ParseFloat(f.Lat, 64)
	lon, _ := strconv.ParseFloat(f.Lon, 64)

	if p.loc == nil {
		return hxnav.Err(mapview.ErrRemoved)
	}
	at := mapview.LatLng{Lat: lat, Lng: lon}
	if err := p.loc.SetMarker(at); err != nil {
		return hxnav.Err(err)
	}
	// Map clicks carry no trigger id; the geolocation element does.
	if hxnav.TriggerID(r) == "geolocate" {
		m.Indicate(PermissionIndicator, hxnav.FlashSuccess, "Location found!")
	}
	return fill(m, "location", html(locationDisplay(m.Visit(), at), p.loc.State()))
}

func (p *AddStory) clearLocation(ctx context.Context, m *hxnav.Mount, r *http.Request) hxnav.Result {
	if p.loc == nil {
		return hxnav.Err(mapview.ErrRemoved)
	}
	p.loc.ClearMarker()
	return fill(m, "location", html(locationHint(), p.loc.State()))
}

func (p *AddStory) submit(ctx context.Context, m *hxnav.Mount, r *http.Request) hxnav.Result {
	f := storyForm{Description: strings.TrimSpace(r.FormValue("description"))}
	if verr := validation.ValidateStruct(&f); verr != nil {
		return failForm(m, verr.First())
	}
	ph, ok := p.photo()
	if !ok {
		return failForm(m, "Please capture or upload a photo")
	}

	s := storyapi.NewStory{
		Description: f.Description,
		Photo:       ph.data,
		PhotoName:   ph.name,
		PhotoType:   ph.ctype,
	}
	if p.loc != nil {
		if at, ok := p.loc.Selected(); ok {
			s.Lat, s.Lon = &at.Lat, &at.Lng
		}
	}

	var err error
	if tok := token(p.deps.Auth, m.Logger()); tok != "" {
		err = p.deps.API.AddStory(ctx, tok, s)
	} else {
		err = p.deps.API.AddGuestStory(ctx, s)
	}
	if err != nil {
		m.Logger().Warn().Err(err).Msg("posting story failed")
		m.Indicate(PermissionIndicator, hxnav.FlashError, "Failed to post story")
		return failForm(m, storyapi.Message(err))
	}

	if err := p.deps.Stories.Invalidate(); err != nil {
		m.Logger().Warn().Err(err).Msg("invalidating story cache")
	}
	p.closeStream()
	p.upload = nil
	m.ClearIndicator(PermissionIndicator)

	if res := fill(m, statusSlot, successMessage("Story posted successfully! Redirecting to home...")); res.GetErr() != nil {
		return res
	}
	return hxnav.Navigate("#/").Flash(hxnav.FlashSuccess, "Story posted successfully!")
}

// readPhoto reads an image part of a multipart post. The message is
// empty on success.
func readPhoto(r *http.Request, field string, max int64) (photo, string) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		if !errors.Is(err, http.ErrMissingFile) {
			return photo{}, "Failed to read the photo. Please try again."
		}
		return photo{}, "Please capture or upload a photo"
	}
	defer f.Close()

	ctype := hdr.Header.Get("Content-Type")
	if !strings.HasPrefix(ctype, "image/") {
		return photo{}, "Please select a valid image file."
	}
	tooLarge := "Image file size must be less than " + sizeLabel(max) + "."
	if hdr.Size > max {
		return photo{}, tooLarge
	}
	data, err := io.ReadAll(io.LimitReader(f, max+1))
	if err != nil {
		return photo{}, "Failed to read the photo. Please try again."
	}
	if int64(len(data)) > max {
		return photo{}, tooLarge
	}
	return photo{data: data, ctype: ctype, name: hdr.Filename}, ""
}

func sizeLabel(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return strconv.FormatInt(n>>20, 10) + "MB"
	}
	return strconv.FormatInt(n>>10, 10) + "KB"
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func fill(m *hxnav.Mount, id string, c templ.Component) hxnav.Result {
	if err := m.Fill(id, c); err != nil {
		return hxnav.Err(err)
	}
	return hxnav.OK()
}

func permissionScreen(v hxnav.Visit, requesting bool) templ.Component {
	if requesting {
		return html(
			`<div id="permission-screen" class="permission-screen active"><div class="permission-content">`,
			`<div class="camera-icon">`, iconCamera, `</div><h3>Camera Access Needed</h3>`,
			`<p>Allow camera access to take photos for your story</p>`,
			`<button type="button" id="request-camera-btn" class="request-camera-btn" disabled><div class="loading-spinner"></div> Requesting Permission...</button>`,
			`<div data-camera-probe="camera-report"></div>`,
			cameraReport(v),
			`</div></div>`,
		)
	}
	return html(
		`<div id="permission-screen" class="permission-screen active"><div class="permission-content">`,
		`<div class="camera-icon">`, iconCamera, `</div><h3>Camera Access Needed</h3>`,
		`<p>Allow camera access to take photos for your story</p>`,
		`<button type="button" id="request-camera-btn" class="request-camera-btn"`, v.Post("camera"), `>`, iconCamera, ` Open Camera</button>`,
		`</div></div>`,
	)
}

// cameraReport is where the browser posts its camera probe or a
// getUserMedia failure.
func cameraReport(v hxnav.Visit) templ.Component {
	attrs := v.Post("camera")
	attrs["hx-trigger"] = "report"
	attrs["hx-include"] = "this"
	return html(
		`<div id="camera-report" hidden`, attrs, `>`,
		`<input type="hidden" name="status"/><input type="hidden" name="facing"/>`,
		`<input type="hidden" name="max_width"/><input type="hidden" name="max_height"/><input type="hidden" name="max_frame_rate"/>`,
		`</div>`,
	)
}

func cameraView(v hxnav.Visit, media string, facing device.Facing) templ.Component {
	capture := v.Post("capture")
	capture["hx-trigger"] = "capture"
	capture["hx-include"] = "this"
	capture["hx-encoding"] = "multipart/form-data"

	return html(
		`<div id="camera-view" class="camera-view active">`,
		`<video id="camera-preview" class="camera-preview" autoplay playsinline muted data-constraints="`, text(media), `" data-report="camera-report"></video>`,
		cameraReport(v),
		`<div id="capture-upload" hidden`, capture, `><input type="file" name="frame" accept="image/*"/></div>`,
		`<div class="camera-overlay"><div class="camera-top-bar">`,
		`<button type="button" id="close-camera-btn" class="camera-control-btn close-btn" aria-label="Close camera"`, v.Post("close-camera"), `>&times;</button>`,
		`<div class="camera-status"><div class="recording-indicator"></div><span>`, text(cameraStatus(facing)), `</span></div></div>`,
		`<div class="camera-bottom-bar">`,
		`<button type="button" id="switch-camera-btn" class="camera-control-btn switch-btn" aria-label="Switch camera"`, v.Post("switch-camera"), `>&#8635;</button>`,
		`<button type="button" id="capture-btn" class="capture-btn" aria-label="Take photo" data-capture="capture-upload"><div class="capture-ring"><div class="capture-inner"></div></div></button>`,
		`<button type="button" id="gallery-btn" class="camera-control-btn gallery-btn" aria-label="Upload from gallery" data-open="photo-upload">&#9636;</button>`,
		`</div></div></div>`,
	)
}

// cameraStatus labels the live camera; webcams that do not report a
// facing mode get no side.
func cameraStatus(f device.Facing) string {
	if f == "" {
		return "Camera Active"
	}
	return "Camera Active (" + f.Label() + ")"
}

func photoResult(v hxnav.Visit, src string) templ.Component {
	return html(
		`<div id="photo-result" class="photo-result active">`,
		`<img id="captured-photo" class="captured-photo" alt="Captured photo" src="`, text(src), `"/>`,
		`<div class="photo-actions">`,
		`<button type="button" id="reset-photo-btn" class="action-btn reset"`, v.Post("reset-photo"), `>Reset</button>`,
		`<button type="button" id="retake-btn" class="action-btn secondary"`, v.Post("retake"), `>Retake</button>`,
		`<button type="button" id="use-photo-btn" class="action-btn primary"`, v.Post("use-photo"), `>Use Photo</button>`,
		`</div></div>`,
	)
}

func photoChosen(v hxnav.Visit, src string) templ.Component {
	return html(
		`<div id="photo-chosen" class="photo-result chosen active">`,
		`<img class="captured-photo" alt="Selected photo" src="`, text(src), `"/>`,
		`<div class="photo-actions"><button type="button" id="reset-photo-btn" class="action-btn reset"`, v.Post("reset-photo"), `>Choose another photo</button></div>`,
		`</div>`,
	)
}

func locationHint() templ.Component {
	return html(`<p id="location-text">Or click on the map to select a location</p>`)
}

func locationDisplay(v hxnav.Visit, at mapview.LatLng) templ.Component {
	return html(
		`<div id="location-display" class="location-display"><span id="location-coords">`, text(at.Format(6)), `</span>`,
		`<button type="button" id="clear-location-btn" class="clear-location-btn"`, v.Delete("clear-location"), `>Clear</button></div>`,
	)
}
