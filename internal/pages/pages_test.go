package pages

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/hxnav"
	"github.com/pthm/hxnav/internal/authstore"
	"github.com/pthm/hxnav/internal/device"
	"github.com/pthm/hxnav/internal/kv"
	"github.com/pthm/hxnav/internal/mapview"
	"github.com/pthm/hxnav/internal/storyapi"
	"github.com/pthm/hxnav/internal/storyapi/storyapitest"
	"github.com/pthm/hxnav/internal/storycache"
)

type fixture struct {
	api    *storyapitest.Server
	host   *hxnav.Host
	camera *device.StagingCamera
	maps   *mapview.Library
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	api := storyapitest.NewServer(t)
	db, err := kv.Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	client := storyapi.New(storyapi.Options{BaseURL: api.URL, BreakerFailures: 100})
	source := storycache.New(client, db, time.Hour)
	store := authstore.New(db)

	f := &fixture{
		api:    api,
		camera: device.NewStagingCamera(t.TempDir()),
		maps:   mapview.NewLibrary(),
	}
	f.host = hxnav.NewHost([]byte("test-key"), "/_", func(ctx context.Context, id string, r *http.Request) (*hxnav.App, error) {
		auth := store.For(id)
		table, err := Routes(Deps{API: client, Stories: source, Auth: auth, Camera: f.camera, Maps: f.maps})
		if err != nil {
			return nil, err
		}
		return hxnav.New(table, hxnav.Options{Nav: Nav(auth, "/logout")}), nil
	})
	t.Cleanup(func() { f.host.Close(context.Background()) })
	return f
}

func (f *fixture) login(t *testing.T, s *hxnav.TestSession) {
	t.Helper()
	f.api.AddUser("Rina", "rina@example.com", "rahasia123")
	_, err := s.Navigate("#/login")
	require.NoError(t, err)
	res, err := s.Post("submit", map[string]string{"email": "rina@example.com", "password": "rahasia123"})
	require.NoError(t, err)
	require.True(t, res.IsOK(), res.HTML)
}

func slot(t *testing.T, s *hxnav.TestSession, id string) *hxnav.TestResult {
	t.Helper()
	res, err := s.Slot(s.App().Visit().Gen, id)
	require.NoError(t, err)
	require.True(t, res.IsOK(), res.HTML)
	return res
}

func ptr(v float64) *float64 { return &v }

type staticAuth struct{ loggedIn bool }

func (a staticAuth) GetAuth() (*authstore.Auth, error) {
	if !a.loggedIn {
		return nil, nil
	}
	return &authstore.Auth{UserID: "user-1", Name: "Rina", Token: "token-user-1"}, nil
}
func (staticAuth) SaveAuth(authstore.Auth) error { return nil }
func (staticAuth) DestroyAuth() error            { return nil }
func (a staticAuth) IsLoggedIn() bool            { return a.loggedIn }

func TestKinds(t *testing.T) {
	routes := map[string]bool{}
	for _, k := range Kinds() {
		assert.NotContains(t, k.String(), "kind(")
		routes[k.Route()] = true
	}
	assert.Len(t, routes, len(Kinds()))
	assert.Equal(t, "/detail/:id", KindDetail.Route())
	assert.Equal(t, hxnav.NotFoundKey, Kind(99).Route())
	assert.Equal(t, "kind(99)", Kind(99).String())

	assert.IsType(t, About{}, New(KindAbout, Deps{}))
	assert.IsType(t, NotFound{}, New(KindNotFound, Deps{}))

	_, err := Routes(Deps{Auth: staticAuth{}})
	require.NoError(t, err)
}

func TestNav(t *testing.T) {
	labels := func(links []hxnav.NavLink) []string {
		var out []string
		for _, l := range links {
			out = append(out, l.Label)
		}
		return out
	}

	guest := Nav(staticAuth{}, "/logout")(context.Background())
	assert.Equal(t, []string{"Home", "Login", "Register"}, labels(guest))

	user := Nav(staticAuth{loggedIn: true}, "/logout")(context.Background())
	assert.Equal(t, []string{"Home", "Story Map", "Add Story", "About", "Logout"}, labels(user))
	logout := user[len(user)-1]
	assert.Equal(t, "logout-button", logout.ID)
	assert.Equal(t, "/logout", logout.Attrs["hx-post"])
}

func TestStaticPages(t *testing.T) {
	res, err := hxnav.TestRender(About{}, hxnav.TestVisit("/about", nil))
	require.NoError(t, err)
	assert.True(t, res.HTMLContains("About Dicoding Stories"))

	v := hxnav.TestVisit("/nowhere", nil)
	res, err = hxnav.TestRender(NotFound{}, v)
	require.NoError(t, err)
	assert.True(t, res.HTMLContainsAll("Page not found", "#/nowhere"))
}

func TestHomeGuest(t *testing.T) {
	f := newFixture(t)
	s := hxnav.NewTestSession(f.host)

	res, err := s.Navigate("#/")
	require.NoError(t, err)
	assert.True(t, res.HTMLContainsAll("Recent Stories", "No stories available yet", `data-show-modal="welcome-modal"`))
	assert.Equal(t, 0, f.api.Calls("GET /stories"))
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.api.AddUser("Rina", "rina@example.com", "rahasia123")
	s := hxnav.NewTestSession(f.host)

	_, err := s.Navigate("#/login")
	require.NoError(t, err)

	res, err := s.Post("submit", map[string]string{"email": "not-an-email", "password": "rahasia123"})
	require.NoError(t, err)
	assert.True(t, res.HTMLContains("Please enter a valid email address"))

	res, err = s.Post("submit", map[string]string{"email": "rina@example.com", "password": "salah12345"})
	require.NoError(t, err)
	assert.True(t, res.HTMLContains("Invalid password"))
	assert.Empty(t, res.NavigateTo)

	res, err = s.Post("submit", map[string]string{"email": "rina@example.com", "password": "rahasia123"})
	require.NoError(t, err)
	assert.True(t, res.HTMLContains("Login successful!"))
	assert.Equal(t, "#/", res.NavigateTo)
	assert.True(t, res.Reloaded)

	// A logged-in user is sent away from the login page.
	res, err = s.Navigate("#/login")
	require.NoError(t, err)
	assert.Equal(t, "#/", res.NavigateTo)
}

func TestHomeListsStories(t *testing.T) {
	f := newFixture(t)
	f.api.AddStory(storyapi.Story{Name: "Budi", Description: "Senja di Pantai Kuta", Lat: ptr(-8.72), Lon: ptr(115.17)})
	s := hxnav.NewTestSession(f.host)
	f.login(t, s)

	_, err := s.Navigate("#/")
	require.NoError(t, err)
	res := slot(t, s, "story-list")
	assert.True(t, res.HTMLContainsAll("stories-grid", "Budi", "Senja di Pantai Kuta", "Has location"))
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	s := hxnav.NewTestSession(f.host)
	_, err := s.Navigate("#/register")
	require.NoError(t, err)

	tests := []struct {
		password string
		want     string
	}{
		{"abc", "Password too short (3/8 characters)"},
		{"abcdefgh", "Password should contain letters and numbers"},
		{"abcdefg1", "Strong password"},
	}
	for _, tt := range tests {
		res, err := s.Post("password-hint", map[string]string{"password": tt.password})
		require.NoError(t, err)
		assert.True(t, res.HTMLContains(tt.want), "password %q: %s", tt.password, res.HTML)
	}

	res, err := s.Post("submit", map[string]string{"name": "Rina", "email": "rina@example.com", "password": "abcdefgh"})
	require.NoError(t, err)
	assert.True(t, res.HTMLContains("Password should contain at least one letter and one number"))

	res, err = s.Post("submit", map[string]string{"name": "Rina", "email": "rina@example.com", "password": "rahasia123"})
	require.NoError(t, err)
	assert.Equal(t, "#/login", res.NavigateTo)
	assert.True(t, res.HasFlash(hxnav.FlashSuccess, "Account created. Please log in."))
}

func TestDetail(t *testing.T) {
	f := newFixture(t)
	st := f.api.AddStory(storyapi.Story{Name: "Budi", Description: "Senja di Pantai Kuta", Lat: ptr(-8.72), Lon: ptr(115.17)})

	guest := hxnav.NewTestSession(f.host)
	res, err := guest.Navigate("#/detail/" + st.ID)
	require.NoError(t, err)
	assert.True(t, res.HTMLContains("Login to see story details"))

	s := hxnav.NewTestSession(f.host)
	f.login(t, s)
	_, err = s.Navigate("#/detail/" + st.ID)
	require.NoError(t, err)
	res = slot(t, s, "story-detail")
	assert.True(t, res.HTMLContainsAll("Budi", "Senja di Pantai Kuta", `id="detail-map"`))
	assert.EqualValues(t, 1, f.maps.Live())

	_, err = s.Navigate("#/about")
	require.NoError(t, err)
	assert.EqualValues(t, 0, f.maps.Live())
}

func TestDetailMissingStory(t *testing.T) {
	f := newFixture(t)
	s := hxnav.NewTestSession(f.host)
	f.login(t, s)

	_, err := s.Navigate("#/detail/nope")
	require.NoError(t, err)
	res := slot(t, s, "story-detail")
	assert.True(t, res.HTMLContains("Failed to load story: Story not found"))
	assert.EqualValues(t, 0, f.maps.Live())
}

func TestStoryMap(t *testing.T) {
	f := newFixture(t)
	f.api.AddStory(storyapi.Story{Name: "Budi", Description: "Senja di Pantai Kuta", Lat: ptr(-8.72), Lon: ptr(115.17)})
	f.api.AddStory(storyapi.Story{Name: "Sari", Description: "Tanpa lokasi"})
	s := hxnav.NewTestSession(f.host)
	f.login(t, s)

	res, err := s.Navigate("#/map")
	require.NoError(t, err)
	assert.True(t, res.HTMLContains(`id="stories-map-widget"`))

	res = slot(t, s, "map-story-list")
	assert.True(t, res.HTMLContainsAll("Budi", "-8.7200, 115.1700", `data-map-state="stories-map-widget"`))
	assert.False(t, res.HTMLContains("Tanpa lokasi"))
	assert.EqualValues(t, 1, f.maps.Live())

	_, err = s.Navigate("#/")
	require.NoError(t, err)
	assert.EqualValues(t, 0, f.maps.Live())
}

func TestStoryMapGuest(t *testing.T) {
	f := newFixture(t)
	s := hxnav.NewTestSession(f.host)

	res, err := s.Navigate("#/map")
	require.NoError(t, err)
	assert.True(t, res.HTMLContains("Login to see stories on the map"))
}

var jpeg = hxnav.TestFile{Field: "photo", Name: "pantai.jpg", ContentType: "image/jpeg", Data: []byte("\xff\xd8\xff\xe0fake-jpeg")}

func TestAddStory(t *testing.T) {
	f := newFixture(t)
	s := hxnav.NewTestSession(f.host)
	f.login(t, s)

	res, err := s.Navigate("#/add")
	require.NoError(t, err)
	assert.True(t, res.HTMLContainsAll("add-story-form", `id="location-map-widget"`))
	assert.False(t, res.HTMLContains("posted as a guest"))

	res, err = s.Upload("upload", nil, jpeg)
	require.NoError(t, err)
	assert.True(t, res.HTMLContainsAll("Photo uploaded successfully!", "data:image/jpeg;base64,"))

	res, err = s.Post("pick-location", map[string]string{"lat": "-6.2", "lon": "106.8166"})
	require.NoError(t, err)
	assert.True(t, res.HTMLContainsAll("-6.200000, 106.816600", `data-map-state="location-map-widget"`))

	res, err = s.Post("submit", map[string]string{"description": "Senja yang indah di pantai"})
	require.NoError(t, err)
	assert.Equal(t, "#/", res.NavigateTo)
	assert.True(t, res.HasFlash(hxnav.FlashSuccess, "Story posted successfully!"))

	stories := f.api.Stories()
	require.Len(t, stories, 1)
	assert.Equal(t, "Rina", stories[0].Name)
	require.True(t, stories[0].HasLocation())
	assert.InDelta(t, -6.2, *stories[0].Lat, 1e-9)
}

func TestAddStoryValidation(t *testing.T) {
	f := newFixture(t)
	s := hxnav.NewTestSession(f.host)
	_, err := s.Navigate("#/add")
	require.NoError(t, err)

	res, err := s.Post("submit", map[string]string{"description": "pendek"})
	require.NoError(t, err)
	assert.True(t, res.HTMLContains("Story description should be at least 10 characters long"))

	res, err = s.Post("submit", map[string]string{"description": "Senja yang indah di pantai"})
	require.NoError(t, err)
	assert.True(t, res.HTMLContains("Please capture or upload a photo"))

	res, err = s.Upload("upload", nil, hxnav.TestFile{Field: "photo", Name: "notes.txt", ContentType: "text/plain", Data: []byte("hi")})
	require.NoError(t, err)
	assert.True(t, res.HTMLContains("Please select a valid image file."))

	big := jpeg
	big.Data = make([]byte, 1<<20+1)
	res, err = s.Upload("upload", nil, big)
	require.NoError(t, err)
	assert.True(t, res.HTMLContains("Image file size must be less than 1MB."))

	res, err = s.Post("pick-location", map[string]string{"lat": "123", "lon": "0"})
	require.NoError(t, err)
	assert.True(t, res.HTMLContains("error-message"))

	res, err = s.Post("pick-location", map[string]string{"geo_error": "1"})
	require.NoError(t, err)
	assert.True(t, res.HTMLContainsAll("Location permission denied", "select a location manually", "Location access failed"))

	assert.Empty(t, f.api.Stories())
}

func TestAddStoryLocationSource(t *testing.T) {
	f := newFixture(t)
	s := hxnav.NewTestSession(f.host)
	_, err := s.Navigate("#/add")
	require.NoError(t, err)

	_, err = s.Post("pick-location", map[string]string{"lat": "-6.2", "lon": "106.8166"})
	require.NoError(t, err)
	assert.False(t, s.App().Overlay().Has(PermissionIndicator), "map clicks show no indicator")

	s.WithHeader("HX-Trigger", "geolocate")
	_, err = s.Post("pick-location", map[string]string{"lat": "-6.9", "lon": "107.6"})
	require.NoError(t, err)
	assert.True(t, s.App().Overlay().Has(PermissionIndicator))
}

func TestAddStoryGuest(t *testing.T) {
	f := newFixture(t)
	s := hxnav.NewTestSession(f.host)

	res, err := s.Navigate("#/add")
	require.NoError(t, err)
	assert.True(t, res.HTMLContains("posted as a guest"))

	_, err = s.Upload("upload", nil, jpeg)
	require.NoError(t, err)
	res, err = s.Post("submit", map[string]string{"description": "Cerita dari tamu di Bandung"})
	require.NoError(t, err)
	assert.Equal(t, "#/", res.NavigateTo)

	stories := f.api.Stories()
	require.Len(t, stories, 1)
	assert.Equal(t, "Guest", stories[0].Name)
	assert.False(t, stories[0].HasLocation())
	assert.Equal(t, 1, f.api.Calls("POST /stories/guest"))
}

func TestAddStoryClearLocation(t *testing.T) {
	f := newFixture(t)
	s := hxnav.NewTestSession(f.host)
	_, err := s.Navigate("#/add")
	require.NoError(t, err)

	_, err = s.Post("pick-location", map[string]string{"lat": "-6.2", "lon": "106.8166"})
	require.NoError(t, err)
	res, err := s.Act(http.MethodDelete, "clear-location", nil)
	require.NoError(t, err)
	require.True(t, res.IsOK(), "status %d: %s", res.StatusCode, res.HTML)
	assert.True(t, res.HTMLContainsAll("Or click on the map to select a location", `data-map-state="location-map-widget"`))

	_, err = s.Upload("upload", nil, jpeg)
	require.NoError(t, err)
	_, err = s.Post("submit", map[string]string{"description": "Tanpa lokasi kali ini"})
	require.NoError(t, err)
	stories := f.api.Stories()
	require.Len(t, stories, 1)
	assert.False(t, stories[0].HasLocation())
}

var probe = map[string]string{
	"status":         "ok",
	"facing":         "environment,user",
	"max_width":      "1920",
	"max_height":     "1080",
	"max_frame_rate": "30",
}

func TestAddStoryCamera(t *testing.T) {
	f := newFixture(t)
	s := hxnav.NewTestSession(f.host)
	f.login(t, s)
	_, err := s.Navigate("#/add")
	require.NoError(t, err)

	res, err := s.Post("camera", nil)
	require.NoError(t, err)
	assert.True(t, res.HTMLContainsAll("data-camera-probe", "Browser will ask for camera permission"))
	assert.Equal(t, 0, f.camera.OpenStreams())

	res, err = s.Post("camera", probe)
	require.NoError(t, err)
	assert.True(t, res.HTMLContainsAll("Camera access granted!", "data-constraints", "Camera Active (back)"))
	assert.Equal(t, 1, f.camera.OpenStreams())

	res, err = s.Post("switch-camera", nil)
	require.NoError(t, err)
	assert.True(t, res.HTMLContainsAll("Switched to Front camera", "Camera Active (front)"))
	assert.Equal(t, 1, f.camera.OpenStreams())

	frame := hxnav.TestFile{Field: "frame", Name: "frame.jpg", ContentType: "image/jpeg", Data: []byte("frame-bytes")}
	res, err = s.Upload("capture", nil, frame)
	require.NoError(t, err)
	assert.True(t, res.HTMLContainsAll("Photo captured successfully!", "use-photo-btn"))

	res, err = s.Post("use-photo", nil)
	require.NoError(t, err)
	assert.True(t, res.HTMLContains("Photo selected successfully!"))

	// Leaving the page releases the camera, the map and the indicator.
	_, err = s.Navigate("#/")
	require.NoError(t, err)
	assert.Equal(t, 0, f.camera.OpenStreams())
	assert.EqualValues(t, 0, f.maps.Live())
	assert.False(t, s.App().Overlay().Has(PermissionIndicator))
}

func TestAddStoryCapturedPhotoIsPosted(t *testing.T) {
	f := newFixture(t)
	s := hxnav.NewTestSession(f.host)
	f.login(t, s)
	_, err := s.Navigate("#/add")
	require.NoError(t, err)

	_, err = s.Post("camera", probe)
	require.NoError(t, err)
	_, err = s.Upload("capture", nil, hxnav.TestFile{Field: "frame", Name: "frame.jpg", ContentType: "image/jpeg", Data: []byte("frame-bytes")})
	require.NoError(t, err)

	res, err := s.Post("submit", map[string]string{"description": "Foto langsung dari kamera"})
	require.NoError(t, err)
	assert.Equal(t, "#/", res.NavigateTo)
	assert.Len(t, f.api.Stories(), 1)
	assert.Equal(t, 0, f.camera.OpenStreams())
}

func TestAddStoryWebcamWithoutFacing(t *testing.T) {
	f := newFixture(t)
	s := hxnav.NewTestSession(f.host)
	_, err := s.Navigate("#/add")
	require.NoError(t, err)

	res, err := s.Post("camera", map[string]string{"status": "ok", "max_width": "1280", "max_height": "720"})
	require.NoError(t, err)
	assert.True(t, res.HTMLContainsAll("Camera access granted!", "data-constraints"))
	assert.False(t, res.HTMLContains("facingMode"))
	assert.Equal(t, 1, f.camera.OpenStreams())
}

func TestAddStoryCameraErrors(t *testing.T) {
	f := newFixture(t)
	s := hxnav.NewTestSession(f.host)
	_, err := s.Navigate("#/add")
	require.NoError(t, err)

	res, err := s.Post("camera", map[string]string{"status": "NotAllowedError"})
	require.NoError(t, err)
	assert.True(t, res.HTMLContainsAll("Camera permission denied", "permission-screen"))
	assert.Equal(t, 0, f.camera.OpenStreams())

	res, err = s.Post("capture", nil)
	require.NoError(t, err)
	assert.True(t, res.HTMLContains("Camera not ready"))

	// Only a back camera: switching fails and the back camera stays open.
	_, err = s.Post("camera", map[string]string{"status": "ok", "facing": "environment"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.camera.OpenStreams())

	res, err = s.Post("switch-camera", nil)
	require.NoError(t, err)
	assert.True(t, res.HTMLContains("Unable to switch camera"))
	assert.Equal(t, 1, f.camera.OpenStreams())

	res, err = s.Post("reset-photo", nil)
	require.NoError(t, err)
	assert.True(t, res.HTMLContains("Photo cleared"))
	assert.Equal(t, 0, f.camera.OpenStreams())
}

func TestReadPhotoSizeLabel(t *testing.T) {
	assert.Equal(t, "1MB", sizeLabel(1<<20))
	assert.Equal(t, "512KB", sizeLabel(512<<10))
	assert.True(t, strings.HasSuffix(sizeLabel(3<<20), "MB"))
}
