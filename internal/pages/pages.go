// Package pages implements the screens of the stories app on top of
// hxnav.
//
// Every browser session gets its own set of pages (Routes is called from
// the session factory), so a page may keep per-visit state such as the
// camera stream or the map widget in its fields. The App serialises
// navigations and actions of a session; the page mutex only guards
// against deferred loads running in the background.
package pages

import (
	"context"
	"fmt"

	"github.com/a-h/templ"
	"github.com/rs/zerolog"

	"github.com/pthm/hxnav"
	"github.com/pthm/hxnav/internal/authstore"
	"github.com/pthm/hxnav/internal/device"
	"github.com/pthm/hxnav/internal/mapview"
	"github.com/pthm/hxnav/internal/storyapi"
	"github.com/pthm/hxnav/internal/storycache"
)

// Kind is one of the app's screens.
type Kind int

const (
	KindHome Kind = iota
	KindAbout
	KindLogin
	KindRegister
	KindDetail
	KindAddStory
	KindMap
	KindNotFound
)

var kindNames = [...]string{"home", "about", "login", "register", "detail", "add-story", "map", "not-found"}

var kindRoutes = [...]string{"/", "/about", "/login", "/register", "/detail/:id", "/add", "/map", hxnav.NotFoundKey}

// Kinds returns every screen, NotFound last.
func Kinds() []Kind {
	return []Kind{KindHome, KindAbout, KindLogin, KindRegister, KindDetail, KindAddStory, KindMap, KindNotFound}
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Route returns the route key the screen is registered under.
func (k Kind) Route() string {
	if k < 0 || int(k) >= len(kindRoutes) {
		return hxnav.NotFoundKey
	}
	return kindRoutes[k]
}

// LoginState reports whether a session is logged in.
type LoginState interface {
	IsLoggedIn() bool
}

// Auth is the session's login state.
type Auth interface {
	LoginState
	GetAuth() (*authstore.Auth, error)
	SaveAuth(a authstore.Auth) error
	DestroyAuth() error
}

// API is the part of the story API the pages write through.
type API interface {
	Register(ctx context.Context, name, email, password string) error
	Login(ctx context.Context, email, password string) (storyapi.LoginResult, error)
	AddStory(ctx context.Context, token string, s storyapi.NewStory) error
	AddGuestStory(ctx context.Context, s storyapi.NewStory) error
}

// Stories reads stories, possibly from the offline cache.
type Stories interface {
	Stories(ctx context.Context, token string, opts storyapi.ListOptions) (storycache.List, error)
	Story(ctx context.Context, token, id string) (storycache.Detail, error)
	Invalidate() error
}

// Deps are what the pages of one session need.
type Deps struct {
	API     API
	Stories Stories
	Auth    Auth
	Camera  *device.StagingCamera
	Maps    *mapview.Library

	// Language formats dates, "id-ID" or "en".
	Language string

	// PageSize is the number of stories listed.
	PageSize int

	// MaxPhotoSize bounds uploaded photos, in bytes.
	MaxPhotoSize int64

	Logger *zerolog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Language == "" {
		d.Language = DefaultLanguage
	}
	if d.PageSize == 0 {
		d.PageSize = 20
	}
	if d.MaxPhotoSize == 0 {
		d.MaxPhotoSize = 1 << 20
	}
	if d.Maps == nil {
		d.Maps = mapview.NewLibrary()
	}
	if d.Logger == nil {
		nop := zerolog.Nop()
		d.Logger = &nop
	}
	return d
}

// New creates the page of kind k.
func New(k Kind, deps Deps) hxnav.Page {
	deps = deps.withDefaults()
	switch k {
	case KindHome:
		return NewHome(deps)
	case KindAbout:
		return About{}
	case KindLogin:
		return NewLogin(deps)
	case KindRegister:
		return NewRegister(deps)
	case KindDetail:
		return NewDetail(deps)
	case KindAddStory:
		return NewAddStory(deps)
	case KindMap:
		return NewStoryMap(deps)
	default:
		return NotFound{}
	}
}

// Routes builds the route table of one session.
func Routes(deps Deps) (*hxnav.Table, error) {
	deps = deps.withDefaults()
	routes := make(map[string]hxnav.Page)
	for _, k := range Kinds() {
		if k == KindNotFound {
			continue
		}
		routes[k.Route()] = New(k, deps)
	}
	return hxnav.NewTable(routes, New(KindNotFound, deps))
}

// Nav returns the navigation of a session. Logged-in users get the full
// menu with a logout button posting to logoutURL.
func Nav(auth LoginState, logoutURL string) hxnav.NavFunc {
	return func(ctx context.Context) []hxnav.NavLink {
		if !auth.IsLoggedIn() {
			return []hxnav.NavLink{
				{Href: "#/", Label: "Home"},
				{Href: "#/login", Label: "Login"},
				{Href: "#/register", Label: "Register"},
			}
		}
		return []hxnav.NavLink{
			{Href: "#/", Label: "Home"},
			{Href: "#/map", Label: "Story Map"},
			{Href: "#/add", Label: "Add Story"},
			{Href: "#/about", Label: "About"},
			{ID: "logout-button", Label: "Logout", Attrs: logoutAttrs(logoutURL)},
		}
	}
}

func logoutAttrs(url string) templ.Attributes {
	return templ.Attributes{"hx-post": url, "hx-swap": "none"}
}

// token returns the API token of the session, "" for guests.
func token(auth Auth, log *zerolog.Logger) string {
	a, err := auth.GetAuth()
	if err != nil {
		log.Warn().Err(err).Msg("reading auth record")
		return ""
	}
	if a == nil {
		return ""
	}
	return a.Token
}
