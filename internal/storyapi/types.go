package storyapi

import "time"

// Story is a story as returned by the API.
type Story struct {
	ID          string    `json:"id" msgpack:"id"`
	Name        string    `json:"name" msgpack:"name"`
	Description string    `json:"description" msgpack:"description"`
	PhotoURL    string    `json:"photoUrl" msgpack:"photo_url"`
	CreatedAt   time.Time `json:"createdAt" msgpack:"created_at"`
	Lat         *float64  `json:"lat" msgpack:"lat,omitempty"`
	Lon         *float64  `json:"lon" msgpack:"lon,omitempty"`
}

// HasLocation reports whether the story carries coordinates.
func (s Story) HasLocation() bool {
	return s.Lat != nil && s.Lon != nil
}

// LoginResult is the session issued by POST /login.
type LoginResult struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Token  string `json:"token"`
}

// ListOptions filters GET /stories.
type ListOptions struct {
	Page     int
	Size     int
	Location bool // only stories with coordinates
}

// NewStory is the payload of POST /stories and POST /stories/guest.
type NewStory struct {
	Description string
	Photo       []byte
	PhotoName   string
	PhotoType   string
	Lat         *float64
	Lon         *float64
}

// PushSubscription is a browser push subscription.
type PushSubscription struct {
	Endpoint string   `json:"endpoint" validate:"required,url"`
	Keys     PushKeys `json:"keys"`
}

// PushKeys are the subscription keys, base64 encoded.
type PushKeys struct {
	P256dh string `json:"p256dh" validate:"required"`
	Auth   string `json:"auth" validate:"required"`
}

type envelope struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type loginResponse struct {
	LoginResult LoginResult `json:"loginResult"`
}

type listResponse struct {
	ListStory []Story `json:"listStory"`
}

type detailResponse struct {
	Story Story `json:"story"`
}
