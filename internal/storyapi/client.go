// Package storyapi is a client for the Dicoding story REST API.
//
// Every call goes through a circuit breaker. Transport failures and 5xx
// answers count against it; API-level rejections such as a wrong
// password do not. While the breaker is open calls fail fast with
// ErrUnavailable.
package storyapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/pthm/hxnav/internal/logging"
)

// DefaultBaseURL is the production API.
const DefaultBaseURL = "https://story-api.dicoding.dev/v1"

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 8 << 20

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client

	// BreakerFailures consecutive failures open the circuit.
	BreakerFailures uint32
	// BreakerTimeout is how long the circuit stays open before a probe.
	BreakerTimeout time.Duration

	Logger *zerolog.Logger

	// OnStateChange observes breaker transitions, e.g. for metrics.
	OnStateChange func(name, from, to string)
}

// Client calls the story API.
type Client struct {
	base string
	http *http.Client
	cb   *gobreaker.CircuitBreaker[struct{}]
	log  *zerolog.Logger
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.Component("storyapi")
	}

	c := &Client{
		base: strings.TrimRight(opts.BaseURL, "/"),
		http: opts.HTTPClient,
		log:  opts.Logger,
	}

	failures := opts.BreakerFailures
	c.cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "story-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			return !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			if opts.OnStateChange != nil {
				opts.OnStateChange(name, from.String(), to.String())
			}
		},
	})
	return c
}

// State returns the breaker state: closed, half-open or open.
func (c *Client) State() string {
	return c.cb.State().String()
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	body := map[string]string{"name": name, "email": email, "password": password}
	return c.doJSON(ctx, http.MethodPost, "/register", "", body, nil)
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var out loginResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.doJSON(ctx, http.MethodPost, "/login", "", body, &out); err != nil {
		return LoginResult{}, err
	}
	return out.LoginResult, nil
}

// Stories lists stories, newest first.
func (c *Client) Stories(ctx context.Context, token string, opts ListOptions) ([]Story, error) {
	q := url.Values{}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Size > 0 {
		q.Set("size", strconv.Itoa(opts.Size))
	}
	if opts.Location {
		q.Set("location", "1")
	} else {
		q.Set("location", "0")
	}

	var out listResponse
	if err := c.do(ctx, http.MethodGet, "/stories?"+q.Encode(), token, nil, "", &out); err != nil {
		return nil, err
	}
	return out.ListStory, nil
}

// Story fetches one story.
func (c *Client) Story(ctx context.Context, token, id string) (Story, error) {
	var out detailResponse
	if err := c.do(ctx, http.MethodGet, "/stories/"+url.PathEscape(id), token, nil, "", &out); err != nil {
		return Story{}, err
	}
	return out.Story, nil
}

// AddStory posts a story as the token's user.
func (c *Client) AddStory(ctx context.Context, token string, s NewStory) error {
	return c.postStory(ctx, "/stories", token, s)
}

// AddGuestStory posts a story without an account.
func (c *Client) AddGuestStory(ctx context.Context, s NewStory) error {
	return c.postStory(ctx, "/stories/guest", "", s)
}

// Subscribe registers a push subscription for the token's user.
func (c *Client) Subscribe(ctx context.Context, token string, sub PushSubscription) error {
	return c.doJSON(ctx, http.MethodPost, "/notifications/subscribe", token, sub, nil)
}

// Unsubscribe removes a push subscription.
func (c *Client) Unsubscribe(ctx context.Context, token, endpoint string) error {
	body := map[string]string{"endpoint": endpoint}
	return c.doJSON(ctx, http.MethodDelete, "/notifications/subscribe", token, body, nil)
}

func (c *Client) postStory(ctx context.Context, path, token string, s NewStory) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("description", s.Description); err != nil {
		return fmt.Errorf("storyapi: encode story: %w", err)
	}

	name := s.PhotoName
	if name == "" {
		name = "photo.jpg"
	}
	ctype := s.PhotoType
	if ctype == "" {
		ctype = "image/jpeg"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo"; filename=%q`, name))
	h.Set("Content-Type", ctype)
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("storyapi: encode story: %w", err)
	}
	if _, err := part.Write(s.Photo); err != nil {
		return fmt.Errorf("storyapi: encode story: %w", err)
	}

	if s.Lat != nil && s.Lon != nil {
		for field, v := range map[string]float64{"lat": *s.Lat, "lon": *s.Lon} {
			if err := mw.WriteField(field, strconv.FormatFloat(v, 'f', -1, 64)); err != nil {
				return fmt.Errorf("storyapi: encode story: %w", err)
			}
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("storyapi: encode story: %w", err)
	}

	return c.do(ctx, http.MethodPost, path, token, buf.Bytes(), mw.FormDataContentType(), nil)
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("storyapi: encode request: %w", err)
	}
	return c.do(ctx, method, path, token, body, "application/json", out)
}

func (c *Client) do(ctx context.Context, method, path, token string, body []byte, contentType string, out any) error {
	_, err := c.cb.Execute(func() (struct{}, error) {
		return struct{}{}, c.roundTrip(ctx, method, path, token, body, contentType, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.log.Debug().Str("path", path).Msg("request rejected by open circuit")
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path, token string, body []byte, contentType string, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("storyapi: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s %s: %w", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrNetwork, path, err)
	}
	c.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("api call")

	var env envelope
	jsonErr := json.Unmarshal(data, &env)

	if resp.StatusCode >= 400 || env.Error {
		msg := env.Message
		status := resp.StatusCode
		if status < 400 {
			status = http.StatusBadRequest
		}
		if jsonErr != nil || msg == "" {
			msg = http.StatusText(status)
		}
		return &APIError{Status: status, Message: msg}
	}
	if jsonErr != nil {
		return &APIError{Status: resp.StatusCode, Message: "malformed response"}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &APIError{Status: resp.StatusCode, Message: "malformed response"}
		}
	}
	return nil
}
