// Package client is the Go client for a Chirp server. It covers the auth and
// message HTTP APIs, the realtime WebSocket and a small chat state store that
// mirrors what a UI needs: the sidebar, the open conversation and presence.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	v1 "chirp/contracts/chat/v1"
)

// API is an HTTP client for Chirp's REST endpoints. The session cookie set
// by Signup and Login lives in the client's jar, so one API value is one
// authenticated identity.
type API struct {
	base string
	http *http.Client
}

// APIError is a non-2xx response, carrying the server's message body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chirp: server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("chirp: %s (%d)", e.Message, e.StatusCode)
}

// NewAPI builds an API client for the server at baseURL, e.g.
// "http://127.0.0.1:8080".
func NewAPI(baseURL string) (*API, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("chirp: bad base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("chirp: base url must be http or https, got %q", u.Scheme)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &API{
		base: u.String(),
		http: &http.Client{Jar: jar, Timeout: 30 * time.Second},
	}, nil
}

// BaseURL returns the configured server base URL.
func (a *API) BaseURL() string { return a.base }

// WSURL returns the realtime endpoint derived from the base URL.
func (a *API) WSURL() string {
	switch {
	case strings.HasPrefix(a.base, "https://"):
		return "wss://" + strings.TrimPrefix(a.base, "https://") + "/ws"
	default:
		return "ws://" + strings.TrimPrefix(a.base, "http://") + "/ws"
	}
}

// Signup registers an account and starts a session.
func (a *API) Signup(ctx context.Context, fullName, email, password string) (v1.User, error) {
	var u v1.User
	err := a.do(ctx, http.MethodPost, "/api/auth/signup", map[string]string{
		"fullName": fullName,
		"email":    email,
		"password": password,
	}, &u)
	return u, err
}

// Login starts a session for an existing account.
func (a *API) Login(ctx context.Context, email, password string) (v1.User, error) {
	var u v1.User
	err := a.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &u)
	return u, err
}

// Logout ends the session and drops the cookie server-side.
func (a *API) Logout(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// Check returns the account behind the current session cookie.
func (a *API) Check(ctx context.Context) (v1.User, error) {
	var u v1.User
	err := a.do(ctx, http.MethodGet, "/api/auth/check", nil, &u)
	return u, err
}

// UpdateProfile replaces the profile picture (a data URL).
func (a *API) UpdateProfile(ctx context.Context, profilePic string) (v1.User, error) {
	var u v1.User
	err := a.do(ctx, http.MethodPut, "/api/auth/update-profile", map[string]string{
		"profilePic": profilePic,
	}, &u)
	return u, err
}

// Users returns every other account, newest first.
func (a *API) Users(ctx context.Context) ([]v1.User, error) {
	var users []v1.User
	err := a.do(ctx, http.MethodGet, "/api/messages/users", nil, &users)
	return users, err
}

// Messages returns the full conversation with peerID, oldest first.
func (a *API) Messages(ctx context.Context, peerID string) ([]v1.Message, error) {
	var msgs []v1.Message
	err := a.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(peerID), nil, &msgs)
	return msgs, err
}

// SendMessage sends text and/or an image to peerID, returning the stored
// message with its server-assigned id and timestamp.
func (a *API) SendMessage(ctx context.Context, peerID, text, image string) (v1.Message, error) {
	var msg v1.Message
	err := a.do(ctx, http.MethodPost, "/api/messages/send/"+url.PathEscape(peerID), map[string]string{
		"text":  text,
		"image": image,
	}, &msg)
	return msg, err
}

func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, a.base+path, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
			apiErr.Message = body.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
