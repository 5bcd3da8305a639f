package authapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"chirp/cmd/identity"
	"chirp/cmd/internal/auth/token"

	v1 "chirp/contracts/chat/v1"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()

	tokens, err := token.NewManager(token.Config{
		Secret: "0123456789abcdef0123456789abcdef",
		TTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}

	cfg := LoadConfigFromEnv()
	h, err := NewHandler(testLogger(), identity.NewMemoryStore(), tokens, cfg)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return ts, &http.Client{Jar: jar}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeUser(t *testing.T, resp *http.Response) v1.User {
	t.Helper()
	var u v1.User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	return u
}

func signup(t *testing.T, client *http.Client, baseURL, fullName, email, password string) v1.User {
	t.Helper()
	resp := doJSON(t, client, http.MethodPost, baseURL+"/api/auth/signup", map[string]string{
		"fullName": fullName,
		"email":    email,
		"password": password,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status=%d", resp.StatusCode)
	}
	return decodeUser(t, resp)
}

func TestSignup_CreatesAccountAndSession(t *testing.T) {
	ts, client := newTestServer(t)

	u := signup(t, client, ts.URL, "Ada Lovelace", "Ada@Example.com", "secret1")
	if u.ID == "" {
		t.Fatalf("missing user id in response")
	}
	if u.Email != "ada@example.com" {
		t.Fatalf("email=%q, want normalized lowercase", u.Email)
	}

	// The session cookie must be usable immediately.
	resp := doJSON(t, client, http.MethodGet, ts.URL+"/api/auth/check", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("check status=%d", resp.StatusCode)
	}
	if got := decodeUser(t, resp); got.ID != u.ID {
		t.Fatalf("check user=%q want=%q", got.ID, u.ID)
	}
}

func TestSignup_Rejections(t *testing.T) {
	ts, client := newTestServer(t)
	signup(t, client, ts.URL, "Ada Lovelace", "ada@example.com", "secret1")

	cases := []struct {
		name string
		body map[string]string
	}{
		{name: "duplicate email", body: map[string]string{"fullName": "Other", "email": "ADA@example.com", "password": "secret1"}},
		{name: "short password", body: map[string]string{"fullName": "Bob", "email": "bob@example.com", "password": "abc"}},
		{name: "missing full name", body: map[string]string{"email": "bob@example.com", "password": "secret1"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, client, http.MethodPost, ts.URL+"/api/auth/signup", tc.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status=%d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ts, client := newTestServer(t)
	signup(t, client, ts.URL, "Ada Lovelace", "ada@example.com", "secret1")

	for _, body := range []map[string]string{
		{"email": "ada@example.com", "password": "wrong-password"},
		{"email": "nobody@example.com", "password": "secret1"},
	} {
		resp := doJSON(t, client, http.MethodPost, ts.URL+"/api/auth/login", body)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("login %v status=%d, want 401", body["email"], resp.StatusCode)
		}
	}
}

func TestLogin_Succeeds(t *testing.T) {
	ts, client := newTestServer(t)
	u := signup(t, client, ts.URL, "Ada Lovelace", "ada@example.com", "secret1")

	// Fresh client: no cookies carried over from signup.
	jar, _ := cookiejar.New(nil)
	fresh := &http.Client{Jar: jar}

	resp := doJSON(t, fresh, http.MethodPost, ts.URL+"/api/auth/login", map[string]string{
		"email":    "ada@example.com",
		"password": "secret1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status=%d", resp.StatusCode)
	}
	if got := decodeUser(t, resp); got.ID != u.ID {
		t.Fatalf("login user=%q want=%q", got.ID, u.ID)
	}

	check := doJSON(t, fresh, http.MethodGet, ts.URL+"/api/auth/check", nil)
	if check.StatusCode != http.StatusOK {
		t.Fatalf("check after login status=%d", check.StatusCode)
	}
}

func TestLogout_EndsSession(t *testing.T) {
	ts, client := newTestServer(t)
	signup(t, client, ts.URL, "Ada Lovelace", "ada@example.com", "secret1")

	resp := doJSON(t, client, http.MethodPost, ts.URL+"/api/auth/logout", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status=%d", resp.StatusCode)
	}

	check := doJSON(t, client, http.MethodGet, ts.URL+"/api/auth/check", nil)
	if check.StatusCode != http.StatusUnauthorized {
		t.Fatalf("check after logout status=%d, want 401", check.StatusCode)
	}
}

func TestCheck_WithoutCookie(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/auth/check")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", resp.StatusCode)
	}
}

func TestUpdateProfile_SetsProfilePic(t *testing.T) {
	ts, client := newTestServer(t)
	signup(t, client, ts.URL, "Ada Lovelace", "ada@example.com", "secret1")

	const pic = "data:image/png;base64,iVBORw0KGgo="
	resp := doJSON(t, client, http.MethodPut, ts.URL+"/api/auth/update-profile", map[string]string{
		"profilePic": pic,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update-profile status=%d", resp.StatusCode)
	}
	if got := decodeUser(t, resp); got.ProfilePic != pic {
		t.Fatalf("profilePic=%q want=%q", got.ProfilePic, pic)
	}
}

func TestLogin_ThrottledAfterRepeatedFailures(t *testing.T) {
	t.Setenv("CHIRP_AUTH_LOGIN_IP_MAX", "3")

	ts, client := newTestServer(t)
	signup(t, client, ts.URL, "Ada Lovelace", "ada@example.com", "secret1")

	body := map[string]string{"email": "ada@example.com", "password": "wrong-password"}
	for i := 0; i < 3; i++ {
		resp := doJSON(t, client, http.MethodPost, ts.URL+"/api/auth/login", body)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("attempt %d status=%d, want 401", i, resp.StatusCode)
		}
	}

	resp := doJSON(t, client, http.MethodPost, ts.URL+"/api/auth/login", body)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status=%d, want 429", resp.StatusCode)
	}

	// The block applies to good credentials too.
	good := doJSON(t, client, http.MethodPost, ts.URL+"/api/auth/login", map[string]string{
		"email":    "ada@example.com",
		"password": "secret1",
	})
	if good.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status=%d, want 429 while throttled", good.StatusCode)
	}
}
