// Package authapi exposes Chirp's cookie-based auth endpoints: signup, login,
// logout, session check and profile updates. A successful signup or login sets
// an HttpOnly session cookie; RequireUser gates the endpoints that need one.
package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"chirp/cmd/identity"
	"chirp/cmd/internal/auth/token"
)

// Handler wires the auth HTTP endpoints to the account store.
type Handler struct {
	log    *slog.Logger
	cfg    Config
	store  identity.Store
	tokens *token.Manager

	throttle *loginThrottle
	now      func() time.Time

	dummyHash string
}

// NewHandler constructs the auth handler.
func NewHandler(log *slog.Logger, store identity.Store, tokens *token.Manager, cfg Config) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if store == nil {
		return nil, errors.New("auth: nil account store")
	}
	if tokens == nil {
		return nil, errors.New("auth: nil token manager")
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		store:    store,
		tokens:   tokens,
		throttle: newLoginThrottle(cfg.LoginIPMax, cfg.LoginIPWindow),
		now:      func() time.Time { return time.Now().UTC() },
	}

	// Dummy hash so login against an unknown email costs a verify too.
	if hash, err := identity.HashPassword("dummy-password-for-timing-only"); err == nil {
		h.dummyHash = hash
	}
	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/auth/signup", h.handleSignup)
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/auth/logout", h.handleLogout)
	mux.Handle("/api/auth/check", h.RequireUser(http.HandlerFunc(h.handleCheck)))
	mux.Handle("/api/auth/update-profile", h.RequireUser(http.HandlerFunc(h.handleUpdateProfile)))
}

// ---- handlers ----

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req signupRequest
	if err := DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	fullName := strings.TrimSpace(req.FullName)
	email := strings.TrimSpace(req.Email)
	if fullName == "" || email == "" || req.Password == "" {
		WriteError(w, http.StatusBadRequest, "All fields are required")
		return
	}
	if err := identity.CheckPasswordPolicy(req.Password); err != nil {
		WriteError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	ctx := r.Context()
	now := h.now()

	user, err := h.store.CreateUser(ctx, identity.CreateUserInput{
		FullName: fullName,
		Email:    email,
		Password: req.Password,
		Now:      now,
	})
	switch {
	case err == nil:
	case identity.IsConflict(err):
		WriteError(w, http.StatusBadRequest, "Email already exists")
		return
	case identity.IsInvalidInput(err):
		WriteError(w, http.StatusBadRequest, "Invalid signup data")
		return
	default:
		h.log.Error("auth.signup.fail", "err", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := h.issueSession(w, user.ID, now); err != nil {
		h.log.Error("auth.signup.token.fail", "err", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.log.Info("auth.signup.ok", "user_id", user.ID)
	WriteJSON(w, http.StatusCreated, user.Public())
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		WriteError(w, http.StatusBadRequest, "All fields are required")
		return
	}

	ctx := r.Context()
	now := h.now()
	ip := clientIP(r, h.cfg.TrustProxy)

	if h.throttle.blocked(ip, now) {
		h.log.Info("auth.login.throttled", "ip", ip)
		WriteError(w, http.StatusTooManyRequests, "Too many attempts, try again later")
		return
	}

	user, err := h.store.GetUserByEmail(ctx, email)
	if err != nil {
		if identity.IsNotFound(err) {
			// Timing resistance: verify against a dummy hash anyway.
			if h.dummyHash != "" {
				_, _ = identity.VerifyPassword(req.Password, h.dummyHash)
			}
			h.throttle.record(ip, now)
			WriteError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.log.Error("auth.login.lookup.fail", "err", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	ok, err := identity.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		h.log.Error("auth.login.verify.fail", "err", err, "user_id", user.ID)
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !ok {
		h.throttle.record(ip, now)
		WriteError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if err := h.issueSession(w, user.ID, now); err != nil {
		h.log.Error("auth.login.token.fail", "err", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.log.Info("auth.login.ok", "user_id", user.ID)
	WriteJSON(w, http.StatusOK, user.Public())
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	h.clearSessionCookie(w)
	WriteJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user, _ := UserFrom(r.Context())
	WriteJSON(w, http.StatusOK, user.Public())
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req updateProfileRequest
	if err := DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.ProfilePic) == "" {
		WriteError(w, http.StatusBadRequest, "Profile pic is required")
		return
	}

	user, _ := UserFrom(r.Context())

	updated, err := h.store.UpdateProfilePic(r.Context(), user.ID, req.ProfilePic, h.now())
	if err != nil {
		h.log.Error("auth.update_profile.fail", "err", err, "user_id", user.ID)
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	WriteJSON(w, http.StatusOK, updated.Public())
}

// issueSession signs a token for userID and sets the session cookie.
func (h *Handler) issueSession(w http.ResponseWriter, userID string, now time.Time) error {
	signed, exp, err := h.tokens.Issue(userID, now)
	if err != nil {
		return err
	}
	h.setSessionCookie(w, signed, exp)
	return nil
}
