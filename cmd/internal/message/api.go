package message

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"chirp/cmd/identity"
	authapi "chirp/cmd/internal/auth/api"
	v1 "chirp/contracts/chat/v1"
)

// Relayer pushes a persisted message to the receiver's live connection,
// if any. Delivery is fire-and-forget.
type Relayer interface {
	Relay(msg v1.Message)
}

// Handler exposes the message HTTP API: the chat sidebar user list, per-peer
// history and sends. Every route requires an authenticated session.
type Handler struct {
	log      *slog.Logger
	store    Store
	accounts identity.Store
	relay    Relayer

	maxBodyBytes int64
	now          func() time.Time
}

// NewHandler constructs the message handler. relay may be nil, in which case
// sends are persisted but not pushed.
func NewHandler(log *slog.Logger, store Store, accounts identity.Store, relay Relayer, maxBodyBytes int64) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if store == nil {
		return nil, errors.New("message: nil store")
	}
	if accounts == nil {
		return nil, errors.New("message: nil account store")
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = 10 << 20
	}

	return &Handler{
		log:          log,
		store:        store,
		accounts:     accounts,
		relay:        relay,
		maxBodyBytes: maxBodyBytes,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// Register wires message routes onto the mux, gated by the auth middleware.
func (h *Handler) Register(mux *http.ServeMux, auth *authapi.Handler) {
	if h == nil || mux == nil || auth == nil {
		return
	}
	mux.Handle("/api/messages/users", auth.RequireUser(http.HandlerFunc(h.handleUsers)))
	mux.Handle("/api/messages/send/", auth.RequireUser(http.HandlerFunc(h.handleSend)))
	mux.Handle("/api/messages/", auth.RequireUser(http.HandlerFunc(h.handleHistory)))
}

type sendRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// handleUsers returns every account except the caller, newest first.
// It backs the chat sidebar.
func (h *Handler) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	self, _ := authapi.UserFrom(r.Context())

	users, err := h.accounts.ListOthers(r.Context(), self.ID)
	if err != nil {
		h.log.Error("message.users.fail", "err", err)
		authapi.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	out := make([]v1.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	authapi.WriteJSON(w, http.StatusOK, out)
}

// handleHistory returns the full conversation with the peer in the URL,
// both directions, oldest first.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	peerID := strings.TrimPrefix(r.URL.Path, "/api/messages/")
	if peerID == "" || strings.Contains(peerID, "/") {
		authapi.WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	self, _ := authapi.UserFrom(r.Context())

	msgs, err := h.store.ListBetween(r.Context(), self.ID, peerID)
	if err != nil {
		h.log.Error("message.history.fail", "err", err, "peer_id", peerID)
		authapi.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if msgs == nil {
		msgs = []v1.Message{}
	}
	authapi.WriteJSON(w, http.StatusOK, msgs)
}

// handleSend persists a message to the peer in the URL, then hands it to the
// realtime layer. The HTTP response carries the canonical stored form.
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	peerID := strings.TrimPrefix(r.URL.Path, "/api/messages/send/")
	if peerID == "" || strings.Contains(peerID, "/") {
		authapi.WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	var req sendRequest
	if err := authapi.DecodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		authapi.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	self, _ := authapi.UserFrom(r.Context())

	// Receiver must exist; a typo in the URL must not create a ghost thread.
	if _, err := h.accounts.GetUserByID(r.Context(), peerID); err != nil {
		if identity.IsNotFound(err) {
			authapi.WriteError(w, http.StatusNotFound, "User not found")
			return
		}
		h.log.Error("message.send.receiver.fail", "err", err, "peer_id", peerID)
		authapi.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	msg, err := h.store.Save(r.Context(), SaveInput{
		SenderID:   self.ID,
		ReceiverID: peerID,
		Text:       req.Text,
		Image:      req.Image,
		Now:        h.now(),
	})
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			authapi.WriteError(w, http.StatusBadRequest, "Message needs text or image")
			return
		}
		h.log.Error("message.send.save.fail", "err", err)
		authapi.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if h.relay != nil {
		h.relay.Relay(msg)
	}

	authapi.WriteJSON(w, http.StatusCreated, msg)
}
