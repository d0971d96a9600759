package session

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/certdesk/certdesk/backend-go/internal/command"
)

// NewSessionID in the URL asks the server to mint a session id.
const NewSessionID = "new"

// ErrDenied is returned by a DispatcherFactory to refuse a session.
var ErrDenied = errors.New("session denied")

type Authenticator interface {
	QueryToken(r *http.Request) (string, error)
}

// DispatcherFactory builds the editor for a new session. userID is empty
// for anonymous sessions.
type DispatcherFactory func(r *http.Request, sessionID, userID string) (*command.Dispatcher, error)

type Handler struct {
	hub            *Hub
	auth           Authenticator
	newDispatcher  DispatcherFactory
	originPatterns []string
}

func NewHandler(hub *Hub, auth Authenticator, factory DispatcherFactory, originPatterns []string) *Handler {
	return &Handler{hub: hub, auth: auth, newDispatcher: factory, originPatterns: originPatterns}
}

// ServeWS handles GET /ws/editor/{sessionId}[?token=].
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]
	if sessionID == "" || sessionID == NewSessionID {
		sessionID = uuid.NewString()
	} else if _, err := uuid.Parse(sessionID); err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	var userID string
	if h.auth != nil && r.URL.Query().Has("token") {
		var err error
		if userID, err = h.auth.QueryToken(r); err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
	}

	dispatcher, err := h.newDispatcher(r, sessionID, userID)
	if err != nil {
		if errors.Is(err, ErrDenied) {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		slog.Error("create session", "session", sessionID, "error", err)
		http.Error(w, "could not open session", http.StatusBadRequest)
		return
	}

	client := NewClient(h.hub, dispatcher, sessionID, userID)
	if err := h.hub.Register(client); err != nil {
		dispatcher.Editor().Dispose()
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		h.hub.unregister(client)
		dispatcher.Editor().Dispose()
		return
	}

	client.conn = conn
	client.Run(r.Context())
}
