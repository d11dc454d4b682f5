package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Epin-platforms/nadal-server/brackets"
)

const clientSendBuffer = 256

type WebSocketHandler struct {
	hub      *brackets.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler accepts any origin when allowedOrigins is empty or contains "*".
func NewWebSocketHandler(hub *brackets.Hub, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// мобильные клиенты Origin не присылают
		return origin == "" || set[origin]
	}
}

// ServeTournament подписывает клиента на канал турнира: /ws/tournaments/{id}
func (h *WebSocketHandler) ServeTournament(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.serve(w, r, brackets.TournamentChannel(id))
}

// ServeRoom подписывает клиента на канал комнаты: /ws/rooms/{id}
func (h *WebSocketHandler) ServeRoom(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.serve(w, r, brackets.RoomChannel(id))
}

func (h *WebSocketHandler) serve(w http.ResponseWriter, r *http.Request, channel string) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту ошибкой.
		h.logger.WarnContext(r.Context(), "failed to upgrade websocket", slog.String("room", channel), slog.Any("error", err))
		return
	}

	client := &brackets.Client{
		Hub:    h.hub,
		Conn:   conn,
		Send:   make(chan []byte, clientSendBuffer),
		Room:   channel,
		UserID: uid,
	}
	if !h.hub.Subscribe(client) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
