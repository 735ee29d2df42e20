package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/modelroom/backend/internal/config"
	"github.com/modelroom/backend/internal/signaling"
)

// Configure the websocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024, // 64 KB
	WriteBufferSize: 64 * 1024, // 64 KB

	// We need to check the origin, but for development, we can allow all.
	// In production, you'd check r.Header.Get("Origin") against your frontend's domain
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all connections for now
	},
}

// NewRouter builds the HTTP surface: websocket upgrade, health probe, ICE
// configuration, and the room-ID suggestion endpoint.
func NewRouter(hub *signaling.Hub, cfg *config.Config) *mux.Router {
	logger := cfg.Logger("server")

	router := mux.NewRouter()
	router.HandleFunc("/ws", ServeWs(hub, logger))
	router.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	router.HandleFunc("/ice", iceHandler(cfg)).Methods(http.MethodGet)
	router.HandleFunc("/rooms/new", newRoomHandler).Methods(http.MethodGet)
	return router
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

// iceHandler serves the STUN/TURN configuration clients plug into their
// RTCPeerConnection. The server itself is never a party to the media.
func iceHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"iceServers": cfg.ICEServers(),
		})
	}
}

// newRoomHandler suggests a fresh memorable room ID for a "create room"
// flow. The room itself only materializes when someone joins it.
func newRoomHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"room_id": signaling.GenerateRoomID(),
	})
}

// ServeWs returns an http.HandlerFunc that handles websocket requests.
// It takes the hub as a dependency.
func ServeWs(hub *signaling.Hub, logger *logrus.Entry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Upgrade the HTTP connection to a WebSocket
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.WithError(err).Error("Failed to upgrade connection")
			return
		}

		// The connection ID doubles as the peer identity everywhere;
		// there is no separate identity or authentication layer.
		client := &signaling.Client{
			ID:   uuid.NewString(),
			Hub:  hub,
			Conn: conn,
			Send: make(chan *signaling.Message, 256),
		}

		// Register the client with the hub
		client.Hub.Register <- client

		// Start the client's read and write pumps in separate goroutines
		// These methods will handle the client's lifecycle
		go client.WritePump()
		go client.ReadPump()
	}
}
