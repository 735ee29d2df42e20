package signaling

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
)

// uploadKey identifies one peer's chunked-upload progress in one room.
type uploadKey struct {
	peerID string
	roomID string
}

// uploadProgress is best-effort bookkeeping for a chunked model transfer.
// Chunks are acknowledged individually so the uploading client can drive a
// progress bar; the model itself still arrives as a single frame and nothing
// is reassembled server-side.
type uploadProgress struct {
	Received int
	Total    int
}

// HubConfig carries the transport tuning knobs the hub hands to its clients.
// Zero values fall back to the package defaults.
type HubConfig struct {
	MaxMessageSize int64
	PongWait       time.Duration
	PingPeriod     time.Duration
}

// Hub is the central brain of the signaling server.
//
// A single goroutine (Run) owns every map below. All room membership and
// scene-state mutations happen as discrete, run-to-completion reactions to
// events arriving on the three channels, so no locking is needed and
// last-write-wins is safe by construction.
type Hub struct {
	// Register is a channel for registering new clients.
	Register chan *Client

	// Unregister is a channel for unregistering clients.
	Unregister chan *Client

	// Inbound carries every message read off a client connection.
	Inbound chan *Message

	// rooms maps room IDs to Room instances.
	rooms map[string]*Room

	// clients maps peer IDs to their connections, for signal routing.
	clients map[string]*Client

	// peerRooms maps peer ID -> room ID. Every handler consults this
	// table instead of re-registering per-room handlers, so rejoining
	// can never double-subscribe a connection.
	peerRooms map[string]string

	// uploads tracks chunked-upload progress per (peer, room).
	uploads map[uploadKey]*uploadProgress

	quit chan struct{}

	maxMessageSize int64
	pongWait       time.Duration
	pingPeriod     time.Duration

	logger *logrus.Entry
}

// NewHub creates a new Hub instance.
func NewHub(cfg HubConfig, logger *logrus.Entry) *Hub {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaultPongWait
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = defaultPingPeriod
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	return &Hub{
		Register:       make(chan *Client),
		Unregister:     make(chan *Client),
		Inbound:        make(chan *Message),
		rooms:          make(map[string]*Room),
		clients:        make(map[string]*Client),
		peerRooms:      make(map[string]string),
		uploads:        make(map[uploadKey]*uploadProgress),
		quit:           make(chan struct{}),
		maxMessageSize: cfg.MaxMessageSize,
		pongWait:       cfg.PongWait,
		pingPeriod:     cfg.PingPeriod,
		logger:         logger,
	}
}

// Run starts the hub's main processing loop.
// This is the single goroutine that safely manages all state (rooms, clients).
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			return

		case client := <-h.Register:
			h.onRegister(client)

		case client := <-h.Unregister:
			h.onUnregister(client)

		case msg := <-h.Inbound:
			h.dispatch(msg)
		}
	}
}

// Stop terminates the event loop. Connections are left to their pumps; this
// only exists for orderly process shutdown and tests.
func (h *Hub) Stop() {
	close(h.quit)
}

func (h *Hub) onRegister(client *Client) {
	h.clients[client.ID] = client
	h.logger.WithField("peer", client.ID).Info("Client registered")

	// Tell the client its own ID so it can filter broadcast echoes.
	client.queue(&Message{
		Type:    EventConnected,
		Payload: mustMarshal(ConnectedPayload{PeerID: client.ID}),
	})
}

func (h *Hub) onUnregister(client *Client) {
	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	h.leaveRoom(client)
	delete(h.clients, client.ID)

	// Drop any chunk-progress bookkeeping the peer left behind.
	for key := range h.uploads {
		if key.peerID == client.ID {
			delete(h.uploads, key)
		}
	}

	close(client.Send)
	h.logger.WithField("peer", client.ID).Info("Client unregistered")
}

// leaveRoom removes the client from its current room, if any, announcing the
// departure and deleting the room the moment it empties. The emptied room's
// scene state goes with it; collaboration state is deliberately ephemeral.
func (h *Hub) leaveRoom(client *Client) {
	roomID := h.peerRooms[client.ID]
	if roomID == "" {
		return
	}

	delete(h.peerRooms, client.ID)
	client.RoomID = ""

	room, ok := h.rooms[roomID]
	if !ok {
		return
	}

	delete(room.Members, client.ID)

	if len(room.Members) == 0 {
		delete(h.rooms, roomID)
		h.logger.WithField("room", roomID).Info("Room deleted")
		return
	}

	room.broadcast(&Message{
		Type:    EventUserDisconnected,
		Payload: mustMarshal(PresencePayload{PeerID: client.ID}),
	}, client.ID)
	h.logger.WithFields(logrus.Fields{"peer": client.ID, "room": roomID}).Info("Peer left room")
}

func (h *Hub) dispatch(msg *Message) {
	switch msg.Type {
	case EventJoin:
		h.handleJoin(msg)

	case EventAction:
		h.handleAction(msg)

	case EventModelChunk:
		h.handleModelChunk(msg)

	case EventSignal:
		h.handleSignal(msg)

	case EventInitAck:
		h.logger.WithField("peer", msg.client.ID).Debug("Scene init acknowledged")

	default:
		h.logger.WithFields(logrus.Fields{
			"peer": msg.client.ID,
			"type": msg.Type,
		}).Warn("Unknown message type")
	}
}

// handleJoin adds the sender to a room, creating it on first join. A
// connection belongs to at most one room; joining a second room leaves the
// first. Rejoining the current room is a membership no-op but still replays
// the scene, which gives a confused client a cheap way to resync.
func (h *Hub) handleJoin(msg *Message) {
	client := msg.client
	roomID := msg.RoomID

	if roomID == "" {
		h.ack(client, msg.Seq, false, "Room ID required")
		return
	}

	rejoin := client.RoomID == roomID

	if !rejoin {
		h.leaveRoom(client)

		room, ok := h.rooms[roomID]
		if !ok {
			room = newRoom(roomID)
			h.rooms[roomID] = room
			h.logger.WithField("room", roomID).Info("Room created")
		}

		room.Members[client.ID] = client
		client.RoomID = roomID
		h.peerRooms[client.ID] = roomID

		room.broadcast(&Message{
			Type:    EventUserConnected,
			Payload: mustMarshal(PresencePayload{PeerID: client.ID}),
		}, client.ID)

		h.logger.WithFields(logrus.Fields{
			"peer":    client.ID,
			"room":    roomID,
			"members": len(room.Members),
		}).Info("Peer joined room")
	}

	// Replay the scene to the joiner: a lightweight size notice first so
	// the client can put up a progress indicator, then the full snapshot.
	// Nothing is sent for a model-less room.
	room := h.rooms[roomID]
	if room.Scene.HasModel() {
		client.queue(&Message{
			Type: EventModelIncoming,
			Payload: mustMarshal(ModelIncomingPayload{
				Metadata: room.Scene.ModelMetadata,
				Size:     room.Scene.ModelSize(),
			}),
		})
		client.queue(&Message{
			Type:    EventInit,
			Payload: mustMarshal(room.Scene.Snapshot()),
		})
	}
}

// handleAction validates and applies a scene action, then broadcasts the
// result to every room member including the sender; receivers filter their
// own echoes by the from field. The sender gets a fire-and-forget ack.
func (h *Hub) handleAction(msg *Message) {
	client := msg.client

	// A malformed payload must never take down the connection or the
	// room; anything thrown inside action handling becomes a failure ack.
	defer func() {
		if r := recover(); r != nil {
			h.logger.WithFields(logrus.Fields{
				"peer":  client.ID,
				"panic": r,
			}).Error("Recovered processing scene action")
			h.ack(client, msg.Seq, false, "Internal error")
		}
	}()

	roomID := h.peerRooms[client.ID]
	if roomID == "" {
		h.ack(client, msg.Seq, false, "Not in a room")
		return
	}
	room := h.rooms[roomID]

	var action ActionPayload
	if err := json.Unmarshal(msg.Payload, &action); err != nil {
		h.ack(client, msg.Seq, false, "Invalid action payload")
		return
	}

	if err := room.Scene.Apply(&action); err != nil {
		h.ack(client, msg.Seq, false, err.Error())
		return
	}

	if action.Type == ActionLoadModel {
		room.broadcast(&Message{
			Type: EventModelIncoming,
			Payload: mustMarshal(ModelIncomingPayload{
				Metadata: room.Scene.ModelMetadata,
				Size:     room.Scene.ModelSize(),
				From:     client.ID,
			}),
		}, "")
	}

	room.broadcast(&Message{
		Type: EventUpdate,
		Payload: mustMarshal(UpdatePayload{
			Action: action,
			From:   client.ID,
		}),
	}, "")

	h.ack(client, msg.Seq, true, "")

	if action.Type != ActionTransform && action.Type != ActionCamera {
		// Transform/camera updates arrive every animation frame during a
		// drag; logging those would swamp the output.
		h.logger.WithFields(logrus.Fields{
			"peer":   client.ID,
			"room":   roomID,
			"action": action.Type,
		}).Info("Scene action applied")
	}
}

// handleModelChunk updates the sender's upload-progress counters and
// acknowledges the chunk. Purely observational: delivery of the model itself
// is not gated on these counters.
func (h *Hub) handleModelChunk(msg *Message) {
	client := msg.client

	var chunk ChunkPayload
	if err := json.Unmarshal(msg.Payload, &chunk); err != nil {
		h.logger.WithField("peer", client.ID).WithError(err).Warn("Bad chunk payload")
		return
	}

	roomID := chunk.RoomID
	if roomID == "" {
		roomID = h.peerRooms[client.ID]
	}

	key := uploadKey{peerID: client.ID, roomID: roomID}
	progress, ok := h.uploads[key]
	if !ok {
		progress = &uploadProgress{}
		h.uploads[key] = progress
	}
	progress.Received++
	if chunk.Total > 0 {
		progress.Total = chunk.Total
	}

	client.queue(&Message{
		Type:    EventChunkAck,
		Payload: mustMarshal(ChunkAckPayload{Index: chunk.Index}),
		Seq:     msg.Seq,
	})

	h.logger.WithFields(logrus.Fields{
		"peer":     client.ID,
		"room":     roomID,
		"received": progress.Received,
		"total":    progress.Total,
	}).Debug("Model chunk")
}

// handleSignal relays an opaque WebRTC payload (SDP or ICE candidate) to the
// named destination peer. If the destination raced a disconnect the message
// is silently dropped: WebRTC negotiation tolerates lost signaling messages,
// and there is nothing useful to tell the sender.
func (h *Hub) handleSignal(msg *Message) {
	client := msg.client

	var signal SignalPayload
	if err := json.Unmarshal(msg.Payload, &signal); err != nil {
		h.logger.WithField("peer", client.ID).WithError(err).Warn("Bad signal payload")
		return
	}

	target, ok := h.clients[signal.To]
	if !ok {
		h.logger.WithFields(logrus.Fields{
			"peer": client.ID,
			"to":   signal.To,
		}).Debug("Signal destination gone, dropping")
		return
	}

	target.queue(&Message{
		Type: EventSignal,
		Payload: mustMarshal(SignalRelayPayload{
			From:   client.ID,
			Signal: signal.Signal,
		}),
	})
}

func (h *Hub) ack(client *Client, seq int64, success bool, detail string) {
	client.queue(&Message{
		Type:    EventAck,
		Payload: mustMarshal(AckPayload{Success: success, Error: detail}),
		Seq:     seq,
	})
}
