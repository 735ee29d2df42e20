package signaling

import "encoding/json"

// Event names shared with the browser client.
const (
	// Client -> server
	EventJoin       = "join"
	EventAction     = "scene:action"
	EventModelChunk = "scene:model-chunk"
	EventSignal     = "signal"
	EventInitAck    = "scene:init-ack"

	// Server -> client
	EventConnected        = "connected"
	EventModelIncoming    = "scene:model-incoming"
	EventInit             = "scene:init"
	EventUpdate           = "scene:update"
	EventUserConnected    = "user-connected"
	EventUserDisconnected = "user-disconnected"
	EventChunkAck         = "scene:chunk-ack"
	EventAck              = "scene:ack"
)

// Message defines the structure for all C2S (Client to Server)
// and S2C (Server to Client) websocket messages.
//
// Seq is an optional client-chosen sequence number. Acknowledgment messages
// (scene:ack, scene:chunk-ack) echo it back so the client can correlate a
// reply with the request that caused it.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	RoomID  string          `json:"room_id,omitempty"`
	Seq     int64           `json:"seq,omitempty"`

	// client is the client that sent the message.
	// It's used internally by the Hub and not sent over JSON.
	client *Client `json:"-"`
}

// ActionPayload is the body of a scene:action message. Payload is opaque to
// the server for transform/camera actions and carries the serialized model
// for loadModel.
type ActionPayload struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Metadata *ModelMetadata  `json:"metadata,omitempty"`
}

// SignalPayload is the body of a client-sent signal message. The Signal
// field holds an SDP offer/answer or ICE candidate and is relayed verbatim.
type SignalPayload struct {
	To     string          `json:"to"`
	Signal json.RawMessage `json:"signal"`
}

// SignalRelayPayload is what the destination peer receives.
type SignalRelayPayload struct {
	From   string          `json:"from"`
	Signal json.RawMessage `json:"signal"`
}

// ChunkPayload is the body of a scene:model-chunk message.
type ChunkPayload struct {
	Index  int    `json:"index"`
	Total  int    `json:"total"`
	RoomID string `json:"room_id,omitempty"`
}

// ChunkAckPayload acknowledges a single received chunk.
type ChunkAckPayload struct {
	Index int `json:"index"`
}

// AckPayload is the per-action acknowledgment sent back to the action's
// originator only.
type AckPayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ConnectedPayload tells a freshly upgraded connection its own peer ID,
// which it needs later to filter out its own broadcast echoes.
type ConnectedPayload struct {
	PeerID string `json:"peer_id"`
}

// PresencePayload announces a peer joining or leaving a room.
type PresencePayload struct {
	PeerID string `json:"peer_id"`
}

// ModelIncomingPayload warns a client that a (potentially large) model
// payload is about to follow, so it can show progress UI before the heavy
// frame arrives. From is empty on the join handshake and set to the loading
// peer's ID on a live loadModel broadcast.
type ModelIncomingPayload struct {
	Metadata *ModelMetadata `json:"metadata"`
	Size     int64          `json:"size"`
	From     string         `json:"from,omitempty"`
}

// InitPayload is the full scene snapshot replayed to a late joiner.
type InitPayload struct {
	Model     json.RawMessage `json:"model"`
	Transform json.RawMessage `json:"transform"`
	Camera    json.RawMessage `json:"camera"`
}

// UpdatePayload broadcasts an applied action to the room. From always
// carries the originating peer's ID; the update goes to every member
// including the sender, and receivers drop their own echoes by ID.
type UpdatePayload struct {
	Action ActionPayload `json:"action"`
	From   string        `json:"from"`
}

func mustMarshal(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		// All payload types above marshal cleanly; this guards against
		// future fields that don't.
		panic(err)
	}
	return b
}
