package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"

	"github.com/modelroom/backend/internal/config"
	"github.com/modelroom/backend/internal/signaling"
)

func newTestServer(t *testing.T) (*httptest.Server, *signaling.Hub) {
	cfg := config.NewTestConfig(t)
	hub := signaling.NewHub(signaling.HubConfig{}, cfg.Logger("hub"))
	go hub.Run()
	t.Cleanup(hub.Stop)

	ts := httptest.NewServer(NewRouter(hub, cfg))
	t.Cleanup(ts.Close)
	return ts, hub
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewRoomEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/rooms/new")
	assert.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body["room_id"])
	assert.Len(t, strings.Split(body["room_id"], "-"), 3)
}

func TestICEEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/ice")
	assert.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		ICEServers []struct {
			URLs []string `json:"urls"`
		} `json:"iceServers"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.ICEServers, 1)
	assert.Equal(t, []string{config.DefaultICEAddress}, body.ICEServers[0].URLs)
}

func dialWs(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) signaling.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg signaling.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading message: %v", err)
	}
	return msg
}

func peerID(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	msg := readMsg(t, conn)
	assert.Equal(t, signaling.EventConnected, msg.Type)
	var hello signaling.ConnectedPayload
	assert.NoError(t, json.Unmarshal(msg.Payload, &hello))
	assert.NotEmpty(t, hello.PeerID)
	return hello.PeerID
}

// barrier round-trips a chunk message so the caller knows the hub has
// processed everything this connection sent before it.
func barrier(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	payload, err := json.Marshal(signaling.ChunkPayload{Index: 0, Total: 0})
	assert.NoError(t, err)
	assert.NoError(t, conn.WriteJSON(signaling.Message{
		Type:    signaling.EventModelChunk,
		Payload: payload,
	}))
	msg := readMsg(t, conn)
	assert.Equal(t, signaling.EventChunkAck, msg.Type)
}

// TestWebSocketSession runs a whole two-peer collaboration over real
// websocket connections: join, presence, model load with broadcast and ack,
// targeted signaling, disconnect notice.
func TestWebSocketSession(t *testing.T) {
	ts, _ := newTestServer(t)

	c1 := dialWs(t, ts)
	c2 := dialWs(t, ts)
	id1 := peerID(t, c1)
	id2 := peerID(t, c2)
	assert.NotEqual(t, id1, id2)

	assert.NoError(t, c1.WriteJSON(signaling.Message{Type: signaling.EventJoin, RoomID: "demo"}))
	barrier(t, c1) // make sure c1 is in the room before c2 joins
	assert.NoError(t, c2.WriteJSON(signaling.Message{Type: signaling.EventJoin, RoomID: "demo"}))

	presence := readMsg(t, c1)
	assert.Equal(t, signaling.EventUserConnected, presence.Type)
	var joined signaling.PresencePayload
	assert.NoError(t, json.Unmarshal(presence.Payload, &joined))
	assert.Equal(t, id2, joined.PeerID)

	// c1 loads a model.
	action := signaling.ActionPayload{
		Type:     signaling.ActionLoadModel,
		Payload:  json.RawMessage(`"GLB-DATA"`),
		Metadata: &signaling.ModelMetadata{Name: "duck.glb", Size: 8},
	}
	payload, err := json.Marshal(action)
	assert.NoError(t, err)
	assert.NoError(t, c1.WriteJSON(signaling.Message{
		Type:    signaling.EventAction,
		Payload: payload,
		Seq:     42,
	}))

	// Sender side: notice, update, then the ack echoing the seq.
	assert.Equal(t, signaling.EventModelIncoming, readMsg(t, c1).Type)
	assert.Equal(t, signaling.EventUpdate, readMsg(t, c1).Type)
	ackMsg := readMsg(t, c1)
	assert.Equal(t, signaling.EventAck, ackMsg.Type)
	assert.Equal(t, int64(42), ackMsg.Seq)
	var ack signaling.AckPayload
	assert.NoError(t, json.Unmarshal(ackMsg.Payload, &ack))
	assert.True(t, ack.Success)

	// Receiver side: notice then the attributed update.
	assert.Equal(t, signaling.EventModelIncoming, readMsg(t, c2).Type)
	update := readMsg(t, c2)
	assert.Equal(t, signaling.EventUpdate, update.Type)
	var up signaling.UpdatePayload
	assert.NoError(t, json.Unmarshal(update.Payload, &up))
	assert.Equal(t, id1, up.From)
	assert.Equal(t, json.RawMessage(`"GLB-DATA"`), up.Action.Payload)

	// Targeted signaling from c2 to c1.
	signalBody, err := json.Marshal(signaling.SignalPayload{
		To:     id1,
		Signal: json.RawMessage(`{"type":"offer","sdp":"v=0"}`),
	})
	assert.NoError(t, err)
	assert.NoError(t, c2.WriteJSON(signaling.Message{
		Type:    signaling.EventSignal,
		Payload: signalBody,
	}))

	relayed := readMsg(t, c1)
	assert.Equal(t, signaling.EventSignal, relayed.Type)
	var relay signaling.SignalRelayPayload
	assert.NoError(t, json.Unmarshal(relayed.Payload, &relay))
	assert.Equal(t, id2, relay.From)

	// c2 drops; c1 hears about it.
	c2.Close()
	gone := readMsg(t, c1)
	assert.Equal(t, signaling.EventUserDisconnected, gone.Type)
	var left signaling.PresencePayload
	assert.NoError(t, json.Unmarshal(gone.Payload, &left))
	assert.Equal(t, id2, left.PeerID)
}

// TestLateJoinerOverWire verifies the two-message replay handshake for a
// room that already holds a model.
func TestLateJoinerOverWire(t *testing.T) {
	ts, _ := newTestServer(t)

	c1 := dialWs(t, ts)
	peerID(t, c1)
	assert.NoError(t, c1.WriteJSON(signaling.Message{Type: signaling.EventJoin, RoomID: "demo"}))

	action := signaling.ActionPayload{
		Type:    signaling.ActionLoadModel,
		Payload: json.RawMessage(`"SCENE"`),
	}
	payload, err := json.Marshal(action)
	assert.NoError(t, err)
	assert.NoError(t, c1.WriteJSON(signaling.Message{Type: signaling.EventAction, Payload: payload}))
	assert.Equal(t, signaling.EventModelIncoming, readMsg(t, c1).Type)
	assert.Equal(t, signaling.EventUpdate, readMsg(t, c1).Type)
	assert.Equal(t, signaling.EventAck, readMsg(t, c1).Type)

	c2 := dialWs(t, ts)
	peerID(t, c2)
	assert.NoError(t, c2.WriteJSON(signaling.Message{Type: signaling.EventJoin, RoomID: "demo"}))

	notice := readMsg(t, c2)
	assert.Equal(t, signaling.EventModelIncoming, notice.Type)

	init := readMsg(t, c2)
	assert.Equal(t, signaling.EventInit, init.Type)
	var snap signaling.InitPayload
	assert.NoError(t, json.Unmarshal(init.Payload, &snap))
	assert.Equal(t, json.RawMessage(`"SCENE"`), snap.Model)
}
