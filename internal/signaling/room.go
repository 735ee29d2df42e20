package signaling

// Room groups the peers collaborating on one shared scene. Rooms are created
// lazily on first join and torn down the instant the last member leaves;
// their scene state dies with them.
//
// Only the hub's event loop touches a Room, so no locking is needed.
type Room struct {
	// ID is the caller-supplied identifier for the room.
	ID string

	// Members maps peer ID -> client for every connection currently joined.
	Members map[string]*Client

	// Scene is the authoritative scene state replayed to late joiners.
	Scene *SceneState
}

func newRoom(id string) *Room {
	return &Room{
		ID:      id,
		Members: make(map[string]*Client),
		Scene:   NewSceneState(),
	}
}

// broadcast queues a message to every member, optionally skipping one peer
// (used for presence events, which the affected peer doesn't need to hear).
func (r *Room) broadcast(msg *Message, except string) {
	for id, member := range r.Members {
		if id == except {
			continue
		}
		member.queue(msg)
	}
}
