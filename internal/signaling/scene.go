package signaling

import (
	"encoding/json"
	"errors"
)

// errUnknownAction is reported to the sender only; the exact string is part
// of the client contract.
var errUnknownAction = errors.New("Unknown action")

// Scene action tags accepted from clients.
const (
	ActionLoadModel = "loadModel"
	ActionTransform = "transform"
	ActionCamera    = "camera"
	ActionClear     = "clear"
)

// ModelMetadata describes the model payload currently loaded in a room.
type ModelMetadata struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type,omitempty"`
}

// SceneState is the authoritative, server-held snapshot of a room's scene.
// All fields are nullable; transform and camera are opaque blobs that the
// server stores and replays without looking inside (they can change every
// animation frame during a drag, so parsing them here would buy nothing).
//
// The hub's event loop is the only writer. Conflicts between editors resolve
// last-write-wins per field.
type SceneState struct {
	Model         json.RawMessage `json:"model"`
	ModelMetadata *ModelMetadata  `json:"modelMetadata"`
	Transform     json.RawMessage `json:"transform"`
	Camera        json.RawMessage `json:"camera"`
}

// NewSceneState returns the empty scene a room starts with.
func NewSceneState() *SceneState {
	return &SceneState{}
}

// HasModel reports whether a model is currently loaded. A joiner only gets
// the scene:init replay when this is true.
func (s *SceneState) HasModel() bool {
	return len(s.Model) > 0
}

// Apply mutates the scene according to a single action. It returns an error
// for unknown action tags; the caller converts that into a failure ack for
// the sender and suppresses the broadcast.
func (s *SceneState) Apply(action *ActionPayload) error {
	switch action.Type {
	case ActionLoadModel:
		// Wholesale replace: a fresh model always starts from its own
		// default pose, even if the request smuggled in a transform.
		s.Model = action.Payload
		s.ModelMetadata = action.Metadata
		if s.ModelMetadata == nil {
			s.ModelMetadata = &ModelMetadata{
				Name: "untitled",
				Size: int64(len(action.Payload)),
			}
		}
		s.Transform = nil
		s.Camera = nil

	case ActionTransform:
		s.Transform = action.Payload

	case ActionCamera:
		s.Camera = action.Payload

	case ActionClear:
		s.Model = nil
		s.ModelMetadata = nil
		s.Transform = nil
		s.Camera = nil

	default:
		return errUnknownAction
	}

	return nil
}

// ModelSize returns the byte size of the loaded model, preferring the
// client-reported metadata size when present.
func (s *SceneState) ModelSize() int64 {
	if s.ModelMetadata != nil && s.ModelMetadata.Size > 0 {
		return s.ModelMetadata.Size
	}
	return int64(len(s.Model))
}

// Snapshot builds the scene:init payload for a late joiner.
func (s *SceneState) Snapshot() InitPayload {
	return InitPayload{
		Model:     s.Model,
		Transform: s.Transform,
		Camera:    s.Camera,
	}
}
