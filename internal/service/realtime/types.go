package realtime

import (
	"encoding/json"

	"github.com/vertextoedge/frame-viewer/internal/adapter/pocketbase"
	"github.com/vertextoedge/frame-viewer/internal/domain"
)

// State is the connection state of the change feed
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingHandshake
	StateSubscribed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingHandshake:
		return "awaiting_handshake"
	case StateSubscribed:
		return "subscribed"
	default:
		return "disconnected"
	}
}

const (
	actionCreate = "create"
	actionUpdate = "update"
	actionDelete = "delete"
)

type handshakeMessage struct {
	ClientID string `json:"clientId"`
}

type subscribeRequest struct {
	ClientID      string   `json:"clientId"`
	Subscriptions []string `json:"subscriptions"`
}

type recordMessage struct {
	Action string          `json:"action"`
	Record json.RawMessage `json:"record"`
}

type recordRef struct {
	ID string `json:"id"`
}

// Matches reports whether media is visible to deviceID. It repeats the
// subscription filter locally, since the server filter may lag or be looser.
func Matches(media *domain.Media, deviceID string) bool {
	if media.Status != "" && media.Status != pocketbase.PublishedStatus {
		return false
	}
	if deviceID == "" {
		return true
	}

	var scopes []json.RawMessage
	if len(media.DeviceScopes) == 0 || json.Unmarshal(media.DeviceScopes, &scopes) != nil {
		// absent, null, "" or another non-array value
		return true
	}
	if len(scopes) == 0 {
		return true
	}
	for _, raw := range scopes {
		var id string
		if json.Unmarshal(raw, &id) == nil && id == deviceID {
			return true
		}
	}
	return false
}
