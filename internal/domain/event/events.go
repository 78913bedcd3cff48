package event

import (
	"time"

	"github.com/vertextoedge/frame-viewer/internal/domain"
)

// DomainEvent is the interface for all realtime domain events
type DomainEvent interface {
	// EventName returns the name of the event
	EventName() string
	// OccurredAt returns when the event occurred
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events
type BaseEvent struct {
	Timestamp time.Time
}

// OccurredAt returns when the event occurred
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

func now() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Connected is raised once the change feed subscription is acknowledged
type Connected struct {
	BaseEvent
	ClientID string
}

// EventName returns the event name
func (e Connected) EventName() string {
	return "realtime.connected"
}

// NewConnected creates a new Connected event
func NewConnected(clientID string) Connected {
	return Connected{BaseEvent: now(), ClientID: clientID}
}

// Disconnected is raised whenever the connection is lost or fails to establish
type Disconnected struct {
	BaseEvent
	Reason string
}

// EventName returns the event name
func (e Disconnected) EventName() string {
	return "realtime.disconnected"
}

// NewDisconnected creates a new Disconnected event
func NewDisconnected(reason string) Disconnected {
	return Disconnected{BaseEvent: now(), Reason: reason}
}

// MediaCreated carries a newly published record visible to this device
type MediaCreated struct {
	BaseEvent
	Media domain.Media
}

// EventName returns the event name
func (e MediaCreated) EventName() string {
	return "media.created"
}

// NewMediaCreated creates a new MediaCreated event
func NewMediaCreated(m domain.Media) MediaCreated {
	return MediaCreated{BaseEvent: now(), Media: m}
}

// MediaUpdated carries a full replacement of an existing record
type MediaUpdated struct {
	BaseEvent
	Media domain.Media
}

// EventName returns the event name
func (e MediaUpdated) EventName() string {
	return "media.updated"
}

// NewMediaUpdated creates a new MediaUpdated event
func NewMediaUpdated(m domain.Media) MediaUpdated {
	return MediaUpdated{BaseEvent: now(), Media: m}
}

// MediaDeleted is raised for deletions and for records that no longer match
// the local device filter
type MediaDeleted struct {
	BaseEvent
	MediaID string
}

// EventName returns the event name
func (e MediaDeleted) EventName() string {
	return "media.deleted"
}

// NewMediaDeleted creates a new MediaDeleted event
func NewMediaDeleted(id string) MediaDeleted {
	return MediaDeleted{BaseEvent: now(), MediaID: id}
}

// RefreshNeeded asks the consumer to resync the whole playlist
type RefreshNeeded struct {
	BaseEvent
}

// EventName returns the event name
func (e RefreshNeeded) EventName() string {
	return "playlist.refresh_needed"
}

// NewRefreshNeeded creates a new RefreshNeeded event
func NewRefreshNeeded() RefreshNeeded {
	return RefreshNeeded{BaseEvent: now()}
}
