package models

import (
	"encoding/json"
	"time"
)

// EventType categorizes audit events.
type EventType string

const (
	// Session events
	EventTypeSessionConnected EventType = "session.connected"
	EventTypeSessionClosed    EventType = "session.closed"

	// Credential events
	EventTypeCredentialRegistered EventType = "credential.registered"
	EventTypeCredentialRevoked    EventType = "credential.revoked"

	// Mount events
	EventTypeMountAttached EventType = "mount.attached"
	EventTypeMountDetached EventType = "mount.detached"

	// Transfer events
	EventTypeHostKeyTrusted    EventType = "transfer.hostkey_trusted"
	EventTypeTransferCompleted EventType = "transfer.completed"
	EventTypeTransferFailed    EventType = "transfer.failed"
)

// EntityType identifies the kind of resource an event relates to.
type EntityType string

const (
	EntityTypeSession    EntityType = "session"
	EntityTypeCredential EntityType = "credential"
	EntityTypeMount      EntityType = "mount"
	EntityTypeTransfer   EntityType = "transfer"
)

// Event represents an append-only audit log entry.
type Event struct {
	// ID is the unique identifier for the event.
	ID string `json:"id" yaml:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	// Type categorizes the event.
	Type EventType `json:"type" yaml:"type"`

	// EntityType identifies what kind of resource this event relates to.
	EntityType EntityType `json:"entity_type" yaml:"entity_type"`

	// EntityID is the resource identifier (host, drive letter, session id).
	EntityID string `json:"entity_id" yaml:"entity_id"`

	// Payload contains event-specific data.
	Payload json.RawMessage `json:"payload,omitempty" yaml:"-"`

	// Metadata contains additional context.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// HostKeyTrustedPayload is the payload for transfer.hostkey_trusted events.
type HostKeyTrustedPayload struct {
	Host        string `json:"host"`
	Fingerprint string `json:"fingerprint"`
}

// TransferPayload is the payload for transfer.completed and transfer.failed events.
type TransferPayload struct {
	Direction  string `json:"direction"`
	LocalPath  string `json:"local_path"`
	RemotePath string `json:"remote_path"`
	Attempts   int    `json:"attempts"`
	Error      string `json:"error,omitempty"`
}
