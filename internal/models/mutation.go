package models

import (
	"encoding/json"
	"time"
)

// MutationKind enumerates the state-changing operations a device may queue
// while offline.
type MutationKind string

const (
	MutationSubmit MutationKind = "SUBMIT"
	MutationDecide MutationKind = "DECIDE"
)

// PendingMutation is a queued, not-yet-committed state change captured while
// a device was offline. Mutations replay strictly in per-device sequence
// order; a replay that fails validation is parked with its conflict code,
// never dropped or silently overwritten.
type PendingMutation struct {
	ID              string          `db:"id" json:"id"`
	DeviceID        string          `db:"device_id" json:"device_id"`
	Seq             int64           `db:"seq" json:"seq"`
	Kind            MutationKind    `db:"kind" json:"kind"`
	Payload         json.RawMessage `db:"payload" json:"payload"`
	ActorID         string          `db:"actor_id" json:"actor_id"`
	Synced          bool            `db:"synced" json:"synced"`
	ConflictCode    *string         `db:"conflict_code" json:"conflict_code,omitempty"`
	ConflictMessage *string         `db:"conflict_message" json:"conflict_message,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	SyncedAt        *time.Time      `db:"synced_at" json:"synced_at,omitempty"`
}

// Conflicted reports whether the mutation was parked on replay.
func (m *PendingMutation) Conflicted() bool {
	return m.ConflictCode != nil
}

// MutationFilter constrains pending-mutation queries.
type MutationFilter struct {
	DeviceID     string
	Synced       *bool
	OnlyConflict bool
	Limit        int
	Offset       int
}
