package dto

import (
	"encoding/json"

	"github.com/mhollis-dev/fieldops-api/internal/models"
)

// QueuedMutation is one entry of a device's offline queue as uploaded to the
// sync endpoint. Seq is the device-local sequence number; uploads are
// idempotent per (device, seq).
type QueuedMutation struct {
	Seq     int64               `json:"seq" validate:"gte=0"`
	Kind    models.MutationKind `json:"kind" validate:"required,oneof=SUBMIT DECIDE"`
	Payload json.RawMessage     `json:"payload" validate:"required"`
}

// PushMutationsRequest uploads a batch of queued mutations for a device.
type PushMutationsRequest struct {
	DeviceID  string           `json:"device_id" validate:"required"`
	Mutations []QueuedMutation `json:"mutations" validate:"required,dive"`
}

// DecideMutationPayload is the payload carried by a queued DECIDE mutation.
type DecideMutationPayload struct {
	SubmissionID string        `json:"submission_id" validate:"required"`
	Decision     DecideRequest `json:"decision"`
}

// DrainRequest triggers replay of a device's unsynced mutations.
type DrainRequest struct {
	DeviceID string `json:"device_id" validate:"required"`
}

// MutationResult reports the replay outcome for a single mutation.
type MutationResult struct {
	Seq             int64  `json:"seq"`
	Synced          bool   `json:"synced"`
	ConflictCode    string `json:"conflict_code,omitempty"`
	ConflictMessage string `json:"conflict_message,omitempty"`
}

// DrainResponse summarises a drain pass. Conflicted mutations are retained
// server-side for manual resolution.
type DrainResponse struct {
	DeviceID  string           `json:"device_id"`
	Replayed  int              `json:"replayed"`
	Synced    int              `json:"synced"`
	Conflicts int              `json:"conflicts"`
	Results   []MutationResult `json:"results"`
}
