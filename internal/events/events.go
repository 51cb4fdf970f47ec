// Package events carries audit and position notifications to SSE clients.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	TypePing            = "ping"
	TypeAuditStarted    = "audit_started"
	TypeAuditCompleted  = "audit_completed"
	TypeAuditCancelled  = "audit_cancelled"
	TypePositionUpdated = "position_updated"
)

// Event is the envelope every SSE message carries.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// MakeEvent encodes an envelope for Hub.Publish. A payload that fails to
// encode is sent without data.
func MakeEvent(reqID, typ string, v int, data any) string {
	e := Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Version:   v,
		At:        time.Now().UTC(),
		RequestID: reqID,
	}
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			e.Data = b
		}
	}
	b, _ := json.Marshal(e)
	return string(b)
}
