package audit

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Direction says which way a logged message traveled.
const (
	DirectionInbound  = "in"
	DirectionOutbound = "out"
)

// MessageLog is one audit trail entry for an inbound or outbound message.
type MessageLog struct {
	bun.BaseModel `bun:"table:message_logs,alias:ml"`

	LogID     string    `bun:"id,pk" json:"log_id"`
	UserID    string    `bun:"user_id,notnull" json:"user_id"`
	Direction string    `bun:"direction,notnull" json:"direction"` // "in" or "out"
	Menu      string    `bun:"menu" json:"menu"`                   // menu state when the message was handled
	Kind      string    `bun:"kind" json:"kind,omitempty"`         // directive kind for outbound entries
	Text      string    `bun:"text,notnull" json:"text"`
	Timestamp time.Time `bun:"timestamp,notnull,default:current_timestamp" json:"timestamp"`
}

// Validate checks the required fields of a log entry.
func (l *MessageLog) Validate() error {
	if l.LogID == "" {
		return fmt.Errorf("log ID cannot be empty")
	}
	if l.UserID == "" {
		return fmt.Errorf("user ID cannot be empty")
	}
	if l.Direction != DirectionInbound && l.Direction != DirectionOutbound {
		return fmt.Errorf("direction must be %q or %q", DirectionInbound, DirectionOutbound)
	}
	return nil
}
