package audit

import "context"

// Store persists the message audit trail.
type Store interface {
	CreateMessageLog(ctx context.Context, log *MessageLog) error
	GetMessagesByUser(ctx context.Context, userID string, limit int) ([]*MessageLog, error)
}
