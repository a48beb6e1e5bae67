package audit

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *bun.DB
}

// NewPostgresStore creates a new PostgreSQL message log store.
func NewPostgresStore(db *bun.DB) Store {
	return &PostgresStore{db: db}
}

// CreateMessageLog persists a new audit trail entry.
func (s *PostgresStore) CreateMessageLog(ctx context.Context, log *MessageLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	_, err := s.db.NewInsert().Model(log).Exec(ctx)
	return err
}

// GetMessagesByUser returns the most recent audit entries for a user.
func (s *PostgresStore) GetMessagesByUser(ctx context.Context, userID string, limit int) ([]*MessageLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []*MessageLog
	err := s.db.NewSelect().
		Model(&logs).
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Limit(limit).
		Scan(ctx)
	return logs, err
}

// SetupSchema creates the message_logs table when it does not exist yet.
func SetupSchema(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*MessageLog)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create message_logs table: %w", err)
	}
	return nil
}
