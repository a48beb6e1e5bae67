package listings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/inspekta/propbot/internal/search"
)

// PostgresGateway implements Gateway against the listings table.
type PostgresGateway struct {
	db *bun.DB
}

// NewPostgresGateway wraps an existing bun DB handle.
func NewPostgresGateway(db *bun.DB) *PostgresGateway {
	return &PostgresGateway{db: db}
}

// OpenDB opens a bun Postgres handle for the given DSN.
func OpenDB(dsn string, maxOpenConns int) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	if maxOpenConns > 0 {
		sqldb.SetMaxOpenConns(maxOpenConns)
	}
	return bun.NewDB(sqldb, pgdialect.New())
}

// Search returns active listings matching every set filter field, featured
// first, newest first. An empty filter matches everything.
func (g *PostgresGateway) Search(ctx context.Context, filter search.Filter, limit int) ([]Property, error) {
	if limit <= 0 {
		limit = 5
	}

	q := g.db.NewSelect().
		Model((*Property)(nil)).
		Where("status = ?", "ACTIVE")

	if filter.City != "" {
		q = q.Where("LOWER(city) = LOWER(?)", filter.City)
	}
	if filter.Type != search.PropertyTypeAny {
		q = q.Where("type = ?", string(filter.Type))
	}
	if filter.Bedrooms != nil {
		q = q.Where("bedrooms = ?", *filter.Bedrooms)
	}
	if filter.MinPrice != nil {
		q = q.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		q = q.Where("price <= ?", *filter.MaxPrice)
	}

	var results []Property
	err := q.Order("featured DESC", "created_at DESC").
		Limit(limit).
		Scan(ctx, &results)
	if err != nil {
		return nil, fmt.Errorf("failed to search listings: %w", err)
	}
	return results, nil
}

// GetDetails fetches one listing by id.
func (g *PostgresGateway) GetDetails(ctx context.Context, propertyID string) (*Property, error) {
	if propertyID == "" {
		return nil, fmt.Errorf("propertyID is required")
	}

	var p Property
	err := g.db.NewSelect().
		Model(&p).
		Where("id = ?", propertyID).
		Where("status = ?", "ACTIVE").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return &p, nil
}

// SetupSchema creates the listings table when it does not exist yet.
func SetupSchema(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*Property)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create listings table: %w", err)
	}
	return nil
}
