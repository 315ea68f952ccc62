package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"price-tracker/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore is the sqlx-backed Store for PostgreSQL
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a new database store
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the schema if it does not exist
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// UpsertProduct inserts or refreshes a product keyed by identity
func (s *PostgresStore) UpsertProduct(ctx context.Context, p *models.Product) (bool, error) {
	var row struct {
		ID          int64     `db:"id"`
		URL         string    `db:"url"`
		Code        string    `db:"code"`
		FirstSeenAt time.Time `db:"first_seen_at"`
		UpdatedAt   time.Time `db:"updated_at"`
		Created     bool      `db:"created"`
	}

	query := `
		INSERT INTO products (identity, name, url, image_url, code, first_seen_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (identity) DO UPDATE
		SET name = EXCLUDED.name, image_url = EXCLUDED.image_url, updated_at = NOW()
		RETURNING id, url, code, first_seen_at, updated_at, (xmax = 0) AS created`

	err := s.db.GetContext(ctx, &row, query, p.Identity, p.Name, p.URL, p.ImageURL, p.Code)
	if err != nil {
		return false, fmt.Errorf("failed to upsert product %s: %w", p.Identity, err)
	}

	p.ID = row.ID
	p.URL = row.URL
	p.Code = row.Code
	p.FirstSeenAt = row.FirstSeenAt
	p.UpdatedAt = row.UpdatedAt
	return row.Created, nil
}

// LatestObservation retrieves the newest observation for a product
func (s *PostgresStore) LatestObservation(ctx context.Context, productID int64) (*models.PriceObservation, error) {
	var obs models.PriceObservation
	err := s.db.GetContext(ctx, &obs,
		"SELECT * FROM price_observations WHERE product_id = $1 ORDER BY observed_at DESC, id DESC LIMIT 1",
		productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &obs, nil
}

// AppendObservation inserts an observation within a transaction (FOR UPDATE lock on the product)
func (s *PostgresStore) AppendObservation(ctx context.Context, productID int64, current decimal.Decimal, original decimal.NullDecimal) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var id int64
	err = tx.GetContext(ctx, &id, "SELECT id FROM products WHERE id = $1 FOR UPDATE", productID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock product: %w", err)
	}

	var exists bool
	err = tx.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM price_observations
			WHERE product_id = $1
			  AND observed_at >= date_trunc('day', NOW())
			  AND observed_at < date_trunc('day', NOW()) + INTERVAL '1 day'
			  AND current_price = $2
			  AND original_price IS NOT DISTINCT FROM $3::numeric
		)`, productID, current, original)
	if err != nil {
		return false, fmt.Errorf("failed to check same-day observation: %w", err)
	}
	if exists {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO price_observations (product_id, current_price, original_price, discount_percent, observed_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		productID, current, original, models.DiscountPercent(current, original))
	if err != nil {
		return false, fmt.Errorf("failed to insert observation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// AppendAlerts inserts alerts in a single transaction
func (s *PostgresStore) AppendAlerts(ctx context.Context, alerts []models.PriceAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, a := range alerts {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO price_alerts (product_id, kind, old_price, new_price, created_at) VALUES ($1, $2, $3, $4, NOW())",
			a.ProductID, a.Kind, a.OldPrice, a.NewPrice)
		if err != nil {
			return fmt.Errorf("failed to insert alert: %w", err)
		}
	}

	return tx.Commit()
}

// ListProducts retrieves products ordered by ID
func (s *PostgresStore) ListProducts(ctx context.Context, limit, offset int) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products ORDER BY id LIMIT $1 OFFSET $2", clampLimit(limit), max(offset, 0))
	return products, err
}

// GetProduct retrieves a product by ID
func (s *PostgresStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListObservations retrieves a product's price history, newest first
func (s *PostgresStore) ListObservations(ctx context.Context, productID int64, limit int) ([]models.PriceObservation, error) {
	observations := []models.PriceObservation{}
	err := s.db.SelectContext(ctx, &observations,
		"SELECT * FROM price_observations WHERE product_id = $1 ORDER BY observed_at DESC, id DESC LIMIT $2",
		productID, clampLimit(limit))
	return observations, err
}

// ListAlerts retrieves alerts, newest first
func (s *PostgresStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]models.PriceAlert, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.ProductID > 0 {
		conds = append(conds, "product_id = ?")
		args = append(args, filter.ProductID)
	}
	if filter.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, filter.Kind)
	}

	query := "SELECT * FROM price_alerts"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, clampLimit(filter.Limit))

	alerts := []models.PriceAlert{}
	err := s.db.SelectContext(ctx, &alerts, s.db.Rebind(query), args...)
	return alerts, err
}
