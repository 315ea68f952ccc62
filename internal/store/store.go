package store

import (
	"context"
	"errors"
	"fmt"

	"price-tracker/config"
	"price-tracker/internal/models"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// AlertFilter narrows ListAlerts. Zero values mean no filter.
type AlertFilter struct {
	ProductID int64
	Kind      models.AlertKind
	Limit     int
}

// Store persists products, their price history and the alerts derived from it.
type Store interface {
	// UpsertProduct inserts p or, when its identity already exists, refreshes
	// name, image and updated-at. p is filled with the stored row.
	UpsertProduct(ctx context.Context, p *models.Product) (created bool, err error)

	// LatestObservation returns the most recent observation, or nil when the
	// product has none.
	LatestObservation(ctx context.Context, productID int64) (*models.PriceObservation, error)

	// AppendObservation records a price reading unless one with the same
	// (current, original) pair already exists for the product today.
	AppendObservation(ctx context.Context, productID int64, current decimal.Decimal, original decimal.NullDecimal) (bool, error)

	AppendAlerts(ctx context.Context, alerts []models.PriceAlert) error

	ListProducts(ctx context.Context, limit, offset int) ([]models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListObservations(ctx context.Context, productID int64, limit int) ([]models.PriceObservation, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]models.PriceAlert, error)

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the backend selected by cfg.Driver
func Open(cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "postgres":
		s, err = NewPostgresStore(cfg.DatabaseURL)
	case "sqlite":
		s, err = OpenSQLite(cfg.SQLitePath, cfg.Debug)
	case "mysql":
		s, err = OpenMySQL(cfg.MySQLDSN, cfg.Debug)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
