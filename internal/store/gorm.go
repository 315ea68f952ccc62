package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"price-tracker/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormStore is the gorm-backed Store used for SQLite and MySQL
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// GormOption configures a GormStore
type GormOption func(*GormStore)

// WithClock replaces the store clock used for timestamps and day boundaries.
func WithClock(now func() time.Time) GormOption {
	return func(s *GormStore) { s.now = now }
}

// OpenSQLite opens (and creates if needed) a SQLite database file. A path of
// ":memory:" gives a private in-memory database.
func OpenSQLite(path string, debug bool, opts ...GormOption) (*GormStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_busy_timeout=5000"
	}

	s, err := NewGormStore(sqlite.Open(dsn), debug, opts...)
	if err != nil {
		return nil, err
	}

	// SQLite allows a single writer; one connection also keeps an in-memory
	// database alive and serializes the same-day check with its insert.
	sqlDB, err := s.db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return s, nil
}

// OpenMySQL connects to MySQL with the given DSN
func OpenMySQL(dsn string, debug bool, opts ...GormOption) (*GormStore, error) {
	if dsn == "" {
		return nil, errors.New("mysql dsn is empty")
	}
	s, err := NewGormStore(mysql.Open(dsn), debug, opts...)
	if err != nil {
		return nil, err
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return s, nil
}

// NewGormStore opens a gorm connection with the given dialector
func NewGormStore(dialector gorm.Dialector, debug bool, opts ...GormOption) (*GormStore, error) {
	logMode := logger.Silent
	if debug {
		logMode = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &GormStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying connection pool
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the database connection
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Migrate creates or updates the schema
func (s *GormStore) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(&models.Product{}, &models.PriceObservation{}, &models.PriceAlert{})
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// UpsertProduct inserts or refreshes a product keyed by identity
func (s *GormStore) UpsertProduct(ctx context.Context, p *models.Product) (bool, error) {
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()

		var existing models.Product
		err := tx.Where("identity = ?", p.Identity).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			p.ID = 0
			p.FirstSeenAt = now
			p.UpdatedAt = now
			if err := tx.Create(p).Error; err != nil {
				return err
			}
			created = true
			return nil
		}
		if err != nil {
			return err
		}

		err = tx.Model(&models.Product{}).Where("id = ?", existing.ID).Updates(map[string]interface{}{
			"name":       p.Name,
			"image_url":  p.ImageURL,
			"updated_at": now,
		}).Error
		if err != nil {
			return err
		}

		p.ID = existing.ID
		p.URL = existing.URL
		p.Code = existing.Code
		p.FirstSeenAt = existing.FirstSeenAt
		p.UpdatedAt = now
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to upsert product %s: %w", p.Identity, err)
	}
	return created, nil
}

// LatestObservation retrieves the newest observation for a product
func (s *GormStore) LatestObservation(ctx context.Context, productID int64) (*models.PriceObservation, error) {
	var rows []models.PriceObservation
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("observed_at DESC, id DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// lockProduct selects the product row FOR UPDATE, serializing same-day checks
// per product. SQLite has no row locks and drops the clause.
func lockProduct(tx *gorm.DB, productID int64, dest *models.Product) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", productID).
		Take(dest)
}

// AppendObservation inserts an observation unless today's history already holds the same price pair
func (s *GormStore) AppendObservation(ctx context.Context, productID int64, current decimal.Decimal, original decimal.NullDecimal) (bool, error) {
	inserted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Product
		err := lockProduct(tx, productID, &p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("product %d: %w", productID, ErrNotFound)
		}
		if err != nil {
			return err
		}

		now := s.now()
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		dayEnd := dayStart.AddDate(0, 0, 1)

		var today []models.PriceObservation
		err = tx.Where("product_id = ? AND observed_at >= ? AND observed_at < ?", productID, dayStart, dayEnd).
			Find(&today).Error
		if err != nil {
			return err
		}
		for _, o := range today {
			if models.SamePricePair(o.CurrentPrice, o.OriginalPrice, current, original) {
				return nil
			}
		}

		obs := models.PriceObservation{
			ProductID:       productID,
			CurrentPrice:    current,
			OriginalPrice:   original,
			DiscountPercent: models.DiscountPercent(current, original),
			ObservedAt:      now,
		}
		if err := tx.Create(&obs).Error; err != nil {
			return err
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to append observation: %w", err)
	}
	return inserted, nil
}

// AppendAlerts inserts alerts in one batch
func (s *GormStore) AppendAlerts(ctx context.Context, alerts []models.PriceAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	now := s.now()
	rows := make([]models.PriceAlert, len(alerts))
	for i, a := range alerts {
		rows[i] = models.PriceAlert{
			ProductID: a.ProductID,
			Kind:      a.Kind,
			OldPrice:  a.OldPrice,
			NewPrice:  a.NewPrice,
			CreatedAt: now,
		}
	}

	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to insert alerts: %w", err)
	}
	return nil
}

// ListProducts retrieves products ordered by ID
func (s *GormStore) ListProducts(ctx context.Context, limit, offset int) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.WithContext(ctx).Order("id").Limit(clampLimit(limit)).Offset(max(offset, 0)).Find(&products).Error
	return products, err
}

// GetProduct retrieves a product by ID
func (s *GormStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).Take(&product, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListObservations retrieves a product's price history, newest first
func (s *GormStore) ListObservations(ctx context.Context, productID int64, limit int) ([]models.PriceObservation, error) {
	observations := []models.PriceObservation{}
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("observed_at DESC, id DESC").
		Limit(clampLimit(limit)).
		Find(&observations).Error
	return observations, err
}

// ListAlerts retrieves alerts, newest first
func (s *GormStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]models.PriceAlert, error) {
	q := s.db.WithContext(ctx).Model(&models.PriceAlert{})
	if filter.ProductID > 0 {
		q = q.Where("product_id = ?", filter.ProductID)
	}
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}

	alerts := []models.PriceAlert{}
	err := q.Order("created_at DESC, id DESC").Limit(clampLimit(filter.Limit)).Find(&alerts).Error
	return alerts, err
}
