package service

import (
	"context"
	"errors"
	"strings"

	"price-tracker/internal/models"
	"price-tracker/internal/store"
	"price-tracker/internal/util"

	"go.uber.org/zap"
)

// ErrNoIdentity is returned for records whose URL yields no product identity
var ErrNoIdentity = errors.New("record has no identity")

// ProductResolver maps raw records onto stored products
type ProductResolver struct {
	store  store.Store
	logger *zap.Logger
}

// NewProductResolver creates a new product resolver
func NewProductResolver(s store.Store) *ProductResolver {
	return &ProductResolver{
		store:  s,
		logger: util.GetLogger(),
	}
}

// Upsert creates the product for raw or refreshes its name and image,
// returning the product key and whether this call created it.
func (r *ProductResolver) Upsert(ctx context.Context, raw models.RawRecord) (int64, bool, error) {
	ctx, span := util.StartSpan(ctx, "ProductResolver.Upsert")
	defer span.End()

	identity := DeriveIdentity(raw.URL)
	if identity == "" {
		return 0, false, ErrNoIdentity
	}

	p := &models.Product{
		Identity: identity,
		Name:     strings.TrimSpace(raw.Name),
		URL:      strings.TrimSpace(raw.URL),
		ImageURL: strings.TrimSpace(raw.ImageURL),
		Code:     DeriveCatalogCode(raw.Code),
	}

	created, err := r.store.UpsertProduct(ctx, p)
	if err != nil {
		span.RecordError(err)
		return 0, false, err
	}

	if created {
		util.ProductsCreated.Inc()
		r.logger.Info("New product",
			zap.Int64("product_id", p.ID),
			zap.String("identity", identity),
			zap.String("name", p.Name))
	}
	return p.ID, created, nil
}
