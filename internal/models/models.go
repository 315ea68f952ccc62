package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawRecord is a product entry as extracted from a listing page, before any parsing
type RawRecord struct {
	Name             string `json:"name"`
	URL              string `json:"url"`
	CurrentPriceRaw  string `json:"finalPrice"`
	OriginalPriceRaw string `json:"oldPrice"`
	ImageURL         string `json:"img"`
	Code             string `json:"pid"`
}

// Product represents a storefront product keyed by its URL-derived identity
type Product struct {
	ID          int64     `db:"id" json:"id" gorm:"primaryKey;autoIncrement"`
	Identity    string    `db:"identity" json:"identity" gorm:"size:255;not null;uniqueIndex"`
	Name        string    `db:"name" json:"name" gorm:"not null"`
	URL         string    `db:"url" json:"url" gorm:"not null"`
	ImageURL    string    `db:"image_url" json:"image_url,omitempty"`
	Code        string    `db:"code" json:"code,omitempty"`
	FirstSeenAt time.Time `db:"first_seen_at" json:"first_seen_at" gorm:"not null"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at" gorm:"not null;autoUpdateTime:false"`
}

// TableName returns the table name for Product.
func (Product) TableName() string {
	return "products"
}

// PriceObservation is one immutable price reading for a product
type PriceObservation struct {
	ID              int64               `db:"id" json:"id" gorm:"primaryKey;autoIncrement"`
	ProductID       int64               `db:"product_id" json:"product_id" gorm:"not null;index:idx_observations_product,priority:1"`
	CurrentPrice    decimal.Decimal     `db:"current_price" json:"current_price" gorm:"type:decimal(12,2);not null"`
	OriginalPrice   decimal.NullDecimal `db:"original_price" json:"original_price" gorm:"type:decimal(12,2)"`
	DiscountPercent *int                `db:"discount_percent" json:"discount_percent,omitempty"`
	ObservedAt      time.Time           `db:"observed_at" json:"observed_at" gorm:"not null;index:idx_observations_product,priority:2,sort:desc"`

	Product *Product `db:"-" json:"-" gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
}

// TableName returns the table name for PriceObservation.
func (PriceObservation) TableName() string {
	return "price_observations"
}

// HasDiscount reports whether the observation was taken while the product was on sale.
func (o *PriceObservation) HasDiscount() bool {
	return IsDiscounted(o.CurrentPrice, o.OriginalPrice)
}

// PriceAlert is a classified price or discount transition
type PriceAlert struct {
	ID        int64           `db:"id" json:"id" gorm:"primaryKey;autoIncrement"`
	ProductID int64           `db:"product_id" json:"product_id" gorm:"not null;index"`
	Kind      AlertKind       `db:"kind" json:"kind" gorm:"size:32;not null"`
	OldPrice  decimal.Decimal `db:"old_price" json:"old_price" gorm:"type:decimal(12,2);not null"`
	NewPrice  decimal.Decimal `db:"new_price" json:"new_price" gorm:"type:decimal(12,2);not null"`
	CreatedAt time.Time       `db:"created_at" json:"created_at" gorm:"not null;index:idx_alerts_created,sort:desc"`

	Product *Product `db:"-" json:"-" gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
}

// TableName returns the table name for PriceAlert.
func (PriceAlert) TableName() string {
	return "price_alerts"
}

// AlertKind is the closed set of transitions the change detector emits
type AlertKind string

// Alert kinds
const (
	AlertNewSale       AlertKind = "new_sale"
	AlertSaleEnded     AlertKind = "sale_ended"
	AlertPriceDrop     AlertKind = "price_drop"
	AlertPriceIncrease AlertKind = "price_increase"
)

// AlertKinds lists every kind in classification priority order.
var AlertKinds = []AlertKind{AlertNewSale, AlertSaleEnded, AlertPriceDrop, AlertPriceIncrease}

// Valid reports whether k is one of the known alert kinds.
func (k AlertKind) Valid() bool {
	switch k {
	case AlertNewSale, AlertSaleEnded, AlertPriceDrop, AlertPriceIncrease:
		return true
	}
	return false
}

// ParseAlertKind converts a string into an AlertKind.
func ParseAlertKind(s string) (AlertKind, bool) {
	k := AlertKind(s)
	return k, k.Valid()
}
