package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductVariant is the sellable catalog row orders snapshot their lines from.
type ProductVariant struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ShopID      uuid.UUID `gorm:"column:shop_id;type:uuid;not null;index"`
	ProductName string    `gorm:"column:product_name;not null"`
	VariantName string    `gorm:"column:variant_name"`
	PriceCents  int       `gorm:"column:price_cents;not null"`
	WeightGrams int       `gorm:"column:weight_grams;not null;default:0"`
	IsActive    bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
