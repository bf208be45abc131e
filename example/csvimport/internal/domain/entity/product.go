// Package entity defines the persistence model of the csvimport example.
package entity

import "time"

// Product is one row of the product catalog the import targets.
type Product struct {
	SKU       string    `gorm:"column:sku;primaryKey"`
	Name      string    `gorm:"column:name"`
	Price     float64   `gorm:"column:price"`
	Stock     int       `gorm:"column:stock"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName returns the table the writer upserts into.
func (Product) TableName() string {
	return "products"
}
