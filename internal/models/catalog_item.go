package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type CatalogKind string

const (
	KindSimple    CatalogKind = "simple"
	KindVariable  CatalogKind = "variable"
	KindVariation CatalogKind = "variation"
)

// CatalogItem is one WooCommerce product or variation mirrored locally.
// RemoteID is the reconciliation key; everything under "lokal" is never written by sync.
type CatalogItem struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	RemoteID       int64       `gorm:"uniqueIndex;not null" json:"remote_id"`
	ParentRemoteID *int64      `gorm:"index" json:"parent_remote_id"`
	Kind           CatalogKind `gorm:"type:varchar(20);not null;index" json:"kind"`

	Name        string  `gorm:"not null" json:"name"`
	Slug        string  `json:"slug"`
	SKU         string  `gorm:"index" json:"sku"`
	Barcode     *string `gorm:"type:varchar(100)" json:"barcode"`
	Status      string  `gorm:"type:varchar(20)" json:"status"`
	StockStatus string  `gorm:"type:varchar(20)" json:"stock_status"`

	StockQuantity int             `gorm:"not null" json:"stock_quantity"`
	Price         decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"price"`
	RegularPrice  decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"regular_price"`
	SalePrice     decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"sale_price"`
	Weight        decimal.Decimal `gorm:"type:decimal(10,3);not null" json:"weight"`

	// array JSON mentah dari WooCommerce
	Images     datatypes.JSON `json:"images"`
	Categories datatypes.JSON `json:"categories"`
	Attributes datatypes.JSON `json:"attributes"`

	// lokal: status pembelian
	Purchased        bool             `gorm:"not null;default:false;index" json:"purchased"`
	PurchasedAt      *time.Time       `json:"purchased_at"`
	PurchasePackage  *int             `json:"purchase_package"`
	PurchaseQty      *int             `json:"purchase_qty"`
	PurchasePrice    *decimal.Decimal `gorm:"type:decimal(14,2)" json:"purchase_price"`
	PurchaseCurrency *string          `gorm:"type:varchar(10)" json:"purchase_currency"`

	IsMissingFromWoo bool `gorm:"not null;default:false;index" json:"is_missing_from_woo"`

	// lokal: catatan
	StoreName  *string `json:"store_name"`
	Keterangan *string `gorm:"type:text" json:"keterangan"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RemoteColumns are the columns a sync upsert is allowed to overwrite.
var RemoteColumns = []string{
	"parent_remote_id", "kind", "name", "slug", "sku", "barcode", "status", "stock_status",
	"stock_quantity", "price", "regular_price", "sale_price", "weight",
	"images", "categories", "attributes", "updated_at",
}
