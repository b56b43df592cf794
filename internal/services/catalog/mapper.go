package catalog

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/Windi-Fikriyansyah/gudang_be/internal/models"
	"github.com/Windi-Fikriyansyah/gudang_be/internal/services/woocommerce"
)

// itemFromRemote maps a remote product or variation onto a catalog row.
// parentID is non-nil when the record came from a variations listing.
func itemFromRemote(p woocommerce.Product, parentID *int64) (*models.CatalogItem, error) {
	if p.ID <= 0 {
		return nil, fmt.Errorf("catalog: remote record without id")
	}

	kind := models.KindSimple
	switch {
	case parentID != nil:
		kind = models.KindVariation
	case p.Type == "variation" && p.ParentID > 0:
		kind = models.KindVariation
		pid := p.ParentID
		parentID = &pid
	case p.Type == "variable":
		kind = models.KindVariable
	}

	images, err := encodeList(p.AllImages())
	if err != nil {
		return nil, fmt.Errorf("catalog: encode images of %d: %w", p.ID, err)
	}
	categories, err := encodeList(p.Categories)
	if err != nil {
		return nil, fmt.Errorf("catalog: encode categories of %d: %w", p.ID, err)
	}
	attributes, err := encodeList(p.Attributes)
	if err != nil {
		return nil, fmt.Errorf("catalog: encode attributes of %d: %w", p.ID, err)
	}

	item := &models.CatalogItem{
		RemoteID:       p.ID,
		ParentRemoteID: parentID,
		Kind:           kind,
		Name:           p.Name,
		Slug:           p.Slug,
		SKU:            p.SKU,
		Status:         p.Status,
		StockStatus:    p.StockStatus,
		StockQuantity:  int(p.StockQuantity),
		Price:          p.Price.Decimal,
		RegularPrice:   p.RegularPrice.Decimal,
		SalePrice:      p.SalePrice.Decimal,
		Weight:         p.Weight.Decimal,
		Images:         images,
		Categories:     categories,
		Attributes:     attributes,
	}
	if code, ok := p.Barcode(); ok {
		item.Barcode = &code
	}
	return item, nil
}

func encodeList[T any](v []T) (datatypes.JSON, error) {
	if len(v) == 0 {
		return datatypes.JSON("[]"), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// decodeList reads a stored JSON array. A corrupt blob yields an empty list and a log line.
func decodeList[T any](raw datatypes.JSON, field string, remoteID int64, log *zap.Logger) []T {
	out := []T{}
	if len(raw) == 0 || string(raw) == "null" {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		log.Warn("corrupt stored json",
			zap.String("field", field),
			zap.Int64("remote_id", remoteID),
			zap.Error(err),
		)
		return []T{}
	}
	if out == nil {
		out = []T{}
	}
	return out
}
