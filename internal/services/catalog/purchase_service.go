package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Windi-Fikriyansyah/gudang_be/internal/models"
)

var ErrEmptyUpdate = errors.New("catalog: nothing to update")

// PurchaseData is optional procurement metadata. Nil fields are left as they are.
type PurchaseData struct {
	Package  *int             `json:"purchase_package"`
	Qty      *int             `json:"purchase_qty"`
	Price    *decimal.Decimal `json:"purchase_price"`
	Currency *string          `json:"purchase_currency"`
}

func (d *PurchaseData) fields() map[string]any {
	f := map[string]any{}
	if d == nil {
		return f
	}
	if d.Package != nil {
		f["purchase_package"] = *d.Package
	}
	if d.Qty != nil {
		f["purchase_qty"] = *d.Qty
	}
	if d.Price != nil {
		f["purchase_price"] = *d.Price
	}
	if d.Currency != nil {
		f["purchase_currency"] = *d.Currency
	}
	return f
}

type PurchaseService struct {
	store    Store
	notifier Notifier
	log      *zap.Logger
}

func NewPurchaseService(store Store, notifier Notifier, log *zap.Logger) *PurchaseService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PurchaseService{store: store, notifier: notifier, log: log.Named("catalog.purchase")}
}

const toggleAttempts = 3

// Toggle flips the purchased flag of one row. Becoming purchased stamps purchased_at and
// stores any given metadata; becoming unpurchased clears purchased_at only.
// The write only lands if the flag still holds the value that was read; a concurrent
// toggle makes it re-read and flip again, so every request counts as one flip.
func (s *PurchaseService) Toggle(ctx context.Context, remoteID int64, data *PurchaseData) (*models.CatalogItem, error) {
	var (
		updated *models.CatalogItem
		err     error
	)
	for attempt := 1; attempt <= toggleAttempts; attempt++ {
		updated, err = s.toggleOnce(ctx, remoteID, data)
		if !errors.Is(err, ErrConflict) {
			break
		}
		s.log.Debug("purchase toggle conflict, retrying", zap.Int64("remote_id", remoteID), zap.Int("attempt", attempt))
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("purchase toggled",
		zap.Int64("remote_id", remoteID),
		zap.Bool("purchased", updated.Purchased),
	)
	s.notifier.ViewsStale(ctx, staleAll("purchase-toggle", &remoteID))
	return updated, nil
}

func (s *PurchaseService) toggleOnce(ctx context.Context, remoteID int64, data *PurchaseData) (*models.CatalogItem, error) {
	item, err := s.store.FindByRemoteID(ctx, remoteID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var fields map[string]any
	if item.Purchased {
		fields = map[string]any{"purchased": false, "purchased_at": nil}
	} else {
		fields = data.fields()
		fields["purchased"] = true
		fields["purchased_at"] = now
	}
	fields["updated_at"] = now

	return s.store.UpdateFieldsIf(ctx, remoteID, map[string]any{"purchased": item.Purchased}, fields)
}

// UpdatePurchaseData edits procurement metadata without touching the purchased flag.
func (s *PurchaseService) UpdatePurchaseData(ctx context.Context, remoteID int64, data PurchaseData) (*models.CatalogItem, error) {
	fields := data.fields()
	if len(fields) == 0 {
		return nil, ErrEmptyUpdate
	}

	updated, err := s.store.UpdateFields(ctx, remoteID, fields)
	if err != nil {
		return nil, err
	}
	s.notifier.ViewsStale(ctx, staleAll("purchase-data", &remoteID))
	return updated, nil
}
