package catalog

import (
	"context"
	"time"
)

// ViewKey names a cached list rendering.
type ViewKey string

const (
	ViewProducts  ViewKey = "products"
	ViewLowStock  ViewKey = "low-stock"
	ViewPurchased ViewKey = "purchased"
)

// AllViews is every list view a catalog mutation can make stale.
var AllViews = []ViewKey{ViewProducts, ViewLowStock, ViewPurchased}

// ParseView maps the ?view= query value; unknown values fall back to all products.
func ParseView(s string) ViewKey {
	switch s {
	case "low-stock", "low_stock", "lowstock":
		return ViewLowStock
	case "purchased":
		return ViewPurchased
	default:
		return ViewProducts
	}
}

// StaleViews is emitted after every mutation of catalog rows.
type StaleViews struct {
	Views    []ViewKey `json:"views"`
	Reason   string    `json:"reason"`
	RemoteID *int64    `json:"remote_id,omitempty"`
	At       time.Time `json:"at"`
}

// Notifier receives stale-view events. Delivery is fire-and-forget.
type Notifier interface {
	ViewsStale(ctx context.Context, ev StaleViews)
}

type nopNotifier struct{}

func (nopNotifier) ViewsStale(context.Context, StaleViews) {}

func staleAll(reason string, remoteID *int64) StaleViews {
	views := make([]ViewKey, len(AllViews))
	copy(views, AllViews)
	return StaleViews{Views: views, Reason: reason, RemoteID: remoteID, At: time.Now()}
}
