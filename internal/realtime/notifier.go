package realtime

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Windi-Fikriyansyah/gudang_be/internal/services/catalog"
)

// ViewsChannel is the Redis channel carrying stale-view events.
const ViewsChannel = "catalog:views"

type ViewInvalidator interface {
	Invalidate(ctx context.Context, views ...string) (int, error)
}

// ViewNotifier turns a stale-view event into: cache eviction, a Redis publish
// and a WebSocket broadcast. Every step is best effort.
type ViewNotifier struct {
	Cache ViewInvalidator
	RDB   *redis.Client
	Hub   *Hub
	log   *zap.Logger
}

func NewViewNotifier(cache ViewInvalidator, rdb *redis.Client, hub *Hub, log *zap.Logger) *ViewNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &ViewNotifier{Cache: cache, RDB: rdb, Hub: hub, log: log.Named("views")}
}

func (n *ViewNotifier) ViewsStale(ctx context.Context, ev catalog.StaleViews) {
	// jangan ikut batal kalau request sudah selesai
	ctx = context.WithoutCancel(ctx)

	views := make([]string, 0, len(ev.Views))
	for _, v := range ev.Views {
		views = append(views, string(v))
	}

	if n.Cache != nil {
		if _, err := n.Cache.Invalidate(ctx, views...); err != nil {
			n.log.Warn("invalidate view cache", zap.Strings("views", views), zap.Error(err))
		}
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		n.log.Error("marshal stale views", zap.Error(err))
		return
	}

	if n.RDB != nil {
		if err := n.RDB.Publish(ctx, ViewsChannel, payload).Err(); err != nil {
			n.log.Warn("publish stale views", zap.Error(err))
		}
	}

	if n.Hub != nil {
		n.Hub.BroadcastJSON(map[string]any{
			"type":  "views_stale",
			"event": ev,
		})
	}
}
