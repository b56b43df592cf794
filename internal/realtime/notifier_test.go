package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Windi-Fikriyansyah/gudang_be/internal/cache"
	"github.com/Windi-Fikriyansyah/gudang_be/internal/services/catalog"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func TestHubBroadcastReachesClients(t *testing.T) {
	hub := startHub(t)
	client := &Client{ID: "c1", UserID: uuid.New(), Send: make(chan []byte, 4)}
	hub.RegisterClient(client)

	hub.BroadcastJSON(map[string]string{"type": "ping"})

	select {
	case msg := <-client.Send:
		assert.JSONEq(t, `{"type":"ping"}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("broadcast not delivered")
	}
}

func TestHubSendToUser(t *testing.T) {
	hub := startHub(t)
	target := uuid.New()
	a := &Client{ID: "a", UserID: target, Send: make(chan []byte, 4)}
	b := &Client{ID: "b", UserID: uuid.New(), Send: make(chan []byte, 4)}
	hub.RegisterClient(a)
	hub.RegisterClient(b)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	hub.SendToUser(target, map[string]int{"synced": 3})

	select {
	case msg := <-a.Send:
		assert.JSONEq(t, `{"synced":3}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
	assert.Empty(t, b.Send)

	hub.UnregisterClient(a)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHubStoppedDoesNotBlockClients(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	client := &Client{ID: "c1", UserID: uuid.New(), Send: make(chan []byte, 1)}
	hub.RegisterClient(client)
	cancel()
	<-stopped

	done := make(chan struct{})
	go func() {
		hub.UnregisterClient(client)
		late := &Client{ID: "c2", UserID: uuid.New(), Send: make(chan []byte, 1)}
		hub.RegisterClient(late)
		_, open := <-late.Send
		assert.False(t, open)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("register/unregister blocked after hub stopped")
	}

	_, open := <-client.Send
	assert.False(t, open)
	assert.Zero(t, hub.ClientCount())
}

func TestViewNotifierInvalidatesPublishesAndBroadcasts(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	views := cache.NewViewCache(rdb, time.Minute)
	require.NoError(t, views.Set(ctx, "products", 0, map[string]int{"page": 1}, []int{1}))
	require.NoError(t, views.Set(ctx, "purchased", 0, map[string]int{"page": 1}, []int{2}))

	sub := rdb.Subscribe(ctx, ViewsChannel)
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	hub := startHub(t)
	client := &Client{ID: "ws", UserID: uuid.New(), Send: make(chan []byte, 4)}
	hub.RegisterClient(client)

	remoteID := int64(42)
	n := NewViewNotifier(views, rdb, hub, zap.NewNop())
	n.ViewsStale(ctx, catalog.StaleViews{
		Views:    []catalog.ViewKey{catalog.ViewProducts, catalog.ViewPurchased},
		Reason:   "purchase-toggle",
		RemoteID: &remoteID,
		At:       time.Now(),
	})

	gen, err := views.Generation(ctx, "products")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)

	var out []int
	hit, err := views.Get(ctx, "products", 0, map[string]int{"page": 1}, &out)
	require.NoError(t, err)
	assert.False(t, hit)

	select {
	case msg := <-sub.Channel():
		var ev catalog.StaleViews
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		assert.Equal(t, "purchase-toggle", ev.Reason)
		require.NotNil(t, ev.RemoteID)
		assert.Equal(t, int64(42), *ev.RemoteID)
	case <-time.After(2 * time.Second):
		t.Fatal("no publish on " + ViewsChannel)
	}

	select {
	case msg := <-client.Send:
		assert.Contains(t, string(msg), `"type":"views_stale"`)
	case <-time.After(time.Second):
		t.Fatal("no websocket broadcast")
	}
}
