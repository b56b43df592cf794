package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Windi-Fikriyansyah/gudang_be/internal/models"
	"github.com/Windi-Fikriyansyah/gudang_be/internal/services/woocommerce"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.CatalogItem{}, &models.SyncRun{}))
	return NewGormStore(db)
}

func simpleProduct(id int64, name, sku string) woocommerce.Product {
	return woocommerce.Product{
		ID:           id,
		Name:         name,
		SKU:          sku,
		Type:         "simple",
		Status:       "publish",
		StockStatus:  "instock",
		Price:        woocommerce.NewAmount("10000"),
		RegularPrice: woocommerce.NewAmount("12000"),
	}
}

func seedItem(t *testing.T, store *GormStore, id int64) {
	t.Helper()
	item, err := itemFromRemote(simpleProduct(id, fmt.Sprintf("Produk %d", id), fmt.Sprintf("SKU-%d", id)), nil)
	require.NoError(t, err)
	require.NoError(t, store.UpsertItem(context.Background(), item))
}

type fakeRemote struct {
	products   []woocommerce.Product
	variations map[int64][]woocommerce.Product
	single     map[int64]*woocommerce.Product
	fetchErr   error
	varErr     map[int64]error
	singleErr  error

	textPage  *woocommerce.ProductPage
	skuHits   []woocommerce.Product
	searchErr error
	skuErr    error

	textCalls int32
	skuCalls  int32
	varCalls  int32
}

func (f *fakeRemote) FetchAllProducts(ctx context.Context) ([]woocommerce.Product, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.products, nil
}

func (f *fakeRemote) FetchVariations(ctx context.Context, productID int64) ([]woocommerce.Product, error) {
	atomic.AddInt32(&f.varCalls, 1)
	if err := f.varErr[productID]; err != nil {
		return nil, err
	}
	return f.variations[productID], nil
}

func (f *fakeRemote) FetchProduct(ctx context.Context, id int64) (*woocommerce.Product, error) {
	if f.singleErr != nil {
		return nil, f.singleErr
	}
	p, ok := f.single[id]
	if !ok {
		return nil, woocommerce.ErrNotFound
	}
	return p, nil
}

func (f *fakeRemote) FetchVariation(ctx context.Context, parentID, id int64) (*woocommerce.Product, error) {
	return f.FetchProduct(ctx, id)
}

func (f *fakeRemote) SearchProducts(ctx context.Context, query string, page, perPage int) (*woocommerce.ProductPage, error) {
	atomic.AddInt32(&f.textCalls, 1)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if f.textPage == nil {
		return &woocommerce.ProductPage{}, nil
	}
	return f.textPage, nil
}

func (f *fakeRemote) SearchBySKU(ctx context.Context, sku string, perPage int) ([]woocommerce.Product, error) {
	atomic.AddInt32(&f.skuCalls, 1)
	if f.skuErr != nil {
		return nil, f.skuErr
	}
	return f.skuHits, nil
}

// failingStore fails the upsert of selected remote ids.
type failingStore struct {
	*GormStore
	failIDs map[int64]bool
}

func (s *failingStore) UpsertItem(ctx context.Context, item *models.CatalogItem) error {
	if s.failIDs[item.RemoteID] {
		return errors.New("constraint violation")
	}
	return s.GormStore.UpsertItem(ctx, item)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []StaleViews
}

func (n *recordingNotifier) ViewsStale(ctx context.Context, ev StaleViews) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func (n *recordingNotifier) last() StaleViews {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.events[len(n.events)-1]
}
