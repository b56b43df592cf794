package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/datatypes"

	"github.com/Windi-Fikriyansyah/gudang_be/internal/models"
	"github.com/Windi-Fikriyansyah/gudang_be/internal/services/woocommerce"
)

type fakeWriter struct {
	created   []woocommerce.CreateProductRequest
	deleted   []int64
	deletedV  [][2]int64
	deleteErr error
	nextID    int64
}

func (f *fakeWriter) CreateProduct(ctx context.Context, in woocommerce.CreateProductRequest) (*woocommerce.Product, error) {
	f.created = append(f.created, in)
	f.nextID++
	p := &woocommerce.Product{
		ID:           f.nextID,
		Name:         in.Name,
		Type:         in.Type,
		SKU:          in.SKU,
		RegularPrice: woocommerce.NewAmount(in.RegularPrice),
		Price:        woocommerce.NewAmount(in.RegularPrice),
	}
	for _, img := range in.Images {
		p.Images = append(p.Images, woocommerce.Image{Src: img.Src})
	}
	for _, m := range in.MetaData {
		raw, _ := json.Marshal(m.Value)
		p.MetaData = append(p.MetaData, woocommerce.MetaData{Key: m.Key, Value: raw})
	}
	return p, nil
}

func (f *fakeWriter) DeleteProduct(ctx context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func (f *fakeWriter) DeleteVariation(ctx context.Context, parentID, id int64) error {
	f.deletedV = append(f.deletedV, [2]int64{parentID, id})
	return f.deleteErr
}

func (f *fakeWriter) ListCategories(ctx context.Context) ([]woocommerce.Category, error) {
	return []woocommerce.Category{{ID: 1, Name: "Sembako"}}, nil
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	gens map[string]int64
	gets int
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string][]byte{}, gens: map[string]int64{}}
}

func (m *mapCache) key(view string, gen int64, params any) string {
	b, _ := json.Marshal(params)
	return fmt.Sprintf("%s:%d:%s", view, gen, b)
}

func (m *mapCache) Generation(ctx context.Context, view string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gens[view], nil
}

func (m *mapCache) Get(ctx context.Context, view string, gen int64, params any, dst any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	raw, ok := m.data[m.key(view, gen, params)]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (m *mapCache) Set(ctx context.Context, view string, gen int64, params any, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[m.key(view, gen, params)] = b
	return nil
}

// ViewsStale makes mapCache a Notifier that invalidates like the realtime one.
func (m *mapCache) ViewsStale(ctx context.Context, ev StaleViews) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range ev.Views {
		m.gens[string(v)]++
		prefix := string(v) + ":"
		for k := range m.data {
			if strings.HasPrefix(k, prefix) {
				delete(m.data, k)
			}
		}
	}
}

// pausingStore holds the first List call after its query until release is closed.
type pausingStore struct {
	*GormStore
	once    sync.Once
	queried chan struct{}
	release chan struct{}
}

func (s *pausingStore) List(ctx context.Context, f ListFilter) (*ListPage, error) {
	page, err := s.GormStore.List(ctx, f)
	s.once.Do(func() {
		close(s.queried)
		<-s.release
	})
	return page, err
}

func TestViewDegradesCorruptJSON(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	svc := NewProductService(nil, nil, nil, nil, zap.New(core), 5)

	v := svc.View(models.CatalogItem{
		RemoteID:   3,
		Images:     datatypes.JSON(`[{"src":"https://img/3.jpg"}]`),
		Categories: datatypes.JSON(`{not json`),
		Attributes: nil,
	})

	require.Len(t, v.Images, 1)
	assert.Equal(t, "https://img/3.jpg", v.Images[0].Src)
	assert.NotNil(t, v.Categories)
	assert.Empty(t, v.Categories)
	assert.NotNil(t, v.Attributes)
	assert.Empty(t, v.Attributes)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "categories", logs.All()[0].ContextMap()["field"])
}

func TestListViews(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	low := simpleProduct(1, "Minyak Goreng", "MG-1")
	low.StockQuantity = 2
	plenty := simpleProduct(2, "Beras Premium", "BR-1")
	plenty.StockQuantity = 80
	bought := simpleProduct(3, "Gula Merah", "GM-1")
	bought.StockQuantity = 1
	parent := simpleProduct(4, "Kaos", "KS")
	parent.Type = "variable"

	for _, p := range []woocommerce.Product{low, plenty, bought, parent} {
		item, err := itemFromRemote(p, nil)
		require.NoError(t, err)
		require.NoError(t, store.UpsertItem(ctx, item))
	}
	_, err := NewPurchaseService(store, nil, nil).Toggle(ctx, 3, nil)
	require.NoError(t, err)
	_, err = store.MarkMissingOne(ctx, 2)
	require.NoError(t, err)

	svc := NewProductService(store, nil, nil, nil, zap.NewNop(), 5)

	all, err := svc.List(ctx, ListFilter{View: ViewProducts})
	require.NoError(t, err)
	assert.EqualValues(t, 4, all.Total)

	lowStock, err := svc.List(ctx, ListFilter{View: ViewLowStock})
	require.NoError(t, err)
	require.Len(t, lowStock.Items, 1)
	assert.Equal(t, int64(1), lowStock.Items[0].RemoteID)

	purchased, err := svc.List(ctx, ListFilter{View: ViewPurchased})
	require.NoError(t, err)
	require.Len(t, purchased.Items, 1)
	assert.Equal(t, int64(3), purchased.Items[0].RemoteID)

	missing := true
	gone, err := svc.List(ctx, ListFilter{View: ViewProducts, Missing: &missing})
	require.NoError(t, err)
	require.Len(t, gone.Items, 1)
	assert.Equal(t, int64(2), gone.Items[0].RemoteID)

	found, err := svc.List(ctx, ListFilter{Query: "gula"})
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "Gula Merah", found.Items[0].Name)
	assert.Equal(t, 1, found.TotalPages)
}

func TestListUsesRenderCache(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedItem(t, store, 1)

	cache := newMapCache()
	svc := NewProductService(store, nil, cache, nil, zap.NewNop(), 5)

	first, err := svc.List(ctx, ListFilter{View: ViewProducts})
	require.NoError(t, err)
	require.Len(t, first.Items, 1)

	// baris baru tidak terlihat selama cache belum diinvalidasi
	seedItem(t, store, 2)
	second, err := svc.List(ctx, ListFilter{View: ViewProducts})
	require.NoError(t, err)
	assert.Len(t, second.Items, 1)
	assert.Equal(t, 2, cache.gets)
}

func TestCreateForwardsImagesAndBarcode(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	writer := &fakeWriter{nextID: 500}
	notifier := &recordingNotifier{}
	svc := NewProductService(store, writer, nil, notifier, zap.NewNop(), 5)

	view, err := svc.Create(ctx, CreateProductInput{
		Name:         "  Sabun Cuci  ",
		SKU:          "SC-01",
		Barcode:      "8991234567890",
		RegularPrice: decimal.NewFromInt(8500),
		ImageURLs:    []string{"https://cdn.example.com/tmp/a.jpg", " "},
		StoreName:    strPtr("Toko Sumber Rejeki"),
	})
	require.NoError(t, err)

	require.Len(t, writer.created, 1)
	req := writer.created[0]
	assert.Equal(t, "Sabun Cuci", req.Name)
	assert.Equal(t, "simple", req.Type)
	assert.Equal(t, "8500", req.RegularPrice)
	require.Len(t, req.Images, 1)
	assert.Equal(t, "https://cdn.example.com/tmp/a.jpg", req.Images[0].Src)
	require.Len(t, req.MetaData, 1)
	assert.Equal(t, "backup_gudang", req.MetaData[0].Key)

	assert.Equal(t, int64(501), view.RemoteID)
	require.NotNil(t, view.Barcode)
	assert.Equal(t, "8991234567890", *view.Barcode)
	require.NotNil(t, view.StoreName)
	assert.Equal(t, "Toko Sumber Rejeki", *view.StoreName)
	require.Len(t, view.Images, 1)
	assert.Equal(t, 1, notifier.count())
}

func TestCreateValidates(t *testing.T) {
	svc := NewProductService(newTestStore(t), &fakeWriter{}, nil, nil, zap.NewNop(), 5)

	_, err := svc.Create(context.Background(), CreateProductInput{Name: " "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(context.Background(), CreateProductInput{Name: "X", Type: "grouped"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewProductService(newTestStore(t), nil, nil, nil, zap.NewNop(), 5).Create(context.Background(), CreateProductInput{Name: "X"})
	assert.ErrorIs(t, err, woocommerce.ErrMissingCredentials)
}

func TestDeleteRemovesParentAndVariations(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	parent := simpleProduct(10, "Kaos", "KS")
	parent.Type = "variable"
	item, err := itemFromRemote(parent, nil)
	require.NoError(t, err)
	require.NoError(t, store.UpsertItem(ctx, item))

	pid := int64(10)
	variation, err := itemFromRemote(woocommerce.Product{ID: 11, Name: "Kaos - M"}, &pid)
	require.NoError(t, err)
	require.NoError(t, store.UpsertItem(ctx, variation))
	seedItem(t, store, 12)

	writer := &fakeWriter{deleteErr: woocommerce.ErrNotFound}
	svc := NewProductService(store, writer, nil, nil, zap.NewNop(), 5)

	require.NoError(t, svc.Delete(ctx, 10))
	assert.Equal(t, []int64{10}, writer.deleted)

	_, err = store.FindByRemoteID(ctx, 10)
	assert.ErrorIs(t, err, ErrItemNotFound)
	_, err = store.FindByRemoteID(ctx, 11)
	assert.ErrorIs(t, err, ErrItemNotFound)
	_, err = store.FindByRemoteID(ctx, 12)
	assert.NoError(t, err)
}

func TestDeleteVariationUsesParent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	pid := int64(20)
	variation, err := itemFromRemote(woocommerce.Product{ID: 21, Name: "Topi - Hitam"}, &pid)
	require.NoError(t, err)
	require.NoError(t, store.UpsertItem(ctx, variation))

	writer := &fakeWriter{}
	require.NoError(t, NewProductService(store, writer, nil, nil, zap.NewNop(), 5).Delete(ctx, 21))
	assert.Equal(t, [][2]int64{{20, 21}}, writer.deletedV)
	assert.Empty(t, writer.deleted)
}

func TestUpdateNotes(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedItem(t, store, 30)

	svc := NewProductService(store, nil, nil, nil, zap.NewNop(), 5)
	v, err := svc.UpdateNotes(ctx, 30, Notes{Keterangan: strPtr(" rak B2 ")})
	require.NoError(t, err)
	require.NotNil(t, v.Keterangan)
	assert.Equal(t, "rak B2", *v.Keterangan)
	assert.Nil(t, v.StoreName)

	_, err = svc.UpdateNotes(ctx, 30, Notes{})
	assert.ErrorIs(t, err, ErrEmptyUpdate)
}

func TestListAfterConcurrentToggleSeesChange(t *testing.T) {
	ctx := context.Background()
	base := newTestStore(t)
	seedItem(t, base, 1)

	cache := newMapCache()
	paused := &pausingStore{GormStore: base, queried: make(chan struct{}), release: make(chan struct{})}
	products := NewProductService(paused, nil, cache, cache, zap.NewNop(), 5)
	purchase := NewPurchaseService(base, cache, zap.NewNop())

	type listResult struct {
		view *ListView
		err  error
	}
	done := make(chan listResult, 1)
	go func() {
		v, err := products.List(ctx, ListFilter{View: ViewPurchased})
		done <- listResult{v, err}
	}()

	<-paused.queried
	_, err := purchase.Toggle(ctx, 1, nil)
	require.NoError(t, err)
	close(paused.release)

	// pembacaan lama selesai setelah invalidasi dan menulis halaman basi ke cache
	old := <-done
	require.NoError(t, old.err)
	assert.Empty(t, old.view.Items)

	fresh, err := products.List(ctx, ListFilter{View: ViewPurchased})
	require.NoError(t, err)
	require.Len(t, fresh.Items, 1)
	assert.Equal(t, int64(1), fresh.Items[0].RemoteID)
}
