package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Windi-Fikriyansyah/gudang_be/internal/models"
	"github.com/Windi-Fikriyansyah/gudang_be/internal/services/woocommerce"
)

var ErrInvalidInput = errors.New("catalog: invalid input")

// RenderCache stores list renderings per view, generation and query parameters.
// Invalidating a view bumps its generation, so entries written for an older one are never read.
type RenderCache interface {
	Generation(ctx context.Context, view string) (int64, error)
	Get(ctx context.Context, view string, gen int64, params any, dst any) (bool, error)
	Set(ctx context.Context, view string, gen int64, params any, value any) error
}

// ItemView is a catalog row with its JSON blobs decoded.
type ItemView struct {
	models.CatalogItem
	Images     []woocommerce.Image     `json:"images"`
	Categories []woocommerce.Category  `json:"categories"`
	Attributes []woocommerce.Attribute `json:"attributes"`
}

type ListView struct {
	Items      []ItemView `json:"items"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	TotalPages int        `json:"total_pages"`
}

type CreateProductInput struct {
	Name          string          `json:"name"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	SKU           string          `json:"sku"`
	Barcode       string          `json:"barcode"`
	Description   string          `json:"description"`
	RegularPrice  decimal.Decimal `json:"regular_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	Weight        decimal.Decimal `json:"weight"`
	StockQuantity *int            `json:"stock_quantity"`
	CategoryIDs   []int64         `json:"category_ids"`
	// URL gambar yang sudah diupload sebelumnya, diteruskan apa adanya
	ImageURLs  []string `json:"image_urls"`
	StoreName  *string  `json:"store_name"`
	Keterangan *string  `json:"keterangan"`
}

type Notes struct {
	StoreName  *string `json:"store_name"`
	Keterangan *string `json:"keterangan"`
}

type ProductService struct {
	store    Store
	remote   RemoteWriter
	cache    RenderCache
	notifier Notifier
	log      *zap.Logger
	lowStock int
}

func NewProductService(store Store, remote RemoteWriter, cache RenderCache, notifier Notifier, log *zap.Logger, lowStockThreshold int) *ProductService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ProductService{
		store:    store,
		remote:   remote,
		cache:    cache,
		notifier: notifier,
		log:      log.Named("catalog.product"),
		lowStock: lowStockThreshold,
	}
}

func (s *ProductService) View(item models.CatalogItem) ItemView {
	return ItemView{
		CatalogItem: item,
		Images:      decodeList[woocommerce.Image](item.Images, "images", item.RemoteID, s.log),
		Categories:  decodeList[woocommerce.Category](item.Categories, "categories", item.RemoteID, s.log),
		Attributes:  decodeList[woocommerce.Attribute](item.Attributes, "attributes", item.RemoteID, s.log),
	}
}

func (s *ProductService) Get(ctx context.Context, remoteID int64) (*ItemView, error) {
	item, err := s.store.FindByRemoteID(ctx, remoteID)
	if err != nil {
		return nil, err
	}
	v := s.View(*item)
	return &v, nil
}

// List serves a list view, from the render cache when it holds one.
func (s *ProductService) List(ctx context.Context, f ListFilter) (*ListView, error) {
	f.normalize()
	f.LowStockThreshold = s.lowStock

	// generasi dibaca sebelum query; Set yang telat jatuh ke generasi lama
	useCache := s.cache != nil
	var gen int64
	if useCache {
		var err error
		if gen, err = s.cache.Generation(ctx, string(f.View)); err != nil {
			s.log.Warn("view cache generation failed", zap.String("view", string(f.View)), zap.Error(err))
			useCache = false
		}
	}
	if useCache {
		var cached ListView
		hit, err := s.cache.Get(ctx, string(f.View), gen, f, &cached)
		if err != nil {
			s.log.Warn("view cache read failed", zap.String("view", string(f.View)), zap.Error(err))
		}
		if hit {
			return &cached, nil
		}
	}

	page, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}

	out := &ListView{
		Items: make([]ItemView, 0, len(page.Items)),
		Total: page.Total,
		Page:  f.Page,
		Limit: f.Limit,
	}
	out.TotalPages = int((page.Total + int64(f.Limit) - 1) / int64(f.Limit))
	for _, item := range page.Items {
		out.Items = append(out.Items, s.View(item))
	}

	if useCache {
		if err := s.cache.Set(ctx, string(f.View), gen, f, out); err != nil {
			s.log.Warn("view cache write failed", zap.String("view", string(f.View)), zap.Error(err))
		}
	}
	return out, nil
}

// Create creates the product in WooCommerce and mirrors the answer locally.
func (s *ProductService) Create(ctx context.Context, in CreateProductInput) (*ItemView, error) {
	if s.remote == nil {
		return nil, woocommerce.ErrMissingCredentials
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if in.Type == "" {
		in.Type = string(models.KindSimple)
	}
	if in.Type != string(models.KindSimple) && in.Type != string(models.KindVariable) {
		return nil, fmt.Errorf("%w: unsupported type %q", ErrInvalidInput, in.Type)
	}
	if in.Status == "" {
		in.Status = "publish"
	}

	req := woocommerce.CreateProductRequest{
		Name:          in.Name,
		Type:          in.Type,
		Status:        in.Status,
		SKU:           strings.TrimSpace(in.SKU),
		RegularPrice:  amountString(in.RegularPrice),
		SalePrice:     amountString(in.SalePrice),
		Weight:        amountString(in.Weight),
		Description:   in.Description,
		ManageStock:   in.StockQuantity != nil,
		StockQuantity: in.StockQuantity,
	}
	for _, id := range in.CategoryIDs {
		req.Categories = append(req.Categories, woocommerce.CategoryRef{ID: id})
	}
	for _, u := range in.ImageURLs {
		if u = strings.TrimSpace(u); u != "" {
			req.Images = append(req.Images, woocommerce.ImageRef{Src: u})
		}
	}
	if code := strings.TrimSpace(in.Barcode); code != "" {
		req.MetaData = append(req.MetaData, woocommerce.MetaDataRequest{
			Key:   woocommerce.BarcodeMetaKeys[0],
			Value: code,
		})
	}

	created, err := s.remote.CreateProduct(ctx, req)
	if err != nil {
		return nil, err
	}

	item, err := itemFromRemote(*created, nil)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpsertItem(ctx, item); err != nil {
		return nil, fmt.Errorf("catalog: store created product %d: %w", created.ID, err)
	}

	notes := Notes{StoreName: in.StoreName, Keterangan: in.Keterangan}
	if fields := notes.fields(); len(fields) > 0 {
		if _, err := s.store.UpdateFields(ctx, created.ID, fields); err != nil {
			s.log.Warn("store notes of created product failed", zap.Int64("remote_id", created.ID), zap.Error(err))
		}
	}

	s.log.Info("product created", zap.Int64("remote_id", created.ID), zap.String("name", created.Name))
	remoteID := created.ID
	s.notifier.ViewsStale(ctx, staleAll("create", &remoteID))
	return s.Get(ctx, created.ID)
}

// Delete removes the item remotely, then locally. A remote 404 still removes the local row.
func (s *ProductService) Delete(ctx context.Context, remoteID int64) error {
	if s.remote == nil {
		return woocommerce.ErrMissingCredentials
	}
	item, err := s.store.FindByRemoteID(ctx, remoteID)
	if err != nil {
		return err
	}

	if item.Kind == models.KindVariation && item.ParentRemoteID != nil {
		err = s.remote.DeleteVariation(ctx, *item.ParentRemoteID, remoteID)
	} else {
		err = s.remote.DeleteProduct(ctx, remoteID)
	}
	if err != nil && !errors.Is(err, woocommerce.ErrNotFound) {
		return err
	}

	n, err := s.store.DeleteByRemoteID(ctx, remoteID)
	if err != nil {
		return err
	}
	s.log.Info("product deleted", zap.Int64("remote_id", remoteID), zap.Int64("rows", n))
	s.notifier.ViewsStale(ctx, staleAll("delete", &remoteID))
	return nil
}

func (n Notes) fields() map[string]any {
	f := map[string]any{}
	if n.StoreName != nil {
		f["store_name"] = strings.TrimSpace(*n.StoreName)
	}
	if n.Keterangan != nil {
		f["keterangan"] = strings.TrimSpace(*n.Keterangan)
	}
	return f
}

func (s *ProductService) UpdateNotes(ctx context.Context, remoteID int64, notes Notes) (*ItemView, error) {
	fields := notes.fields()
	if len(fields) == 0 {
		return nil, ErrEmptyUpdate
	}
	item, err := s.store.UpdateFields(ctx, remoteID, fields)
	if err != nil {
		return nil, err
	}
	s.notifier.ViewsStale(ctx, staleAll("notes", &remoteID))
	v := s.View(*item)
	return &v, nil
}

func (s *ProductService) Categories(ctx context.Context) ([]woocommerce.Category, error) {
	if s.remote == nil {
		return nil, woocommerce.ErrMissingCredentials
	}
	return s.remote.ListCategories(ctx)
}

func amountString(d decimal.Decimal) string {
	if d.IsZero() || d.IsNegative() {
		return ""
	}
	return d.String()
}
