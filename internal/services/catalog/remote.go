package catalog

import (
	"context"

	"github.com/Windi-Fikriyansyah/gudang_be/internal/services/woocommerce"
)

// RemoteCatalog is the read side used by the reconciler.
type RemoteCatalog interface {
	FetchAllProducts(ctx context.Context) ([]woocommerce.Product, error)
	FetchVariations(ctx context.Context, productID int64) ([]woocommerce.Product, error)
	FetchProduct(ctx context.Context, id int64) (*woocommerce.Product, error)
	FetchVariation(ctx context.Context, parentID, id int64) (*woocommerce.Product, error)
}

type RemoteSearcher interface {
	SearchProducts(ctx context.Context, query string, page, perPage int) (*woocommerce.ProductPage, error)
	SearchBySKU(ctx context.Context, sku string, perPage int) ([]woocommerce.Product, error)
}

type RemoteWriter interface {
	CreateProduct(ctx context.Context, in woocommerce.CreateProductRequest) (*woocommerce.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	DeleteVariation(ctx context.Context, parentID, id int64) error
	ListCategories(ctx context.Context) ([]woocommerce.Category, error)
}

// Remote is everything *woocommerce.WooService offers.
type Remote interface {
	RemoteCatalog
	RemoteSearcher
	RemoteWriter
}
