package catalog

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Windi-Fikriyansyah/gudang_be/internal/services/woocommerce"
)

const DefaultSearchPageSize = 20

type SearchResult struct {
	Items      []woocommerce.Product `json:"items"`
	TotalItems int                   `json:"total_items"`
	TotalPages int                   `json:"total_pages"`
	Page       int                   `json:"page"`
}

func emptySearch(page int) SearchResult {
	return SearchResult{Items: []woocommerce.Product{}, Page: page}
}

type SearchService struct {
	remote   RemoteSearcher
	log      *zap.Logger
	pageSize int
}

func NewSearchService(remote RemoteSearcher, log *zap.Logger, pageSize int) *SearchService {
	if log == nil {
		log = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = DefaultSearchPageSize
	}
	return &SearchService{remote: remote, log: log.Named("catalog.search"), pageSize: pageSize}
}

// Search queries WooCommerce by text, plus by SKU on the first page, and ranks the merge.
// Failures are logged and produce an empty result.
func (s *SearchService) Search(ctx context.Context, query string, page int) SearchResult {
	if page < 1 {
		page = 1
	}
	q := strings.TrimSpace(query)
	if q == "" {
		return emptySearch(page)
	}
	if s.remote == nil {
		s.log.Warn("search without woocommerce configuration")
		return emptySearch(page)
	}

	var (
		text    *woocommerce.ProductPage
		skuHits []woocommerce.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		text, err = s.remote.SearchProducts(gctx, q, page, s.pageSize)
		return err
	})
	if page == 1 {
		g.Go(func() error {
			var err error
			skuHits, err = s.remote.SearchBySKU(gctx, q, s.pageSize)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Warn("search failed", zap.String("query", q), zap.Int("page", page), zap.Error(err))
		return emptySearch(page)
	}

	items := mergeHits(skuHits, text.Items)
	RankProducts(items, q)

	return SearchResult{
		Items:      items,
		TotalItems: text.Total,
		TotalPages: text.TotalPages,
		Page:       page,
	}
}

// mergeHits prepends SKU hits that the text search did not already return.
func mergeHits(skuHits, textHits []woocommerce.Product) []woocommerce.Product {
	inText := make(map[int64]struct{}, len(textHits))
	for _, p := range textHits {
		inText[p.ID] = struct{}{}
	}

	out := make([]woocommerce.Product, 0, len(skuHits)+len(textHits))
	added := make(map[int64]struct{}, len(skuHits))
	for _, p := range skuHits {
		if _, ok := inText[p.ID]; ok {
			continue
		}
		if _, ok := added[p.ID]; ok {
			continue
		}
		added[p.ID] = struct{}{}
		out = append(out, p)
	}
	return append(out, textHits...)
}

// RankProducts orders items in place: SKU prefix, then name prefix, then name contains,
// then name. All comparisons ignore case; equal items keep their order.
func RankProducts(items []woocommerce.Product, query string) {
	q := strings.ToLower(strings.TrimSpace(query))

	type key struct {
		skuPrefix, namePrefix, nameContains bool
		name                                string
	}
	keys := make([]key, len(items))
	keyOf := func(p woocommerce.Product) key {
		name := strings.ToLower(p.Name)
		return key{
			skuPrefix:    strings.HasPrefix(strings.ToLower(p.SKU), q),
			namePrefix:   strings.HasPrefix(name, q),
			nameContains: strings.Contains(name, q),
			name:         name,
		}
	}

	idx := make([]int, len(items))
	for i := range items {
		idx[i] = i
		keys[i] = keyOf(items[i])
	}

	sort.SliceStable(idx, func(i, j int) bool {
		a, b := keys[idx[i]], keys[idx[j]]
		if a.skuPrefix != b.skuPrefix {
			return a.skuPrefix
		}
		if a.namePrefix != b.namePrefix {
			return a.namePrefix
		}
		if a.nameContains != b.nameContains {
			return a.nameContains
		}
		return a.name < b.name
	})

	sorted := make([]woocommerce.Product, len(items))
	for i, k := range idx {
		sorted[i] = items[k]
	}
	copy(items, sorted)
}
