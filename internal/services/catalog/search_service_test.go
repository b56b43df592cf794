package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Windi-Fikriyansyah/gudang_be/internal/services/woocommerce"
)

func names(items []woocommerce.Product) []string {
	out := make([]string, 0, len(items))
	for _, p := range items {
		out = append(out, p.Name)
	}
	return out
}

func TestRankProductsPrecedence(t *testing.T) {
	items := []woocommerce.Product{
		{ID: 3, Name: "widget abc", SKU: "yyy"},
		{ID: 2, Name: "abc widget", SKU: "zzz"},
		{ID: 1, Name: "xyz", SKU: "abc123"},
	}
	RankProducts(items, "abc")
	assert.Equal(t, []string{"xyz", "abc widget", "widget abc"}, names(items))
}

func TestRankProductsCaseInsensitive(t *testing.T) {
	items := []woocommerce.Product{
		{ID: 1, Name: "Teh Manis", SKU: "TM-1"},
		{ID: 2, Name: "es TEH", SKU: "ET-1"},
		{ID: 3, Name: "Kopi", SKU: "teh-01"},
		{ID: 4, Name: "TEH tawar", SKU: "TT-1"},
	}
	RankProducts(items, "TeH")
	assert.Equal(t, []string{"Kopi", "Teh Manis", "TEH tawar", "es TEH"}, names(items))
}

func TestRankProductsNameTiebreak(t *testing.T) {
	items := []woocommerce.Product{
		{ID: 1, Name: "Gula Pasir"},
		{ID: 2, Name: "beras"},
		{ID: 3, Name: "Air"},
	}
	RankProducts(items, "zzz")
	assert.Equal(t, []string{"Air", "beras", "Gula Pasir"}, names(items))
}

func TestSearchEmptyQueryMakesNoCall(t *testing.T) {
	remote := &fakeRemote{}
	svc := NewSearchService(remote, zap.NewNop(), 0)

	res := svc.Search(context.Background(), "   ", 1)
	assert.Empty(t, res.Items)
	assert.NotNil(t, res.Items)
	assert.Zero(t, res.TotalItems)
	assert.Zero(t, res.TotalPages)
	assert.Zero(t, remote.textCalls)
	assert.Zero(t, remote.skuCalls)
}

func TestSearchFirstPageMergesSKUHits(t *testing.T) {
	remote := &fakeRemote{
		textPage: &woocommerce.ProductPage{
			Items: []woocommerce.Product{
				{ID: 2, Name: "abc widget", SKU: "zzz"},
				{ID: 3, Name: "widget abc", SKU: "yyy"},
			},
			Total:      2,
			TotalPages: 1,
		},
		skuHits: []woocommerce.Product{
			{ID: 1, Name: "xyz", SKU: "abc123"},
			{ID: 2, Name: "abc widget", SKU: "zzz"},
		},
	}
	svc := NewSearchService(remote, zap.NewNop(), 20)

	res := svc.Search(context.Background(), "abc", 1)
	require.Len(t, res.Items, 3)
	assert.Equal(t, []string{"xyz", "abc widget", "widget abc"}, names(res.Items))
	assert.Equal(t, 2, res.TotalItems)
	assert.Equal(t, 1, res.TotalPages)
	assert.EqualValues(t, 1, remote.textCalls)
	assert.EqualValues(t, 1, remote.skuCalls)
}

func TestSearchLaterPagesSkipSKU(t *testing.T) {
	remote := &fakeRemote{
		textPage: &woocommerce.ProductPage{
			Items:      []woocommerce.Product{{ID: 9, Name: "abc lagi"}},
			Total:      21,
			TotalPages: 2,
		},
		skuHits: []woocommerce.Product{{ID: 1, Name: "xyz", SKU: "abc123"}},
	}
	svc := NewSearchService(remote, zap.NewNop(), 20)

	res := svc.Search(context.Background(), "abc", 2)
	require.Len(t, res.Items, 1)
	assert.Equal(t, 2, res.Page)
	assert.Zero(t, remote.skuCalls)
	assert.EqualValues(t, 1, remote.textCalls)
}

func TestSearchFailureYieldsEmpty(t *testing.T) {
	remote := &fakeRemote{
		textPage: &woocommerce.ProductPage{Items: []woocommerce.Product{{ID: 1, Name: "abc"}}, Total: 1, TotalPages: 1},
		skuErr:   errors.New("connection reset"),
	}
	svc := NewSearchService(remote, zap.NewNop(), 20)

	res := svc.Search(context.Background(), "abc", 1)
	assert.Empty(t, res.Items)
	assert.Zero(t, res.TotalItems)
	assert.Zero(t, res.TotalPages)
}

func TestSearchWithoutRemote(t *testing.T) {
	res := NewSearchService(nil, zap.NewNop(), 20).Search(context.Background(), "abc", 1)
	assert.Empty(t, res.Items)
}
