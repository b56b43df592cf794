package woocommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	apiPrefix = "/wp-json/wc/v3"

	DefaultPerPage = 100
	DefaultTimeout = 60 * time.Second

	headerTotal      = "X-WP-Total"
	headerTotalPages = "X-WP-TotalPages"
)

type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Timeout        time.Duration
	PerPage        int
}

type WooService struct {
	Client         *http.Client
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Timeout        time.Duration
	PerPage        int

	log    *zap.Logger
	tracer trace.Tracer
}

// NewWooService validates the credentials once; every call after that can assume them.
func NewWooService(cfg Config, log *zap.Logger) (*WooService, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" || cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = DefaultPerPage
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &WooService{
		Client:         &http.Client{Timeout: cfg.Timeout},
		BaseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		ConsumerKey:    cfg.ConsumerKey,
		ConsumerSecret: cfg.ConsumerSecret,
		Timeout:        cfg.Timeout,
		PerPage:        cfg.PerPage,
		log:            log.Named("woocommerce"),
		tracer:         otel.Tracer("gudang_be/woocommerce"),
	}, nil
}

// FetchAllProducts drains /products page by page. A record that does not decode is
// returned with DecodeErr set instead of failing the whole fetch.
func (s *WooService) FetchAllProducts(ctx context.Context) ([]Product, error) {
	raw, err := s.fetchAll(ctx, "/products", nil)
	if err != nil {
		return nil, err
	}
	return decodeProducts(raw), nil
}

func (s *WooService) FetchVariations(ctx context.Context, productID int64) ([]Product, error) {
	raw, err := s.fetchAll(ctx, fmt.Sprintf("/products/%d/variations", productID), nil)
	if err != nil {
		return nil, err
	}
	return decodeProducts(raw), nil
}

func (s *WooService) ListCategories(ctx context.Context) ([]Category, error) {
	raw, err := s.fetchAll(ctx, "/products/categories", nil)
	if err != nil {
		return nil, err
	}
	cats := make([]Category, 0, len(raw))
	for i, r := range raw {
		var c Category
		if err := json.Unmarshal(r, &c); err != nil {
			s.log.Warn("skip undecodable category", zap.Int("index", i), zap.Error(err))
			continue
		}
		cats = append(cats, c)
	}
	return cats, nil
}

func (s *WooService) FetchProduct(ctx context.Context, id int64) (*Product, error) {
	var p Product
	if _, err := s.do(ctx, http.MethodGet, fmt.Sprintf("/products/%d", id), nil, nil, &p, 0); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *WooService) FetchVariation(ctx context.Context, parentID, id int64) (*Product, error) {
	var p Product
	if _, err := s.do(ctx, http.MethodGet, fmt.Sprintf("/products/%d/variations/%d", parentID, id), nil, nil, &p, 0); err != nil {
		return nil, notFound(err)
	}
	if p.ParentID == 0 {
		p.ParentID = parentID
	}
	return &p, nil
}

// SearchProducts runs the full-text search for one page.
func (s *WooService) SearchProducts(ctx context.Context, query string, page, perPage int) (*ProductPage, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("search", query)
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	var raw []json.RawMessage
	hdr, err := s.do(ctx, http.MethodGet, "/products", q, nil, &raw, page)
	if err != nil {
		return nil, err
	}
	return &ProductPage{
		Items:      s.validProducts(raw),
		Total:      headerInt(hdr, headerTotal),
		TotalPages: headerInt(hdr, headerTotalPages),
	}, nil
}

func (s *WooService) SearchBySKU(ctx context.Context, sku string, perPage int) ([]Product, error) {
	q := url.Values{}
	q.Set("sku", sku)
	q.Set("per_page", strconv.Itoa(perPage))

	var raw []json.RawMessage
	if _, err := s.do(ctx, http.MethodGet, "/products", q, nil, &raw, 0); err != nil {
		return nil, err
	}
	return s.validProducts(raw), nil
}

func (s *WooService) CreateProduct(ctx context.Context, in CreateProductRequest) (*Product, error) {
	var p Product
	if _, err := s.do(ctx, http.MethodPost, "/products", nil, in, &p, 0); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProduct deletes permanently (force=true); variations of a variable product go with it.
func (s *WooService) DeleteProduct(ctx context.Context, id int64) error {
	q := url.Values{"force": {"true"}}
	_, err := s.do(ctx, http.MethodDelete, fmt.Sprintf("/products/%d", id), q, nil, nil, 0)
	return notFound(err)
}

func (s *WooService) DeleteVariation(ctx context.Context, parentID, id int64) error {
	q := url.Values{"force": {"true"}}
	_, err := s.do(ctx, http.MethodDelete, fmt.Sprintf("/products/%d/variations/%d", parentID, id), q, nil, nil, 0)
	return notFound(err)
}

// fetchAll pages through a collection. It stops on an empty page, when X-WP-TotalPages
// is reached, or on a page shorter than PerPage. Any failed page fails the whole fetch.
// Records stay raw so one malformed record cannot sink a page.
func (s *WooService) fetchAll(ctx context.Context, path string, extra url.Values) ([]json.RawMessage, error) {
	var all []json.RawMessage
	for page := 1; ; page++ {
		q := url.Values{}
		for k, v := range extra {
			q[k] = v
		}
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(s.PerPage))

		var items []json.RawMessage
		hdr, err := s.do(ctx, http.MethodGet, path, q, nil, &items, page)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			break
		}
		all = append(all, items...)

		s.log.Debug("fetched page",
			zap.String("path", path),
			zap.Int("page", page),
			zap.Int("items", len(items)),
		)

		if totalPages := headerInt(hdr, headerTotalPages); totalPages > 0 && page >= totalPages {
			break
		}
		if len(items) < s.PerPage {
			break
		}
	}
	return all, nil
}

// productHeader is what we still try to read from a record that does not fit Product.
type productHeader struct {
	ID       int64  `json:"id"`
	ParentID int64  `json:"parent_id"`
	Type     string `json:"type"`
	Name     string `json:"name"`
}

func decodeProducts(raw []json.RawMessage) []Product {
	out := make([]Product, 0, len(raw))
	for _, r := range raw {
		var p Product
		if err := json.Unmarshal(r, &p); err != nil {
			var h productHeader
			_ = json.Unmarshal(r, &h)
			p = Product{
				ID:        h.ID,
				ParentID:  h.ParentID,
				Type:      h.Type,
				Name:      h.Name,
				DecodeErr: fmt.Errorf("woocommerce: decode product %d: %w", h.ID, err),
			}
		}
		out = append(out, p)
	}
	return out
}

// validProducts drops undecodable records; used where there is no per-item outcome to report.
func (s *WooService) validProducts(raw []json.RawMessage) []Product {
	items := decodeProducts(raw)
	out := items[:0]
	for _, p := range items {
		if p.DecodeErr != nil {
			s.log.Warn("skip undecodable product", zap.Int64("remote_id", p.ID), zap.Error(p.DecodeErr))
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *WooService) do(ctx context.Context, method, path string, q url.Values, body any, out any, page int) (http.Header, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "woocommerce "+method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.Int("woocommerce.page", page),
		),
	)
	defer span.End()

	endpoint := s.BaseURL + apiPrefix + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("woocommerce: encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(s.ConsumerKey, s.ConsumerSecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if page > 0 {
			return nil, fmt.Errorf("woocommerce: %s %s page %d: %w", method, path, page, err)
		}
		return nil, fmt.Errorf("woocommerce: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("woocommerce: read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{
			Method:     method,
			Path:       path,
			Page:       page,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(bodyBytes), 300),
		}
		span.SetStatus(codes.Error, serr.Error())
		return resp.Header, serr
	}

	if out != nil && len(bytes.TrimSpace(bodyBytes)) > 0 {
		if err := json.Unmarshal(bodyBytes, out); err != nil {
			return resp.Header, fmt.Errorf("woocommerce: parse %s response: %w", path, err)
		}
	}
	return resp.Header, nil
}

func notFound(err error) error {
	var serr *StatusError
	if errors.As(err, &serr) && serr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, serr.Path)
	}
	return err
}

// headerInt reads a numeric header; absent or unparseable is 0.
func headerInt(h http.Header, key string) int {
	if h == nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(h.Get(key)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
