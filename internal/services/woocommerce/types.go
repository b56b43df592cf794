package woocommerce

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a WooCommerce money/weight field. WooCommerce sends these as strings
// ("12500", "", "1.5") and sometimes numbers. Anything unparseable or negative decodes to 0.
type Amount struct {
	decimal.Decimal
}

func NewAmount(s string) Amount {
	return Amount{parseAmount(s)}
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		a.Decimal = decimal.Zero
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			a.Decimal = decimal.Zero
			return nil
		}
		a.Decimal = parseAmount(s)
		return nil
	}
	a.Decimal = parseAmount(string(data))
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Decimal.String())
}

func parseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Quantity decodes a nullable integer (stock_quantity); null or garbage is 0.
type Quantity int

func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*q = 0
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := strings.Trim(string(data), `"`)
	if n, err := strconv.Atoi(s); err == nil {
		*q = Quantity(n)
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		*q = Quantity(int(f))
	}
	return nil
}

type Image struct {
	ID   int64  `json:"id,omitempty"`
	Src  string `json:"src"`
	Name string `json:"name,omitempty"`
	Alt  string `json:"alt,omitempty"`
}

type Category struct {
	ID     int64  `json:"id"`
	Name   string `json:"name,omitempty"`
	Slug   string `json:"slug,omitempty"`
	Parent int64  `json:"parent,omitempty"`
	Count  int    `json:"count,omitempty"`
}

// Attribute covers both shapes: products carry Options, variations carry Option.
type Attribute struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Option    string   `json:"option,omitempty"`
	Options   []string `json:"options,omitempty"`
	Variation bool     `json:"variation,omitempty"`
	Visible   bool     `json:"visible,omitempty"`
}

type MetaData struct {
	ID    int64           `json:"id,omitempty"`
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// StringValue returns the meta value when it is a non-empty string or a number.
func (m MetaData) StringValue() (string, bool) {
	if len(m.Value) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(m.Value, &s); err == nil {
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	var n json.Number
	if err := json.Unmarshal(m.Value, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// BarcodeMetaKeys lists the meta keys holding a product's warehouse barcode,
// in lookup order. The first non-empty one wins.
var BarcodeMetaKeys = []string{"backup_gudang", "_pos_barcode"}

// Product is a WooCommerce product or variation. Variations leave Type empty
// (or "variation") and carry a single Image instead of Images.
type Product struct {
	ID            int64       `json:"id"`
	ParentID      int64       `json:"parent_id"`
	Name          string      `json:"name"`
	Slug          string      `json:"slug"`
	Type          string      `json:"type"`
	Status        string      `json:"status"`
	SKU           string      `json:"sku"`
	Price         Amount      `json:"price"`
	RegularPrice  Amount      `json:"regular_price"`
	SalePrice     Amount      `json:"sale_price"`
	Weight        Amount      `json:"weight"`
	StockStatus   string      `json:"stock_status"`
	StockQuantity Quantity    `json:"stock_quantity"`
	Images        []Image     `json:"images"`
	Image         *Image      `json:"image"`
	Categories    []Category  `json:"categories"`
	Attributes    []Attribute `json:"attributes"`
	MetaData      []MetaData  `json:"meta_data"`
	Variations    []int64     `json:"variations"`

	// DecodeErr is set when the record did not fit this struct; only the id fields are filled.
	DecodeErr error `json:"-"`
}

// Barcode resolves the warehouse barcode through BarcodeMetaKeys.
func (p Product) Barcode() (string, bool) {
	for _, key := range BarcodeMetaKeys {
		for _, m := range p.MetaData {
			if m.Key != key {
				continue
			}
			if v, ok := m.StringValue(); ok {
				return v, true
			}
		}
	}
	return "", false
}

// AllImages merges the variation image into the image list.
func (p Product) AllImages() []Image {
	if p.Image == nil || p.Image.Src == "" {
		return p.Images
	}
	out := make([]Image, 0, len(p.Images)+1)
	out = append(out, *p.Image)
	return append(out, p.Images...)
}

// ProductPage is one page of a collection query plus the pagination headers.
type ProductPage struct {
	Items      []Product
	Total      int
	TotalPages int
}

type CreateProductRequest struct {
	Name          string            `json:"name"`
	Type          string            `json:"type"`
	Status        string            `json:"status,omitempty"`
	SKU           string            `json:"sku,omitempty"`
	RegularPrice  string            `json:"regular_price,omitempty"`
	SalePrice     string            `json:"sale_price,omitempty"`
	Description   string            `json:"description,omitempty"`
	Weight        string            `json:"weight,omitempty"`
	ManageStock   bool              `json:"manage_stock"`
	StockQuantity *int              `json:"stock_quantity,omitempty"`
	Categories    []CategoryRef     `json:"categories,omitempty"`
	Images        []ImageRef        `json:"images,omitempty"`
	MetaData      []MetaDataRequest `json:"meta_data,omitempty"`
}

type CategoryRef struct {
	ID int64 `json:"id"`
}

type ImageRef struct {
	Src string `json:"src"`
}

type MetaDataRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
