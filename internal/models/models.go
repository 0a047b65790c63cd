package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidPrice = errors.New("price must be a number")

// Product is one affiliate listing. Link points at the external merchant page.
//
// Keys the catalog does not model (affiliateSite, mode, buy_link, ...) are kept
// in Extra and written back unchanged, as are values that do not fit their
// typed field.
type Product struct {
	ID          string                     `gorm:"primaryKey;size:36"              json:"id"`
	Title       string                     `gorm:"not null"                        json:"title"`
	Link        string                     `gorm:"not null"                        json:"link"`
	Description string                     `json:"description"`
	Image       string                     `json:"image"`
	Image2      string                     `json:"image2,omitempty"`
	Image3      string                     `json:"image3,omitempty"`
	Category    string                     `gorm:"index"                           json:"category,omitempty"`
	Price       *float64                   `json:"price,omitempty"`
	Currency    string                     `gorm:"size:8"                          json:"currency,omitempty"`
	Website     string                     `json:"website,omitempty"`
	CreatedAt   time.Time                  `gorm:"autoCreateTime:false"            json:"createdAt,omitempty"`
	UpdatedAt   time.Time                  `gorm:"autoUpdateTime:false"            json:"updatedAt,omitempty"`
	Extra       map[string]json.RawMessage `gorm:"serializer:json;type:text"       json:"-"`
}

type field struct {
	key      string
	val      any
	zero     bool
	optional bool
}

func (p Product) fields() []field {
	return []field{
		{key: "id", val: p.ID, zero: p.ID == ""},
		{key: "title", val: p.Title, zero: p.Title == ""},
		{key: "link", val: p.Link, zero: p.Link == ""},
		{key: "description", val: p.Description, zero: p.Description == ""},
		{key: "image", val: p.Image, zero: p.Image == ""},
		{key: "image2", val: p.Image2, zero: p.Image2 == "", optional: true},
		{key: "image3", val: p.Image3, zero: p.Image3 == "", optional: true},
		{key: "category", val: p.Category, zero: p.Category == "", optional: true},
		{key: "price", val: p.Price, zero: p.Price == nil, optional: true},
		{key: "currency", val: p.Currency, zero: p.Currency == "", optional: true},
		{key: "website", val: p.Website, zero: p.Website == "", optional: true},
		{key: "createdAt", val: p.CreatedAt, zero: p.CreatedAt.IsZero(), optional: true},
		{key: "updatedAt", val: p.UpdatedAt, zero: p.UpdatedAt.IsZero(), optional: true},
	}
}

// MarshalJSON writes the typed fields in a fixed order, then Extra sorted by key.
// A zero typed field gives way to an Extra value stored under the same key.
func (p Product) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	n := 0
	put := func(key string, raw []byte) {
		if n > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(raw)
		n++
	}

	written := make(map[string]bool, 16)
	for _, f := range p.fields() {
		_, inExtra := p.Extra[f.key]
		if f.zero && (f.optional || inExtra) {
			continue
		}
		raw, err := json.Marshal(f.val)
		if err != nil {
			return nil, err
		}
		put(f.key, raw)
		written[f.key] = true
	}

	keys := make([]string, 0, len(p.Extra))
	for k := range p.Extra {
		if !written[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		raw := p.Extra[k]
		if len(raw) == 0 {
			raw = json.RawMessage("null")
		}
		put(k, raw)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (p *Product) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*p = Product{}
	take := func(key string, dst any) {
		v, ok := raw[key]
		if !ok {
			return
		}
		if json.Unmarshal(v, dst) == nil {
			delete(raw, key)
		}
	}
	take("id", &p.ID)
	take("title", &p.Title)
	take("link", &p.Link)
	take("description", &p.Description)
	take("image", &p.Image)
	take("image2", &p.Image2)
	take("image3", &p.Image3)
	take("category", &p.Category)
	take("currency", &p.Currency)
	take("website", &p.Website)
	take("createdAt", &p.CreatedAt)
	take("updatedAt", &p.UpdatedAt)
	if v, ok := raw["price"]; ok {
		if price, err := ParsePrice(v); err == nil {
			p.Price = price
			delete(raw, "price")
		}
	}

	if len(raw) > 0 {
		p.Extra = raw
	}
	return nil
}

// ParsePrice accepts a JSON number or a numeric string. null and "" mean no price.
func ParsePrice(raw json.RawMessage) (*float64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return nil, ErrInvalidPrice
		}
		s = strings.TrimSpace(str)
		if s == "" {
			return nil, nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, ErrInvalidPrice
	}
	return &v, nil
}

type AdminCredential struct {
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
}
