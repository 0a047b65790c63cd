package transport

import (
	"encoding/json"
	"fmt"
	"time"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Price is kept raw so that both 19.99 and "19.99" are accepted.
type CreateProductRequest struct {
	Title       string          `json:"title"`
	Link        string          `json:"link"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Image2      string          `json:"image2"`
	Image3      string          `json:"image3"`
	Category    string          `json:"category"`
	Price       json.RawMessage `json:"price"`
	Currency    string          `json:"currency"`
	Website     string          `json:"website"`
}

// PatchProductRequest carries only the fields the caller sent; nil means keep.
// An empty Price means the key was absent, "null" clears the price. Keys the
// catalog does not model land in Extra and are merged into the product.
type PatchProductRequest struct {
	Title       *string
	Link        *string
	Description *string
	Image       *string
	Image2      *string
	Image3      *string
	Category    *string
	Price       json.RawMessage
	Currency    *string
	Website     *string
	Extra       map[string]json.RawMessage
}

// keys a patch may never touch
var immutableKeys = map[string]bool{"id": true, "createdAt": true, "updatedAt": true}

func (r *PatchProductRequest) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*r = PatchProductRequest{}
	strs := map[string]**string{
		"title":       &r.Title,
		"link":        &r.Link,
		"description": &r.Description,
		"image":       &r.Image,
		"image2":      &r.Image2,
		"image3":      &r.Image3,
		"category":    &r.Category,
		"currency":    &r.Currency,
		"website":     &r.Website,
	}
	for key, v := range raw {
		switch dst, ok := strs[key]; {
		case ok:
			if err := json.Unmarshal(v, dst); err != nil {
				return fmt.Errorf("%s must be a string: %w", key, err)
			}
		case key == "price":
			r.Price = v
		case immutableKeys[key]:
		default:
			if r.Extra == nil {
				r.Extra = map[string]json.RawMessage{}
			}
			r.Extra[key] = v
		}
	}
	return nil
}

type DeleteResponse struct {
	Success bool `json:"success"`
}
