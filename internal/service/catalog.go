package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/affiliate_catalog/internal/events"
	"github.com/Skotchmaster/affiliate_catalog/internal/logging"
	"github.com/Skotchmaster/affiliate_catalog/internal/models"
	"github.com/Skotchmaster/affiliate_catalog/internal/repo"
	"github.com/Skotchmaster/affiliate_catalog/internal/search"
	"github.com/Skotchmaster/affiliate_catalog/internal/transport"
)

var ErrValidation = errors.New("validation error")

const searchLimit = 50

// FieldError names the first field that was missing, blank or malformed.
// An empty Reason means the field is required.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	if e.Reason != "" {
		return e.Field + " " + e.Reason
	}
	return e.Field + " is required"
}

func (e *FieldError) Unwrap() error { return ErrValidation }

type ListFilter struct {
	Query    string
	Category string
}

// CatalogService owns product validation and keeps the side channels (event
// stream, search index) informed. Both side channels are optional.
type CatalogService struct {
	Repo      repo.ProductRepo
	Publisher events.Publisher
	Index     search.Index
	Now       func() time.Time
	NewID     func() string
}

func (s *CatalogService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *CatalogService) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *CatalogService) List(ctx context.Context, f ListFilter) ([]models.Product, error) {
	products, err := s.Repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return search.Filter(products, f.Query, f.Category), nil
}

// Search asks the full-text index first and falls back to scanning the store.
func (s *CatalogService) Search(ctx context.Context, q string) ([]models.Product, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return s.List(ctx, ListFilter{})
	}
	if s.Index != nil {
		found, err := s.Index.Search(ctx, q, searchLimit)
		if err == nil {
			return found, nil
		}
		logging.FromContext(ctx).Warn("search_index_error", "reason", "falling back to store scan", "error", err)
	}
	return s.List(ctx, ListFilter{Query: q})
}

func (s *CatalogService) Get(ctx context.Context, id string) (*models.Product, error) {
	return s.Repo.Get(ctx, id)
}

func (s *CatalogService) Create(ctx context.Context, req transport.CreateProductRequest) (*models.Product, error) {
	title := strings.TrimSpace(req.Title)
	link := strings.TrimSpace(req.Link)
	if title == "" {
		return nil, &FieldError{Field: "title"}
	}
	if link == "" {
		return nil, &FieldError{Field: "link"}
	}
	price, err := parsePrice(req.Price)
	if err != nil {
		return nil, err
	}

	now := s.now()
	p := &models.Product{
		ID:          s.newID(),
		Title:       title,
		Link:        link,
		Description: req.Description,
		Image:       strings.TrimSpace(req.Image),
		Image2:      strings.TrimSpace(req.Image2),
		Image3:      strings.TrimSpace(req.Image3),
		Category:    strings.TrimSpace(req.Category),
		Price:       price,
		Currency:    strings.ToUpper(strings.TrimSpace(req.Currency)),
		Website:     strings.TrimSpace(req.Website),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Repo.Insert(ctx, p); err != nil {
		return nil, err
	}

	s.afterWrite(ctx, events.ProductCreated, p)
	return p, nil
}

// Update merges the supplied fields into the stored product. Id and createdAt
// never change; title and link may not become blank.
func (s *CatalogService) Update(ctx context.Context, id string, req transport.PatchProductRequest) (*models.Product, error) {
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, &FieldError{Field: "title"}
	}
	if req.Link != nil && strings.TrimSpace(*req.Link) == "" {
		return nil, &FieldError{Field: "link"}
	}
	price, err := parsePrice(req.Price)
	if err != nil {
		return nil, err
	}

	now := s.now()
	updated, err := s.Repo.Update(ctx, id, func(p *models.Product) error {
		applyPatch(p, req, price)
		p.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, events.ProductUpdated, updated)
	return updated, nil
}

// Delete succeeds whether or not the product existed.
func (s *CatalogService) Delete(ctx context.Context, id string) error {
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}

	l := logging.FromContext(ctx).With("svc", "catalog.delete", "product_id", id)
	if s.Index != nil {
		if err := s.Index.Remove(ctx, id); err != nil {
			l.Warn("search_index_error", "error", err)
		}
	}
	if s.Publisher != nil {
		ev := events.Event{Type: events.ProductDeleted, ProductID: id, At: s.now()}
		if err := s.Publisher.Publish(ctx, ev); err != nil {
			l.Warn("publish_event_error", "event", ev.Type, "error", err)
		}
	}
	return nil
}

func (s *CatalogService) afterWrite(ctx context.Context, eventType string, p *models.Product) {
	l := logging.FromContext(ctx).With("svc", "catalog", "product_id", p.ID)
	if s.Index != nil {
		if err := s.Index.Put(ctx, *p); err != nil {
			l.Warn("search_index_error", "error", err)
		}
	}
	if s.Publisher != nil {
		ev := events.Event{Type: eventType, ProductID: p.ID, Title: p.Title, Link: p.Link, At: p.UpdatedAt}
		if err := s.Publisher.Publish(ctx, ev); err != nil {
			l.Warn("publish_event_error", "event", ev.Type, "error", err)
		}
	}
}

func parsePrice(raw json.RawMessage) (*float64, error) {
	price, err := models.ParsePrice(raw)
	if err != nil {
		return nil, &FieldError{Field: "price", Reason: "must be a number"}
	}
	return price, nil
}

func applyPatch(p *models.Product, req transport.PatchProductRequest, price *float64) {
	for k, v := range req.Extra {
		if p.Extra == nil {
			p.Extra = map[string]json.RawMessage{}
		}
		p.Extra[k] = v
	}
	str := func(key string, src *string, dst *string, norm func(string) string) {
		if src == nil {
			return
		}
		*dst = norm(*src)
		delete(p.Extra, key)
	}
	keep := func(s string) string { return s }

	str("title", req.Title, &p.Title, strings.TrimSpace)
	str("link", req.Link, &p.Link, strings.TrimSpace)
	str("description", req.Description, &p.Description, keep)
	str("image", req.Image, &p.Image, strings.TrimSpace)
	str("image2", req.Image2, &p.Image2, strings.TrimSpace)
	str("image3", req.Image3, &p.Image3, strings.TrimSpace)
	str("category", req.Category, &p.Category, strings.TrimSpace)
	str("currency", req.Currency, &p.Currency, func(s string) string { return strings.ToUpper(strings.TrimSpace(s)) })
	str("website", req.Website, &p.Website, strings.TrimSpace)
	if len(req.Price) > 0 {
		p.Price = price
		delete(p.Extra, "price")
	}
	if len(p.Extra) == 0 {
		p.Extra = nil
	}
}
