package search

import (
	"strings"

	"github.com/Skotchmaster/affiliate_catalog/internal/models"
)

// Filter keeps products whose text fields contain q and whose category equals
// category, both case-insensitively. Empty arguments match everything; order is kept.
func Filter(products []models.Product, q, category string) []models.Product {
	q = strings.ToLower(strings.TrimSpace(q))
	category = strings.TrimSpace(category)
	if q == "" && category == "" {
		return products
	}

	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		if q != "" && !matches(p, q) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func matches(p models.Product, q string) bool {
	for _, field := range []string{p.Title, p.Description, p.Category, p.Website} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
