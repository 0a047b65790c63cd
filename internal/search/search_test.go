package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/affiliate_catalog/internal/models"
)

func catalog() []models.Product {
	return []models.Product{
		{ID: "3", Title: "Desk Lamp", Description: "LED, warm light", Category: "Lighting"},
		{ID: "2", Title: "Office Chair", Description: "ergonomic", Category: "Furniture", Website: "chairs.example"},
		{ID: "1", Title: "Floor lamp", Description: "tall", Category: "lighting"},
	}
}

func TestFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		q        string
		category string
		want     []string
	}{
		{name: "no filter", want: []string{"3", "2", "1"}},
		{name: "title case-insensitive", q: "LAMP", want: []string{"3", "1"}},
		{name: "description", q: "ergonomic", want: []string{"2"}},
		{name: "website", q: "chairs.example", want: []string{"2"}},
		{name: "category only", category: "LIGHTING", want: []string{"3", "1"}},
		{name: "query and category", q: "desk", category: "lighting", want: []string{"3"}},
		{name: "no match", q: "sofa", want: []string{}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Filter(catalog(), tt.q, tt.category)
			ids := make([]string, 0, len(got))
			for _, p := range got {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

type fakeES struct {
	mu       sync.Mutex
	requests []string
	bodies   []string
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.bodies = append(f.bodies, string(body))
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Path == "/":
		_, _ = io.WriteString(w, `{"name":"fake","cluster_name":"test","version":{"number":"9.0.0"},"tagline":"You Know, for Search"}`)
	case strings.HasSuffix(r.URL.Path, "/_search"):
		_, _ = io.WriteString(w, `{"hits":{"total":{"value":1},"hits":[{"_id":"p-1","_source":{"id":"p-1","title":"Desk Lamp","link":"https://l.example"}}]}}`)
	case r.Method == http.MethodDelete && strings.HasSuffix(r.URL.Path, "/missing"):
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"result":"not_found"}`)
	default:
		_, _ = io.WriteString(w, `{"result":"created"}`)
	}
}

func (f *fakeES) seen(prefix string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if strings.HasPrefix(r, prefix) {
			return true
		}
	}
	return false
}

func TestESIndex(t *testing.T) {
	t.Parallel()

	fake := &fakeES{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	idx, err := NewESIndex(Config{URL: srv.URL, Index: "products"})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, idx.Put(ctx, models.Product{ID: "p-1", Title: "Desk Lamp"}))
	assert.True(t, fake.seen("PUT /products/_doc/p-1"))

	got, err := idx.Search(ctx, "lamp", 20)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p-1", got[0].ID)
	assert.Equal(t, "Desk Lamp", got[0].Title)

	fake.mu.Lock()
	var query map[string]any
	require.NoError(t, json.Unmarshal([]byte(fake.bodies[len(fake.bodies)-1]), &query))
	fake.mu.Unlock()
	assert.Equal(t, float64(20), query["size"])

	require.NoError(t, idx.Remove(ctx, "p-1"))
	assert.True(t, fake.seen("DELETE /products/_doc/p-1"))

	assert.NoError(t, idx.Remove(ctx, "missing"))
}

func TestNewESIndex_Unreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewESIndex(Config{URL: url, Index: "products"})
	assert.Error(t, err)
}
