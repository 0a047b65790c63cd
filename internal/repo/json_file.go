package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/Skotchmaster/affiliate_catalog/internal/models"
)

// JSONFileRepo keeps the whole catalog as one pretty-printed JSON array.
// Every operation re-reads the file so hand edits show up; writers are
// serialised and replace the file atomically.
type JSONFileRepo struct {
	path string
	mu   sync.Mutex
}

func NewJSONFileRepo(path string) (*JSONFileRepo, error) {
	if path == "" {
		return nil, errors.New("json repo: empty data file path")
	}
	r := &JSONFileRepo{path: path}

	_, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("json repo: create %s: %w", dir, err)
			}
		}
		if err := r.write([]models.Product{}); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("json repo: stat %s: %w", path, err)
	}
	return r, nil
}

func (r *JSONFileRepo) List(ctx context.Context) ([]models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read()
}

func (r *JSONFileRepo) Get(ctx context.Context, id string) (*models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	products, err := r.read()
	if err != nil {
		return nil, err
	}
	for i := range products {
		if products[i].ID == id {
			p := products[i]
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (r *JSONFileRepo) Insert(ctx context.Context, p *models.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	products, err := r.read()
	if err != nil {
		return err
	}
	products = append([]models.Product{*p}, products...)
	return r.write(products)
}

func (r *JSONFileRepo) Update(ctx context.Context, id string, fn func(*models.Product) error) (*models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	products, err := r.read()
	if err != nil {
		return nil, err
	}
	idx := -1
	for i := range products {
		if products[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrNotFound
	}

	updated := products[idx]
	if err := fn(&updated); err != nil {
		return nil, err
	}
	updated.ID = id
	products[idx] = updated

	if err := r.write(products); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *JSONFileRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	products, err := r.read()
	if err != nil {
		return err
	}
	kept := products[:0]
	for _, p := range products {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	return r.write(kept)
}

func (r *JSONFileRepo) Close() error { return nil }

// read treats a missing or blank file as an empty catalog.
func (r *JSONFileRepo) read() ([]models.Product, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.Product{}, nil
		}
		return nil, fmt.Errorf("json repo: read %s: %w", r.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []models.Product{}, nil
	}

	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("json repo: decode %s: %w", r.path, err)
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

func (r *JSONFileRepo) write(products []models.Product) error {
	data, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return fmt.Errorf("json repo: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("json repo: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	// CreateTemp opens 0600; keep the catalog readable like a plain file.
	mode := os.FileMode(0o644)
	if fi, err := os.Stat(r.path); err == nil {
		mode = fi.Mode().Perm()
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("json repo: chmod %s: %w", tmpName, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("json repo: write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("json repo: close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("json repo: replace %s: %w", r.path, err)
	}
	return nil
}
