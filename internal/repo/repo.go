package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/affiliate_catalog/internal/models"
)

var ErrNotFound = errors.New("product not found")

// ProductRepo keeps the catalog ordered most-recent-first.
type ProductRepo interface {
	List(ctx context.Context) ([]models.Product, error)
	Get(ctx context.Context, id string) (*models.Product, error)
	// Insert puts p at the head of the collection.
	Insert(ctx context.Context, p *models.Product) error
	// Update applies fn to the stored record under the repo's write lock.
	// The record keeps its id and position whatever fn does.
	Update(ctx context.Context, id string, fn func(*models.Product) error) (*models.Product, error)
	// Delete is a no-op for unknown ids.
	Delete(ctx context.Context, id string) error
	Close() error
}

const (
	DriverJSON     = "json"
	DriverBolt     = "bolt"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Options struct {
	Driver      string
	DataFile    string
	BoltPath    string
	DatabaseURL string
}

// Open picks the backend named by o.Driver.
func Open(ctx context.Context, o Options) (ProductRepo, error) {
	switch o.Driver {
	case DriverJSON, "":
		return NewJSONFileRepo(o.DataFile)
	case DriverBolt:
		return NewBoltRepo(o.BoltPath)
	case DriverSQLite, DriverPostgres:
		db, err := OpenDB(ctx, o.Driver, o.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return NewGormRepo(db)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", o.Driver)
	}
}
