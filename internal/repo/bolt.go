package repo

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/Skotchmaster/affiliate_catalog/internal/models"
)

var (
	bucketProducts  = []byte("products")
	bucketOrder     = []byte("order")
	bucketPositions = []byte("positions")
)

// BoltRepo stores products by id and keeps insertion order in a sequence-keyed
// index so List can walk it backwards.
type BoltRepo struct {
	db *bolt.DB
}

func NewBoltRepo(path string) (*BoltRepo, error) {
	if path == "" {
		return nil, errors.New("bolt repo: empty path")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt repo: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketProducts, bucketOrder, bucketPositions} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt repo: init buckets: %w", err)
	}
	return &BoltRepo{db: db}, nil
}

func (r *BoltRepo) List(ctx context.Context) ([]models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []models.Product{}
	err := r.db.View(func(tx *bolt.Tx) error {
		products := tx.Bucket(bucketProducts)
		c := tx.Bucket(bucketOrder).Cursor()
		for k, id := c.Last(); k != nil; k, id = c.Prev() {
			raw := products.Get(id)
			if raw == nil {
				continue
			}
			var p models.Product
			if err := json.Unmarshal(raw, &p); err != nil {
				return fmt.Errorf("decode %s: %w", id, err)
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bolt repo: list: %w", err)
	}
	return out, nil
}

func (r *BoltRepo) Get(ctx context.Context, id string) (*models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var p models.Product
	err := r.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketProducts).Get([]byte(id))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *BoltRepo) Insert(ctx context.Context, p *models.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("bolt repo: encode: %w", err)
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		order := tx.Bucket(bucketOrder)
		seq, err := order.NextSequence()
		if err != nil {
			return err
		}
		key := seqKey(seq)
		id := []byte(p.ID)
		if err := order.Put(key, id); err != nil {
			return err
		}
		if err := tx.Bucket(bucketPositions).Put(id, key); err != nil {
			return err
		}
		return tx.Bucket(bucketProducts).Put(id, raw)
	})
}

func (r *BoltRepo) Update(ctx context.Context, id string, fn func(*models.Product) error) (*models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var p models.Product
	err := r.db.Update(func(tx *bolt.Tx) error {
		products := tx.Bucket(bucketProducts)
		raw := products.Get([]byte(id))
		if raw == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		if err := fn(&p); err != nil {
			return err
		}
		p.ID = id
		next, err := json.Marshal(&p)
		if err != nil {
			return err
		}
		return products.Put([]byte(id), next)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *BoltRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		key := []byte(id)
		positions := tx.Bucket(bucketPositions)
		if pos := positions.Get(key); pos != nil {
			if err := tx.Bucket(bucketOrder).Delete(pos); err != nil {
				return err
			}
			if err := positions.Delete(key); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketProducts).Delete(key)
	})
}

func (r *BoltRepo) Close() error {
	return r.db.Close()
}

func seqKey(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}
