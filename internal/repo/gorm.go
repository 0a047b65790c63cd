package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/affiliate_catalog/internal/models"
)

// productRecord adds the ordering column; position grows with every insert
// and is unique, so two writers that read the same MAX(position) cannot both commit.
type productRecord struct {
	models.Product
	Position int64 `gorm:"uniqueIndex:uidx_products_position;not null"`
}

const insertAttempts = 5

func (productRecord) TableName() string { return "products" }

type GormRepo struct {
	DB *gorm.DB
}

func NewGormRepo(db *gorm.DB) (*GormRepo, error) {
	if err := db.AutoMigrate(&productRecord{}); err != nil {
		return nil, fmt.Errorf("migrate products: %w", err)
	}
	return &GormRepo{DB: db}, nil
}

func (r *GormRepo) List(ctx context.Context) ([]models.Product, error) {
	var rows []productRecord
	if err := r.DB.WithContext(ctx).Order("position DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Product)
	}
	return out, nil
}

func (r *GormRepo) Get(ctx context.Context, id string) (*models.Product, error) {
	var row productRecord
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &row.Product, nil
}

// Insert retries when a concurrent insert took the same position first.
func (r *GormRepo) Insert(ctx context.Context, p *models.Product) error {
	var err error
	for attempt := 0; attempt < insertAttempts; attempt++ {
		err = r.insertOnce(ctx, p)
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		if r.exists(ctx, p.ID) {
			return err
		}
	}
	return fmt.Errorf("insert product after %d attempts: %w", insertAttempts, err)
}

func (r *GormRepo) insertOnce(ctx context.Context, p *models.Product) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var top int64
		if err := tx.Model(&productRecord{}).Select("COALESCE(MAX(position), 0)").Scan(&top).Error; err != nil {
			return err
		}
		row := productRecord{Product: *p, Position: top + 1}
		return tx.Create(&row).Error
	})
}

// exists tells an id collision apart from a position collision.
func (r *GormRepo) exists(ctx context.Context, id string) bool {
	var n int64
	r.DB.WithContext(ctx).Model(&productRecord{}).Where("id = ?", id).Count(&n)
	return n > 0
}

func (r *GormRepo) Update(ctx context.Context, id string, fn func(*models.Product) error) (*models.Product, error) {
	var row productRecord
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := fn(&row.Product); err != nil {
			return err
		}
		row.ID = id
		return tx.Save(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return &row.Product, nil
}

func (r *GormRepo) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Where("id = ?", id).Delete(&productRecord{}).Error
}

func (r *GormRepo) Close() error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
