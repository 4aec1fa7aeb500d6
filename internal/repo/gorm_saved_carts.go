package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// savedCartRow is the gorm model of a saved cart row.
type savedCartRow struct {
	Identifier string    `gorm:"primaryKey;size:255"`
	Instance   string    `gorm:"primaryKey;size:255"`
	Content    []byte    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// GormSavedCarts stores saved carts through gorm, so any gorm dialect can back it.
type GormSavedCarts struct {
	DB    *gorm.DB
	Table string
}

func (r GormSavedCarts) scoped(ctx context.Context) (*gorm.DB, error) {
	if r.DB == nil {
		return nil, errors.New("repo: gorm db not configured")
	}
	table, err := normalizeTable(r.Table)
	if err != nil {
		return nil, err
	}
	return r.DB.WithContext(ctx).Table(table), nil
}

// AutoMigrate creates or updates the saved cart table.
func (r GormSavedCarts) AutoMigrate(ctx context.Context) error {
	db, err := r.scoped(ctx)
	if err != nil {
		return err
	}
	return db.AutoMigrate(&savedCartRow{})
}

func (r GormSavedCarts) Exists(ctx context.Context, identifier, instance string) (bool, error) {
	db, err := r.scoped(ctx)
	if err != nil {
		return false, err
	}
	var count int64
	if err := db.Where("identifier = ? AND instance = ?", identifier, instance).Count(&count).Error; err != nil {
		return false, fmt.Errorf("repo: check saved cart: %w", err)
	}
	return count > 0, nil
}

func (r GormSavedCarts) Insert(ctx context.Context, rec SavedCart) error {
	db, err := r.scoped(ctx)
	if err != nil {
		return err
	}
	row := savedCartRow{
		Identifier: rec.Identifier,
		Instance:   rec.Instance,
		Content:    rec.Content,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("repo: insert saved cart: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s/%s: %w", rec.Identifier, rec.Instance, ErrDuplicate)
	}
	return nil
}

func (r GormSavedCarts) Find(ctx context.Context, identifier string) (SavedCart, error) {
	db, err := r.scoped(ctx)
	if err != nil {
		return SavedCart{}, err
	}
	var row savedCartRow
	err = db.Where("identifier = ?", identifier).Order("created_at").Order("instance").Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SavedCart{}, ErrRecordNotFound
		}
		return SavedCart{}, fmt.Errorf("repo: find saved cart: %w", err)
	}
	return SavedCart{
		Identifier: row.Identifier,
		Instance:   row.Instance,
		Content:    row.Content,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}, nil
}

func (r GormSavedCarts) Delete(ctx context.Context, identifier, instance string) error {
	db, err := r.scoped(ctx)
	if err != nil {
		return err
	}
	if err := db.Where("identifier = ? AND instance = ?", identifier, instance).Delete(&savedCartRow{}).Error; err != nil {
		return fmt.Errorf("repo: delete saved cart: %w", err)
	}
	return nil
}
