package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"myGreenStorefront/business/personalization"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CREATE TABLE public.personalization_kv (
//     scope       TEXT NOT NULL,
//     key         TEXT NOT NULL,
//     value       TEXT NOT NULL,
//     updated_at  TIMESTAMPTZ DEFAULT NOW(),
//     PRIMARY KEY (scope, key)
// );

type kvRow struct {
	Scope     string    `gorm:"column:scope;primaryKey"`
	Key       string    `gorm:"column:key;primaryKey"`
	Value     string    `gorm:"column:value;type:text"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (kvRow) TableName() string {
	return "personalization_kv"
}

// KVRepository stores personalization keys in Postgres, one row per
// (scope, key).
type KVRepository struct {
	DB *gorm.DB
}

var _ personalization.StoreProvider = (*KVRepository)(nil)

func NewKVRepository(db *gorm.DB) *KVRepository {
	return &KVRepository{DB: db}
}

// AutoMigrate creates the personalization_kv table when missing.
func (r *KVRepository) AutoMigrate(ctx context.Context) error {
	if err := r.DB.WithContext(ctx).AutoMigrate(&kvRow{}); err != nil {
		return fmt.Errorf("failed to migrate personalization_kv: %w", err)
	}
	return nil
}

func (r *KVRepository) ForScope(scope string) personalization.Store {
	return &kvStore{repo: r, scope: scope}
}

func (r *KVRepository) Get(ctx context.Context, scope, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, fmt.Errorf("context error: %w", err)
	}

	var row kvRow
	err := r.DB.WithContext(ctx).First(&row, "scope = ? AND key = ?", scope, key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query personalization_kv: %w", err)
	}
	return row.Value, true, nil
}

func (r *KVRepository) Set(ctx context.Context, scope, key, value string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	row := kvRow{
		Scope:     scope,
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}

	if err := r.DB.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "scope"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		},
	).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to upsert personalization_kv: %w", err)
	}
	return nil
}

func (r *KVRepository) Delete(ctx context.Context, scope, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if err := r.DB.WithContext(ctx).
		Where("scope = ? AND key = ?", scope, key).
		Delete(&kvRow{}).Error; err != nil {
		return fmt.Errorf("failed to delete from personalization_kv: %w", err)
	}
	return nil
}

// PurgeBefore removes every scope whose newest row was written before cutoff.
// A scope with any recent write keeps all of its rows.
func (r *KVRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	stale := r.DB.Model(&kvRow{}).
		Select("scope").
		Group("scope").
		Having("MAX(updated_at) < ?", cutoff)

	res := r.DB.WithContext(ctx).Where("scope IN (?)", stale).Delete(&kvRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge personalization_kv: %w", res.Error)
	}
	return res.RowsAffected, nil
}

type kvStore struct {
	repo  *KVRepository
	scope string
}

func (s *kvStore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.repo.Get(ctx, s.scope, key)
}

func (s *kvStore) Set(ctx context.Context, key, value string) error {
	return s.repo.Set(ctx, s.scope, key, value)
}

func (s *kvStore) Delete(ctx context.Context, key string) error {
	return s.repo.Delete(ctx, s.scope, key)
}
