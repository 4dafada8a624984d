package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"yt-fetcher/domain/apperror"
	"yt-fetcher/domain/model"
	"yt-fetcher/domain/repository"
)

// DevKeyRepository reads and toggles developer keys in the dev_key table.
type DevKeyRepository struct {
	db *gorm.DB
}

func NewDevKeyRepository(db *gorm.DB) *DevKeyRepository {
	return &DevKeyRepository{db: db}
}

// Migrate creates or updates the dev_key table.
func (r *DevKeyRepository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&model.DevKey{})
}

func (r *DevKeyRepository) ListKeys(ctx context.Context) ([]model.APIKey, error) {
	var rows []model.DevKey
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list dev keys: %w", err)
	}
	keys := make([]model.APIKey, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, row.ToAPIKey())
	}
	return keys, nil
}

// Disable deactivates a key and records why, for example the quota error payload.
func (r *DevKeyRepository) Disable(ctx context.Context, key string, reason map[string]interface{}) error {
	raw, err := json.Marshal(reason)
	if err != nil {
		return fmt.Errorf("encode disable reason: %w", err)
	}
	return r.update(ctx, key, map[string]interface{}{
		"is_active": false,
		"reason":    string(raw),
	})
}

func (r *DevKeyRepository) Enable(ctx context.Context, key string) error {
	return r.update(ctx, key, map[string]interface{}{
		"is_active": true,
		"reason":    nil,
	})
}

func (r *DevKeyRepository) update(ctx context.Context, key string, values map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.DevKey{}).Where("`key` = ?", key).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("update dev key %s: %w", apperror.MaskKey(key), res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrKeyNotFound
	}
	return nil
}
