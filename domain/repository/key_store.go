package repository

import (
	"context"
	"errors"

	"yt-fetcher/domain/model"
)

// ErrKeyNotFound is returned by Disable/Enable for keys the store does not know.
var ErrKeyNotFound = errors.New("key not found")

// IKeyStore is the authoritative source of API credentials.
type IKeyStore interface {
	// ListKeys returns every known key with its active flag, in rotation order.
	ListKeys(ctx context.Context) ([]model.APIKey, error)
	Disable(ctx context.Context, key string, reason map[string]interface{}) error
	Enable(ctx context.Context, key string) error
}

// IKeyChangeNotifier is told about key state changes so running pools can reload.
type IKeyChangeNotifier interface {
	NotifyKeyChange(ctx context.Context, change model.KeyChange) error
}
