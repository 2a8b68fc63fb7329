package storage

import (
	"context"
	"fmt"

	"nimble.viom.tech/site/internal/config"
)

// SubscriberStore is an append-only record of newsletter signups.
// There is no read path and no deduplication.
type SubscriberStore interface {
	Append(ctx context.Context, email string) error
	Close() error
}

// New returns the store selected by SUBSCRIBER_STORE.
func New(cfg *config.Config) (SubscriberStore, error) {
	switch cfg.SubscriberStore {
	case "sqlite":
		return NewSQLiteStorage(cfg.DatabasePath)
	case "file", "":
		return NewFileStorage(cfg.SubscribersFile), nil
	default:
		return nil, fmt.Errorf("unknown subscriber store %q", cfg.SubscriberStore)
	}
}
