package storage

import (
	"fmt"

	"gitlab.connectwisedev.com/storefront/pkg/config"
)

// Open returns the store selected by cfg.StorageBackend.
func Open(cfg config.Config) (Store, error) {
	switch cfg.StorageBackend {
	case "", "file":
		return NewFileStore(cfg.StoragePath)
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, Prefix: "storefront:"})
	case "postgres":
		return NewPostgresStore()
	case "mysql":
		return NewMySQLStore(cfg.MySQLDSN)
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
}
