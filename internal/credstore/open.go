package credstore

import (
	"fmt"

	"github.com/jason-s-yu/loto/internal/config"
)

// Open builds the store selected by cfg. The returned close func releases any
// backend connection.
func Open(cfg config.Store) (Store, func() error, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFile(cfg.Path), func() error { return nil }, nil
	case "redis":
		rdb, err := ConnectRedis(cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return NewRedis(rdb, cfg.Key), rdb.Close, nil
	case "memory":
		return NewMemory(Credentials{}), func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown credential backend %q", cfg.Backend)
}
