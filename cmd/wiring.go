package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"fc-troll-detector/internal/cache"
	"fc-troll-detector/internal/config"
	"fc-troll-detector/internal/forum"
	"fc-troll-detector/internal/redisclient"
)

func newForumClient(cfg config.Config) *forum.Client {
	return forum.NewClient(cfg.Forum.BaseURL, cfg.Forum.UserAgent, cfg.ForumTimeout())
}

// openStore opens the durable cache tier selected by cache.backend. The
// returned close function is never nil.
func openStore(cfg config.Config) (cache.Store, func(), error) {
	switch strings.ToLower(cfg.Cache.Backend) {
	case "sqlite":
		s, err := cache.OpenSQLite(cfg.Cache.Path)
		if err != nil {
			return nil, func() {}, err
		}
		slog.Debug("cache: using sqlite", "path", cfg.Cache.Path)
		return s, func() { _ = s.Close() }, nil
	case "redis":
		rdb := redisclient.New(cfg.Redis)
		slog.Debug("cache: using redis", "addr", cfg.Redis.Addr)
		return cache.NewRedisStore(rdb), func() { _ = rdb.Close() }, nil
	case "none":
		return cache.NullStore{}, func() {}, nil
	}
	return nil, func() {}, fmt.Errorf("unknown cache backend %q (want sqlite, redis or none)", cfg.Cache.Backend)
}
