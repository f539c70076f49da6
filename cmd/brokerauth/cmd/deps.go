package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/brokerauth/access"
	"github.com/jrsteele09/brokerauth/internal/config"
	"github.com/jrsteele09/brokerauth/kvstore"
	"github.com/jrsteele09/brokerauth/kvstore/memstore"
	"github.com/jrsteele09/brokerauth/kvstore/redisstore"
)

const storeConnectRetries = 5

var errRedisRequired = errors.New("REDIS_URL is required: operator commands must reach the shared store")

// openStore connects to redis, retrying with exponential backoff while the
// store comes up. An empty REDIS_URL selects the in-memory store unless
// requireShared is set.
func openStore(ctx context.Context, cfg config.StoreConfig, requireShared bool) (kvstore.Store, error) {
	if cfg.GetRedisURL() == "" {
		if requireShared {
			return nil, errRedisRequired
		}
		log.Warn().Msg("REDIS_URL not set, using the in-memory store; sessions and the whitelist are lost on restart")
		return memstore.New(), nil
	}

	var store *redisstore.Store
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), storeConnectRetries), ctx)
	err := backoff.RetryNotify(func() error {
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		s, err := redisstore.New(connectCtx, redisstore.Options{
			URL:    cfg.GetRedisURL(),
			Prefix: cfg.GetKeyPrefix(),
		})
		if err != nil {
			return err
		}
		store = s
		return nil
	}, b, func(err error, next time.Duration) {
		log.Warn().Err(err).Dur("next", next).Msg("redis not ready, retrying")
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

func newRegistry(cfg config.Config, store kvstore.Store) *access.Registry {
	return access.NewRegistry(store, cfg.GetWhitelistEnabled(), cfg.GetInitialSetupKey())
}
