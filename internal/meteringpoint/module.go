// Package meteringpoint provides the metering-point bounded context module.
// This file defines the module that encapsulates all registry setup.
package meteringpoint

import (
	"ean_lookup_backend/internal/meteringpoint/client"
	"ean_lookup_backend/internal/meteringpoint/service"
	"ean_lookup_backend/platform/config"
	"ean_lookup_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

// Module is the metering-point bounded context module.
type Module struct {
	service *service.Service
}

// NewModule creates and initializes the metering-point module.
// redisClient may be nil, in which case answers are cached in-process.
func NewModule(cfg config.RegistryConfig, redisClient *redis.Client, log *logger.Logger) *Module {
	apiClient := client.New(client.OptionsFromConfig(cfg), log)

	var cache service.Cache
	switch ttl := cfg.GetRegistryCacheTTL(); {
	case ttl <= 0:
		log.Info("registry cache disabled")
	case redisClient != nil:
		cache = service.NewRedisCache(redisClient, ttl, log)
	default:
		cache = service.NewMemoryCache(ttl)
	}

	svc := service.New(apiClient, cache, cfg.GetRegistryQueryMode(), log)

	log.Info("metering point module initialized",
		"query_mode", cfg.GetRegistryQueryMode(),
		"timeout", cfg.GetRegistryTimeout(),
		"max_retries", cfg.GetRegistryMaxRetries(),
		"authenticated", cfg.GetRegistryAPIKey() != "",
		"cache", cache != nil,
	)

	return &Module{service: svc}
}

// Service returns the lookup service for use by other modules.
func (m *Module) Service() Lookuper {
	return m.service
}
