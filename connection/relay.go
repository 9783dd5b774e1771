package connection

import (
	"context"

	"github.com/objcache/objcache/cache"
	"github.com/objcache/objcache/config"
	"github.com/objcache/objcache/ecode"
	"github.com/objcache/objcache/logging/logger"
)

// DefaultRelayMemoryLimit bounds the near-client cache layer.
const DefaultRelayMemoryLimit = 128 << 20

// RelayConnector connects a standalone backend with a near-client in-process
// cache layer in front of it. The layer's backend has no cluster or replica
// support, so those configurations are rejected outright.
type RelayConnector struct {
	inner *InstanceConnector
	log   *logger.Logger
}

// NewRelayConnector creates the relay connector.
func NewRelayConnector(log *logger.Logger) *RelayConnector {
	if log == nil {
		log = logger.StandardLogger()
	}
	return &RelayConnector{inner: NewInstanceConnector(log), log: log}
}

// Boot rejects configurations the cache layer cannot serve.
func (rc *RelayConnector) Boot(cfg *config.Config) error {
	if len(cfg.Addrs) > 0 {
		return ecode.NewConfigError("relay topology does not support cluster endpoints")
	}
	if len(cfg.Servers) > 0 {
		return ecode.NewConfigError("relay topology does not support replicated servers")
	}
	return bootTransforms(rc, cfg)
}

// Supports reports the relay capability set.
func (rc *RelayConnector) Supports(f Feature) bool {
	switch f {
	case FeatureSerializerJSON, FeatureCompressionNone, FeatureCompressionGzip,
		FeatureCompressionBrotli, FeatureMultiDatabase:
		return true
	}
	return false
}

// Connect builds the standalone connection and attaches the memory-limited
// cache layer to it.
func (rc *RelayConnector) Connect(ctx context.Context, cfg *config.Config) (*Connection, error) {
	if err := rc.Boot(cfg); err != nil {
		return nil, err
	}
	conn, err := rc.inner.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	conn.attachRelay(cache.New(DefaultRelayMemoryLimit))
	return conn, nil
}
