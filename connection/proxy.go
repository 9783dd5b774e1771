package connection

import (
	"context"

	"github.com/objcache/objcache/config"
	"github.com/objcache/objcache/ecode"
	"github.com/objcache/objcache/logging/logger"
)

// ProxyConnector fronts a proxy such as twemproxy or envoy. It delegates
// construction to the standalone connector but restricts the feature set:
// proxies multiplex a single logical database and hide the topology behind
// them, so database selection, cluster and replica discovery are rejected
// at connect time.
type ProxyConnector struct {
	inner *InstanceConnector
	log   *logger.Logger
}

// NewProxyConnector creates the proxy-fronted connector.
func NewProxyConnector(log *logger.Logger) *ProxyConnector {
	if log == nil {
		log = logger.StandardLogger()
	}
	return &ProxyConnector{inner: NewInstanceConnector(log), log: log}
}

// Boot rejects configurations the proxy cannot serve.
func (pc *ProxyConnector) Boot(cfg *config.Config) error {
	if cfg.Database != 0 {
		return ecode.NewConfigError("proxy topology does not support database index %d", cfg.Database)
	}
	if len(cfg.Addrs) > 0 {
		return ecode.NewConfigError("proxy topology does not support cluster endpoints")
	}
	if len(cfg.Servers) > 0 {
		return ecode.NewConfigError("proxy topology does not support replicated servers")
	}
	return bootTransforms(pc, cfg)
}

// Supports reports the restricted proxy capability set.
func (pc *ProxyConnector) Supports(f Feature) bool {
	switch f {
	case FeatureSerializerJSON, FeatureCompressionNone, FeatureCompressionGzip,
		FeatureCompressionBrotli:
		return true
	}
	return false
}

// Connect validates the proxy constraints and delegates to the standalone
// connector.
func (pc *ProxyConnector) Connect(ctx context.Context, cfg *config.Config) (*Connection, error) {
	if err := pc.Boot(cfg); err != nil {
		return nil, err
	}
	return pc.inner.Connect(ctx, cfg)
}
