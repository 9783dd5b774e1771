package connection

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/objcache/objcache/config"
	"github.com/objcache/objcache/ecode"
	"github.com/objcache/objcache/logging/logger"
)

// InstanceConnector connects to a single standalone backend server.
type InstanceConnector struct {
	log *logger.Logger
}

// NewInstanceConnector creates the standalone connector.
func NewInstanceConnector(log *logger.Logger) *InstanceConnector {
	if log == nil {
		log = logger.StandardLogger()
	}
	return &InstanceConnector{log: log}
}

// Boot verifies the configured transforms before any connection attempt.
func (ic *InstanceConnector) Boot(cfg *config.Config) error {
	return bootTransforms(ic, cfg)
}

// Supports reports the standalone capability set.
func (ic *InstanceConnector) Supports(f Feature) bool {
	switch f {
	case FeatureSerializerJSON, FeatureCompressionNone, FeatureCompressionGzip,
		FeatureCompressionBrotli, FeatureMultiDatabase:
		return true
	}
	return false
}

// Connect builds a single client, verifies reachability and server version,
// and wraps it in a Connection.
func (ic *InstanceConnector) Connect(ctx context.Context, cfg *config.Config) (*Connection, error) {
	client, err := ic.newClient(cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, &ecode.BackendMissingError{Backend: "redis", Err: err}
	}

	conn, err := New(client, cfg, ic.log)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := verifyServer(ctx, conn); err != nil {
		_ = client.Close()
		return nil, err
	}
	return conn, nil
}

func (ic *InstanceConnector) newClient(cfg *config.Config) (*redis.Client, error) {
	tlsConfig, err := mergedTLS(cfg, ic.log)
	if err != nil {
		return nil, ecode.NewConfigError("%v", err)
	}

	return redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Username:        cfg.Username,
		Password:        cfg.Password,
		DB:              cfg.Database,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: cfg.RetryInterval,
		MaxRetryBackoff: cfg.RetryInterval,
		TLSConfig:       tlsConfig,
		PoolSize:        10,
	}), nil
}
