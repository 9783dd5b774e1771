package connection

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/objcache/objcache/config"
	"github.com/objcache/objcache/ecode"
	"github.com/objcache/objcache/logging/logger"
)

// ClusterConnector connects to a sharded cluster; the backend library
// handles slot routing client-side.
type ClusterConnector struct {
	log *logger.Logger
}

// NewClusterConnector creates the cluster connector.
func NewClusterConnector(log *logger.Logger) *ClusterConnector {
	if log == nil {
		log = logger.StandardLogger()
	}
	return &ClusterConnector{log: log}
}

// Boot verifies the configured transforms and that the cluster topology is
// addressable. Clusters expose a single keyspace, so a non-zero database
// index is a configuration error.
func (cc *ClusterConnector) Boot(cfg *config.Config) error {
	if cfg.Database != 0 {
		return ecode.NewConfigError("cluster topology does not support database index %d", cfg.Database)
	}
	if err := bootTransforms(cc, cfg); err != nil {
		return err
	}
	return nil
}

// Supports reports the cluster capability set.
func (cc *ClusterConnector) Supports(f Feature) bool {
	switch f {
	case FeatureSerializerJSON, FeatureCompressionNone, FeatureCompressionGzip,
		FeatureCompressionBrotli, FeatureCluster:
		return true
	}
	return false
}

// Connect builds the cluster client and wraps it in a Connection.
func (cc *ClusterConnector) Connect(ctx context.Context, cfg *config.Config) (*Connection, error) {
	tlsConfig, err := mergedTLS(cfg, cc.log)
	if err != nil {
		return nil, ecode.NewConfigError("%v", err)
	}

	client := redis.NewClusterClient(&redis.ClusterOptions{
		Addrs:        cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   cfg.MaxRetries,
		TLSConfig:    tlsConfig,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, &ecode.BackendMissingError{Backend: "redis cluster", Err: err}
	}

	conn, err := New(client, cfg, cc.log)
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
