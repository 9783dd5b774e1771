package connection

import (
	"context"
	"crypto/tls"
	"strconv"
	"strings"

	"github.com/objcache/objcache/config"
	"github.com/objcache/objcache/ecode"
	"github.com/objcache/objcache/logging/logger"
)

// Feature names a backend capability a caller can probe before connecting.
type Feature string

const (
	FeatureSerializerJSON    Feature = "serializer-json"
	FeatureCompressionNone   Feature = "compression-none"
	FeatureCompressionGzip   Feature = "compression-gzip"
	FeatureCompressionBrotli Feature = "compression-brotli"
	FeatureCluster           Feature = "cluster"
	FeatureReplication       Feature = "replication"
	FeatureMultiDatabase     Feature = "multi-database"
)

// MinServerVersion is the oldest backend server version the client accepts.
const MinServerVersion = "6.0.0"

// Connector translates a Configuration into a concrete, correctly
// constructed Connection for one topology.
type Connector interface {
	// Boot fails fast when the connector cannot serve the configuration,
	// before any connection attempt.
	Boot(cfg *config.Config) error
	// Connect builds the backend client and wraps it in a Connection.
	Connect(ctx context.Context, cfg *config.Config) (*Connection, error)
	// Supports reports whether the connector exposes the given capability.
	Supports(f Feature) bool
}

// TLSOverride is a process-global TLS configuration that takes precedence
// over the per-connection settings.
//
// Deprecated: configure TLS through config.Config instead. Uses are logged
// with a deprecation warning.
var TLSOverride *tls.Config

// Connect resolves the connector for the configured topology and opens a
// Connection. The disable switch is honored before any connection attempt.
func Connect(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Connection, error) {
	if config.Disabled() {
		return nil, ecode.NewConfigError("client disabled via %s", config.DisabledEnv)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	connector, err := Resolve(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := connector.Boot(cfg); err != nil {
		return nil, err
	}
	return connector.Connect(ctx, cfg)
}

// Resolve picks the connector for the configuration: an explicit topology
// wins; otherwise a cluster endpoint list selects the cluster connector and
// multiple role-tagged servers select the replicated one.
func Resolve(cfg *config.Config, log *logger.Logger) (Connector, error) {
	if log == nil {
		log = logger.StandardLogger()
	}

	switch cfg.Topology {
	case config.TopologyInstance:
		if len(cfg.Addrs) > 0 {
			return NewClusterConnector(log), nil
		}
		if len(cfg.Servers) > 0 {
			return NewReplicatedConnector(log), nil
		}
		return NewInstanceConnector(log), nil
	case config.TopologyCluster:
		return NewClusterConnector(log), nil
	case config.TopologyReplicated:
		return NewReplicatedConnector(log), nil
	case config.TopologyProxy:
		return NewProxyConnector(log), nil
	case config.TopologyRelay:
		return NewRelayConnector(log), nil
	}
	return nil, ecode.NewConfigError("unknown topology %q", cfg.Topology)
}

// bootTransforms verifies the configured transforms against the connector's
// capability set, failing fast rather than on first command.
func bootTransforms(c Connector, cfg *config.Config) error {
	if !c.Supports(Feature("serializer-" + cfg.Serializer)) {
		return ecode.NewConfigError("serializer %q not supported by this topology", cfg.Serializer)
	}
	if !c.Supports(Feature("compression-" + cfg.Compression)) {
		return ecode.NewConfigError("compression %q not supported by this topology", cfg.Compression)
	}
	return nil
}

// mergedTLS resolves the effective TLS configuration: the deprecated global
// override wins over per-connection settings.
func mergedTLS(cfg *config.Config, log *logger.Logger) (*tls.Config, error) {
	if TLSOverride != nil {
		log.Warn("the global TLS override is deprecated; configure TLS through the connection settings")
		return TLSOverride, nil
	}
	return cfg.TLS.Build()
}

// verifyServer checks the backend's reported version against the supported
// floor. A missing version field means the backend is not a recognized
// server.
func verifyServer(ctx context.Context, conn *Connection) error {
	raw, err := conn.Memoize(ctx, "info")
	if err != nil {
		return &ecode.BackendMissingError{Backend: "redis", Err: err}
	}

	version := infoField(raw, "redis_version")
	if version == "" {
		return &ecode.BackendMissingError{Backend: "redis"}
	}
	if versionCompare(version, MinServerVersion) < 0 {
		return &ecode.BackendOutdatedError{Backend: "redis", Current: version, Minimum: MinServerVersion}
	}
	return nil
}

func infoField(raw, field string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if v, ok := strings.CutPrefix(line, field+":"); ok {
			return v
		}
	}
	return ""
}

// versionCompare compares dotted numeric versions, returning -1, 0 or 1.
func versionCompare(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var an, bn int
		if i < len(as) {
			an, _ = strconv.Atoi(strings.TrimFunc(as[i], func(r rune) bool { return r < '0' || r > '9' }))
		}
		if i < len(bs) {
			bn, _ = strconv.Atoi(bs[i])
		}
		if an != bn {
			if an < bn {
				return -1
			}
			return 1
		}
	}
	return 0
}
