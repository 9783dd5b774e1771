// Package config resolves and validates the client configuration. A Config
// is produced once at startup and never mutated afterwards; per-endpoint
// variants are derived by cloning.
package config

import (
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/objcache/objcache/ecode"
)

// Serializer and compression choices for the wire transform.
const (
	SerializerJSON = "json"

	CompressionNone   = "none"
	CompressionGzip   = "gzip"
	CompressionBrotli = "brotli"
)

// DisabledEnv short-circuits the client before any connection attempt.
const DisabledEnv = "OBJCACHE_DISABLED"

// Analytics controls the measurement pipeline.
type Analytics struct {
	Enabled        bool          `json:"enabled" yaml:"enabled"`
	Retention      time.Duration `json:"retention" yaml:"retention"`
	SampleInterval time.Duration `json:"sample_interval" yaml:"sample_interval"`
}

// Config is the immutable resolved client configuration.
type Config struct {
	Topology Topology `json:"topology" yaml:"topology"`
	Addr     string   `json:"addr" yaml:"addr"`
	Addrs    []string `json:"addrs" yaml:"addrs"`
	Servers  []Server `json:"servers" yaml:"servers"`

	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Database int    `json:"database" yaml:"database"`

	DialTimeout   time.Duration `json:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout   time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout  time.Duration `json:"write_timeout" yaml:"write_timeout"`
	RetryInterval time.Duration `json:"retry_interval" yaml:"retry_interval"`
	MaxRetries    int           `json:"max_retries" yaml:"max_retries"`

	TLS *TLS `json:"tls" yaml:"tls"`

	Serializer  string `json:"serializer" yaml:"serializer"`
	Compression string `json:"compression" yaml:"compression"`
	Persistent  bool   `json:"persistent" yaml:"persistent"`

	Prefix string `json:"prefix" yaml:"prefix"`
	Debug  bool   `json:"debug" yaml:"debug"`

	Analytics Analytics `json:"analytics" yaml:"analytics"`
}

// Load reads the configuration file at path and resolves a Config.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("OBJCACHE")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	cfg := New(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// New resolves a Config from viper without validating it.
func New(v *viper.Viper) *Config {
	var servers []Server
	var raw []map[string]string
	if err := v.UnmarshalKey("redis.servers", &raw); err == nil {
		for _, m := range raw {
			servers = append(servers, Server{Addr: m["addr"], Role: m["role"]})
		}
	}

	return &Config{
		Topology:      Topology(getStringOrDefault(v, "redis.topology", string(TopologyInstance))),
		Addr:          v.GetString("redis.addr"),
		Addrs:         v.GetStringSlice("redis.addrs"),
		Servers:       servers,
		Username:      v.GetString("redis.username"),
		Password:      v.GetString("redis.password"),
		Database:      v.GetInt("redis.database"),
		DialTimeout:   getDurationOrDefault(v, "redis.dial_timeout", 5*time.Second),
		ReadTimeout:   getDurationOrDefault(v, "redis.read_timeout", 3*time.Second),
		WriteTimeout:  getDurationOrDefault(v, "redis.write_timeout", 3*time.Second),
		RetryInterval: v.GetDuration("redis.retry_interval"),
		MaxRetries:    v.GetInt("redis.max_retries"),
		TLS:           getTLS(v),
		Serializer:    getStringOrDefault(v, "redis.serializer", SerializerJSON),
		Compression:   getStringOrDefault(v, "redis.compression", CompressionNone),
		Persistent:    v.GetBool("redis.persistent"),
		Prefix:        getStringOrDefault(v, "redis.prefix", "objcache"),
		Debug:         v.GetBool("redis.debug"),
		Analytics: Analytics{
			Enabled:        v.GetBool("analytics.enabled"),
			Retention:      getDurationOrDefault(v, "analytics.retention", time.Hour),
			SampleInterval: getDurationOrDefault(v, "analytics.sample_interval", 3*time.Second),
		},
	}
}

// Validate checks topology and endpoint consistency, failing fast before
// any connection attempt.
func (c *Config) Validate() error {
	if !c.Topology.Valid() {
		return ecode.NewConfigError("unknown topology %q", c.Topology)
	}

	switch c.Topology {
	case TopologyCluster:
		if len(c.Addrs) == 0 {
			return ecode.NewConfigError("cluster topology requires an endpoint list")
		}
	case TopologyReplicated:
		if len(c.Servers) == 0 {
			return ecode.NewConfigError("replicated topology requires role-tagged servers")
		}
		masters := 0
		for _, s := range c.Servers {
			if s.Role == RoleMaster {
				masters++
			}
		}
		if masters != 1 {
			return ecode.NewConfigError("replicated topology requires exactly one master, got %d", masters)
		}
	default:
		if c.Addr == "" {
			return ecode.NewConfigError("%s topology requires an address", c.Topology)
		}
	}

	switch c.Serializer {
	case SerializerJSON:
	default:
		return ecode.NewConfigError("unsupported serializer %q", c.Serializer)
	}

	switch c.Compression {
	case CompressionNone, CompressionGzip, CompressionBrotli:
	default:
		return ecode.NewConfigError("unsupported compression %q", c.Compression)
	}

	return nil
}

// Clone derives an independent copy, used when per-endpoint variants are
// needed. The receiver is never mutated.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Addrs = append([]string(nil), c.Addrs...)
	clone.Servers = append([]Server(nil), c.Servers...)
	if c.TLS != nil {
		tlsCopy := *c.TLS
		clone.TLS = &tlsCopy
	}
	return &clone
}

// Disabled reports whether the client is switched off via environment.
func Disabled() bool {
	v := os.Getenv(DisabledEnv)
	return v != "" && v != "0" && v != "false"
}

func getTLS(v *viper.Viper) *TLS {
	if !v.GetBool("redis.tls.enabled") {
		return nil
	}
	return &TLS{
		Enabled:            true,
		CertFile:           v.GetString("redis.tls.cert_file"),
		KeyFile:            v.GetString("redis.tls.key_file"),
		CAFile:             v.GetString("redis.tls.ca_file"),
		ServerName:         v.GetString("redis.tls.server_name"),
		InsecureSkipVerify: v.GetBool("redis.tls.insecure_skip_verify"),
	}
}

func getStringOrDefault(v *viper.Viper, key, defaultValue string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return defaultValue
}

func getDurationOrDefault(v *viper.Viper, key string, defaultValue time.Duration) time.Duration {
	if v.IsSet(key) {
		return v.GetDuration(key)
	}
	return defaultValue
}
