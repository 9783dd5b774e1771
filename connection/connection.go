// Package connection wraps a single backend client behind one uniform
// command interface, measuring per-command latency and normalizing all
// backend failures into one error type. Topology connectors in this package
// construct the right client for standalone, cluster, replicated, proxied
// and relay deployments.
package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/objcache/objcache/cache"
	"github.com/objcache/objcache/config"
	"github.com/objcache/objcache/ecode"
	"github.com/objcache/objcache/logging/logger"
	"github.com/objcache/objcache/utils"
)

// Connection owns exactly one backend client for its lifetime. It is
// request-scoped and not safe for concurrent use; each request-handling
// process owns its own instance.
type Connection struct {
	client Client
	cfg    *config.Config
	log    *logger.Logger
	codec  *Codec

	ioWait []float64
	memo   map[string]string
	raw    bool

	relay *cache.Cache
}

// New wraps a backend client. The codec is derived from the configuration's
// serializer and compression choices.
func New(client Client, cfg *config.Config, log *logger.Logger) (*Connection, error) {
	codec, err := NewCodec(cfg.Serializer, cfg.Compression)
	if err != nil {
		return nil, ecode.NewConfigError("%v", err)
	}
	if log == nil {
		log = logger.StandardLogger()
	}
	return &Connection{
		client: client,
		cfg:    cfg,
		log:    log,
		codec:  codec,
		memo:   make(map[string]string),
	}, nil
}

// Client returns the underlying backend client.
func (c *Connection) Client() Client { return c.client }

// Config returns the resolved configuration this connection was built from.
func (c *Connection) Config() *config.Config { return c.cfg }

// Relay returns the near-client cache layer, or nil when the relay topology
// is not active.
func (c *Connection) Relay() *cache.Cache { return c.relay }

// Execute runs a named command against the backend. Successful calls are
// timed on the monotonic clock and appended to the latency sequence; a nil
// reply (key absence) counts as success. Failures are logged and returned
// as a normalized ConnectionError with no latency sample recorded.
func (c *Connection) Execute(ctx context.Context, command string, args ...any) (any, error) {
	argv := make([]any, 0, len(args)+1)
	argv = append(argv, command)
	argv = append(argv, args...)

	start := time.Now()
	result, err := c.client.Do(ctx, argv...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		fields := logger.Fields{"command": command, "error": err.Error()}
		if c.cfg.Debug {
			fields["parameters"] = args
		}
		c.log.WithFields(fields).Error("command failed")
		return nil, ecode.NewConnectionError(command, err)
	}

	elapsed := time.Since(start).Seconds()
	c.ioWait = append(c.ioWait, elapsed)

	fields := logger.Fields{"command": command, "elapsed": elapsed}
	if c.cfg.Debug {
		fields["parameters"] = args
		fields["result"] = result
	}
	c.log.WithFields(fields).Debug("command executed")

	return result, nil
}

// IOWait returns a copy of the raw latency sequence in call order, in
// seconds.
func (c *Connection) IOWait() []float64 {
	out := make([]float64, len(c.ioWait))
	copy(out, c.ioWait)
	return out
}

// IOWaitSum returns the cumulative time spent waiting on the backend.
func (c *Connection) IOWaitSum() float64 {
	return utils.Sum(c.ioWait)
}

// IOWaitMedian returns the median command latency. The second return is
// false when no samples have been recorded.
func (c *Connection) IOWaitMedian() (float64, bool) {
	return utils.Median(c.ioWait)
}

// Memoize executes one of the allowed read-only commands at most once for
// the lifetime of the connection and returns the cached reply thereafter.
// Only "ping" and "info" are safe to memoize within a request's timeframe;
// any other command name is an invalid argument.
func (c *Connection) Memoize(ctx context.Context, command string) (string, error) {
	switch command {
	case "ping", "info":
	default:
		return "", fmt.Errorf("%w: command %q cannot be memoized", ecode.ErrInvalidArgument, command)
	}

	if cached, ok := c.memo[command]; ok {
		return cached, nil
	}

	result, err := c.Execute(ctx, command)
	if err != nil {
		return "", err
	}

	reply := fmt.Sprint(result)
	c.memo[command] = reply
	return reply, nil
}

// WithoutMutations disables the serialization and compression transforms
// for the duration of fn, so raw bytes pass through the wire untouched.
// The prior setting is restored even when fn panics.
func (c *Connection) WithoutMutations(fn func() error) error {
	prev := c.raw
	c.raw = true
	defer func() { c.raw = prev }()
	return fn()
}

// SetValue writes a value through the configured transforms. A ttl of zero
// stores without expiry.
func (c *Connection) SetValue(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := c.encode(value)
	if err != nil {
		return err
	}
	args := []any{key, data}
	if ttl > 0 {
		args = append(args, "px", ttl.Milliseconds())
	}
	_, err = c.Execute(ctx, "set", args...)
	return err
}

// GetValue reads a value through the configured transforms into dest. The
// boolean reports whether the key existed. When mutations are disabled dest
// must be a *[]byte receiving the raw reply.
func (c *Connection) GetValue(ctx context.Context, key string, dest any) (bool, error) {
	result, err := c.Execute(ctx, "get", key)
	if err != nil {
		return false, err
	}
	if result == nil {
		return false, nil
	}

	var raw []byte
	switch v := result.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		raw = []byte(fmt.Sprint(v))
	}

	if c.raw {
		b, ok := dest.(*[]byte)
		if !ok {
			return false, fmt.Errorf("%w: raw reads require a *[]byte destination", ecode.ErrInvalidArgument)
		}
		*b = raw
		return true, nil
	}
	if err := c.codec.Decode(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Flush removes every key in the active database.
func (c *Connection) Flush(ctx context.Context) error {
	_, err := c.Execute(ctx, "flushdb")
	return err
}

func (c *Connection) encode(value any) (any, error) {
	if c.raw {
		return value, nil
	}
	data, err := c.codec.Encode(value)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Connection) attachRelay(layer *cache.Cache) {
	c.relay = layer
}
