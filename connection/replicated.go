package connection

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/objcache/objcache/config"
	"github.com/objcache/objcache/ecode"
	"github.com/objcache/objcache/logging/logger"
)

// ReplicaPicker chooses which of n members serves the next read. The
// routing policy is a collaborator; round-robin is the default.
type ReplicaPicker interface {
	Pick(n int) int
}

type roundRobinPicker struct {
	next int
}

func (p *roundRobinPicker) Pick(n int) int {
	if n == 0 {
		return 0
	}
	i := p.next % n
	p.next++
	return i
}

// member is one endpoint of the replicated composite, tagged with its role.
type member struct {
	client *redis.Client
	addr   string
	role   string
}

// replicatedClient routes writes to the master and reads across all
// members. It satisfies Client so the Connection treats it like any single
// backend handle.
type replicatedClient struct {
	master  *member
	members []*member
	picker  ReplicaPicker
}

func (rc *replicatedClient) reader() *redis.Client {
	return rc.members[rc.picker.Pick(len(rc.members))].client
}

// writeCommands is the command set that must reach the master.
var writeCommands = map[string]struct{}{
	"set": {}, "setex": {}, "psetex": {}, "del": {}, "expire": {}, "pexpire": {},
	"zadd": {}, "zremrangebyscore": {}, "flushdb": {}, "flushall": {}, "incr": {},
	"decr": {}, "incrby": {}, "decrby": {}, "hset": {}, "hdel": {}, "lpush": {},
	"rpush": {}, "sadd": {}, "srem": {},
}

func (rc *replicatedClient) Do(ctx context.Context, args ...any) *redis.Cmd {
	if len(args) > 0 {
		if name, ok := args[0].(string); ok {
			if _, write := writeCommands[strings.ToLower(name)]; !write {
				return rc.reader().Do(ctx, args...)
			}
		}
	}
	return rc.master.client.Do(ctx, args...)
}

func (rc *replicatedClient) Ping(ctx context.Context) *redis.StatusCmd {
	return rc.reader().Ping(ctx)
}

func (rc *replicatedClient) Info(ctx context.Context, section ...string) *redis.StringCmd {
	return rc.reader().Info(ctx, section...)
}

func (rc *replicatedClient) FlushDB(ctx context.Context) *redis.StatusCmd {
	return rc.master.client.FlushDB(ctx)
}

func (rc *replicatedClient) DBSize(ctx context.Context) *redis.IntCmd {
	return rc.reader().DBSize(ctx)
}

func (rc *replicatedClient) Get(ctx context.Context, key string) *redis.StringCmd {
	return rc.reader().Get(ctx, key)
}

func (rc *replicatedClient) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	return rc.master.client.Set(ctx, key, value, expiration)
}

func (rc *replicatedClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	return rc.master.client.Del(ctx, keys...)
}

func (rc *replicatedClient) ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd {
	return rc.master.client.ZAdd(ctx, key, members...)
}

func (rc *replicatedClient) ZRevRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd {
	return rc.reader().ZRevRangeByScore(ctx, key, opt)
}

func (rc *replicatedClient) ZRemRangeByScore(ctx context.Context, key, min, max string) *redis.IntCmd {
	return rc.master.client.ZRemRangeByScore(ctx, key, min, max)
}

func (rc *replicatedClient) Close() error {
	var errs []error
	for _, m := range rc.members {
		if err := m.client.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReplicatedConnector connects one master and N replicas behind a composite
// that routes writes to the master and fans reads across members.
type ReplicatedConnector struct {
	log    *logger.Logger
	picker ReplicaPicker
}

// NewReplicatedConnector creates the replicated connector with round-robin
// read routing.
func NewReplicatedConnector(log *logger.Logger) *ReplicatedConnector {
	if log == nil {
		log = logger.StandardLogger()
	}
	return &ReplicatedConnector{log: log, picker: &roundRobinPicker{}}
}

// WithPicker swaps the read routing policy.
func (rc *ReplicatedConnector) WithPicker(p ReplicaPicker) *ReplicatedConnector {
	rc.picker = p
	return rc
}

// Boot verifies transforms and the server role partition.
func (rc *ReplicatedConnector) Boot(cfg *config.Config) error {
	if _, _, err := partition(cfg.Servers); err != nil {
		return err
	}
	return bootTransforms(rc, cfg)
}

// Supports reports the replicated capability set.
func (rc *ReplicatedConnector) Supports(f Feature) bool {
	switch f {
	case FeatureSerializerJSON, FeatureCompressionNone, FeatureCompressionGzip,
		FeatureCompressionBrotli, FeatureReplication, FeatureMultiDatabase:
		return true
	}
	return false
}

// Connect builds one client per endpoint from a cloned per-endpoint
// configuration and wraps the composite in a single Connection.
func (rc *ReplicatedConnector) Connect(ctx context.Context, cfg *config.Config) (*Connection, error) {
	masterServer, replicaServers, err := partition(cfg.Servers)
	if err != nil {
		return nil, err
	}

	tlsConfig, err := mergedTLS(cfg, rc.log)
	if err != nil {
		return nil, ecode.NewConfigError("%v", err)
	}

	newMember := func(s config.Server) *member {
		child := cfg.Clone()
		child.Addr = s.Addr
		return &member{
			client: redis.NewClient(&redis.Options{
				Addr:         child.Addr,
				Username:     child.Username,
				Password:     child.Password,
				DB:           child.Database,
				DialTimeout:  child.DialTimeout,
				ReadTimeout:  child.ReadTimeout,
				WriteTimeout: child.WriteTimeout,
				MaxRetries:   child.MaxRetries,
				TLSConfig:    tlsConfig,
				PoolSize:     10,
			}),
			addr: s.Addr,
			role: s.Role,
		}
	}

	masterMember := newMember(masterServer)
	composite := &replicatedClient{
		master:  masterMember,
		members: []*member{masterMember},
		picker:  rc.picker,
	}
	for _, s := range replicaServers {
		composite.members = append(composite.members, newMember(s))
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := masterMember.client.Ping(pingCtx).Err(); err != nil {
		_ = composite.Close()
		return nil, &ecode.BackendMissingError{Backend: "redis master", Err: err}
	}

	conn, err := New(composite, cfg, rc.log)
	if err != nil {
		_ = composite.Close()
		return nil, err
	}
	if err := verifyServer(ctx, conn); err != nil {
		_ = composite.Close()
		return nil, err
	}
	return conn, nil
}

// partition splits servers into exactly one master and the replicas,
// regardless of input order.
func partition(servers []config.Server) (config.Server, []config.Server, error) {
	var master config.Server
	var replicas []config.Server
	masters := 0
	for _, s := range servers {
		switch s.Role {
		case config.RoleMaster:
			master = s
			masters++
		case config.RoleReplica:
			replicas = append(replicas, s)
		default:
			return config.Server{}, nil, ecode.NewConfigError("unknown server role %q for %s", s.Role, s.Addr)
		}
	}
	if masters != 1 {
		return config.Server{}, nil, ecode.NewConfigError("replicated topology requires exactly one master, got %d", masters)
	}
	return master, replicas, nil
}
