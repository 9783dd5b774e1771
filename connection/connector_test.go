package connection

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objcache/objcache/config"
	"github.com/objcache/objcache/ecode"
)

// infoClient answers every raw command with a canned info reply.
type infoClient struct {
	reply string
}

func (c *infoClient) Do(ctx context.Context, args ...any) *redis.Cmd {
	cmd := redis.NewCmd(ctx, args...)
	cmd.SetVal(c.reply)
	return cmd
}

func (c *infoClient) Ping(ctx context.Context) *redis.StatusCmd { return redis.NewStatusCmd(ctx) }
func (c *infoClient) Info(ctx context.Context, section ...string) *redis.StringCmd {
	return redis.NewStringCmd(ctx)
}
func (c *infoClient) FlushDB(ctx context.Context) *redis.StatusCmd { return redis.NewStatusCmd(ctx) }
func (c *infoClient) DBSize(ctx context.Context) *redis.IntCmd     { return redis.NewIntCmd(ctx) }
func (c *infoClient) Get(ctx context.Context, key string) *redis.StringCmd {
	return redis.NewStringCmd(ctx)
}
func (c *infoClient) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	return redis.NewStatusCmd(ctx)
}
func (c *infoClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	return redis.NewIntCmd(ctx)
}
func (c *infoClient) ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd {
	return redis.NewIntCmd(ctx)
}
func (c *infoClient) ZRevRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd {
	return redis.NewStringSliceCmd(ctx)
}
func (c *infoClient) ZRemRangeByScore(ctx context.Context, key, min, max string) *redis.IntCmd {
	return redis.NewIntCmd(ctx)
}
func (c *infoClient) Close() error { return nil }

func infoConnection(t *testing.T, reply string) *Connection {
	t.Helper()
	conn, err := New(&infoClient{reply: reply}, testConfig("127.0.0.1:6379"), nil)
	require.NoError(t, err)
	return conn
}

func TestVerifyServer(t *testing.T) {
	t.Run("supported version", func(t *testing.T) {
		conn := infoConnection(t, "# Server\r\nredis_version:7.2.4\r\nuptime_in_seconds:100\r\n")
		assert.NoError(t, verifyServer(context.Background(), conn))
	})

	t.Run("outdated version", func(t *testing.T) {
		conn := infoConnection(t, "redis_version:5.0.7\r\n")
		err := verifyServer(context.Background(), conn)
		var outdated *ecode.BackendOutdatedError
		require.ErrorAs(t, err, &outdated)
		assert.Equal(t, "5.0.7", outdated.Current)
		assert.Equal(t, MinServerVersion, outdated.Minimum)
	})

	t.Run("version at the floor", func(t *testing.T) {
		conn := infoConnection(t, "redis_version:6.0.0\r\n")
		assert.NoError(t, verifyServer(context.Background(), conn))
	})

	t.Run("unrecognized backend", func(t *testing.T) {
		conn := infoConnection(t, "# Server\r\nsome_other_field:1\r\n")
		err := verifyServer(context.Background(), conn)
		var missing *ecode.BackendMissingError
		assert.ErrorAs(t, err, &missing)
	})
}

func TestResolve(t *testing.T) {
	base := func() *config.Config { return testConfig("127.0.0.1:6379") }

	t.Run("instance by default", func(t *testing.T) {
		c, err := Resolve(base(), nil)
		require.NoError(t, err)
		assert.IsType(t, &InstanceConnector{}, c)
	})

	t.Run("endpoint list implies cluster", func(t *testing.T) {
		cfg := base()
		cfg.Addrs = []string{"10.0.0.1:6379", "10.0.0.2:6379"}
		c, err := Resolve(cfg, nil)
		require.NoError(t, err)
		assert.IsType(t, &ClusterConnector{}, c)
	})

	t.Run("role-tagged servers imply replication", func(t *testing.T) {
		cfg := base()
		cfg.Servers = []config.Server{{Addr: "10.0.0.1:6379", Role: config.RoleMaster}}
		c, err := Resolve(cfg, nil)
		require.NoError(t, err)
		assert.IsType(t, &ReplicatedConnector{}, c)
	})

	t.Run("explicit topology wins", func(t *testing.T) {
		cfg := base()
		cfg.Topology = config.TopologyProxy
		cfg.Addrs = []string{"10.0.0.1:6379"}
		c, err := Resolve(cfg, nil)
		require.NoError(t, err)
		assert.IsType(t, &ProxyConnector{}, c)
	})

	t.Run("relay", func(t *testing.T) {
		cfg := base()
		cfg.Topology = config.TopologyRelay
		c, err := Resolve(cfg, nil)
		require.NoError(t, err)
		assert.IsType(t, &RelayConnector{}, c)
	})

	t.Run("unknown topology", func(t *testing.T) {
		cfg := base()
		cfg.Topology = "sentinel"
		_, err := Resolve(cfg, nil)
		assert.True(t, ecode.IsConfig(err))
	})
}

func TestProxyBoot(t *testing.T) {
	pc := NewProxyConnector(nil)

	cfg := testConfig("127.0.0.1:6379")
	assert.NoError(t, pc.Boot(cfg))

	t.Run("rejects database index", func(t *testing.T) {
		cfg := testConfig("127.0.0.1:6379")
		cfg.Database = 2
		assert.True(t, ecode.IsConfig(pc.Boot(cfg)))

		// Connect re-checks before dialing anything.
		_, err := pc.Connect(context.Background(), cfg)
		assert.True(t, ecode.IsConfig(err))
	})

	t.Run("rejects cluster endpoints", func(t *testing.T) {
		cfg := testConfig("127.0.0.1:6379")
		cfg.Addrs = []string{"10.0.0.1:6379"}
		assert.True(t, ecode.IsConfig(pc.Boot(cfg)))
	})

	t.Run("rejects replicated servers", func(t *testing.T) {
		cfg := testConfig("127.0.0.1:6379")
		cfg.Servers = []config.Server{{Addr: "10.0.0.1:6379", Role: config.RoleMaster}}
		assert.True(t, ecode.IsConfig(pc.Boot(cfg)))
	})
}

func TestRelayBoot(t *testing.T) {
	rc := NewRelayConnector(nil)

	cfg := testConfig("127.0.0.1:6379")
	cfg.Database = 2 // multi-database is fine for the relay
	assert.NoError(t, rc.Boot(cfg))

	t.Run("rejects cluster endpoints", func(t *testing.T) {
		cfg := testConfig("127.0.0.1:6379")
		cfg.Addrs = []string{"10.0.0.1:6379"}
		assert.True(t, ecode.IsConfig(rc.Boot(cfg)))
	})

	t.Run("rejects replicated servers", func(t *testing.T) {
		cfg := testConfig("127.0.0.1:6379")
		cfg.Servers = []config.Server{{Addr: "10.0.0.1:6379", Role: config.RoleReplica}}
		assert.True(t, ecode.IsConfig(rc.Boot(cfg)))
	})
}

func TestClusterBootRejectsDatabase(t *testing.T) {
	cc := NewClusterConnector(nil)
	cfg := testConfig("")
	cfg.Addrs = []string{"10.0.0.1:6379"}
	cfg.Database = 1
	assert.True(t, ecode.IsConfig(cc.Boot(cfg)))

	cfg.Database = 0
	assert.NoError(t, cc.Boot(cfg))
}

func TestBootRejectsUnsupportedTransforms(t *testing.T) {
	ic := NewInstanceConnector(nil)
	cfg := testConfig("127.0.0.1:6379")
	cfg.Compression = "zstd"
	assert.True(t, ecode.IsConfig(ic.Boot(cfg)))
}

func TestPartition(t *testing.T) {
	t.Run("master found regardless of order", func(t *testing.T) {
		servers := []config.Server{
			{Addr: "10.0.0.2:6379", Role: config.RoleReplica},
			{Addr: "10.0.0.1:6379", Role: config.RoleMaster},
			{Addr: "10.0.0.3:6379", Role: config.RoleReplica},
		}
		master, replicas, err := partition(servers)
		require.NoError(t, err)
		assert.Equal(t, "10.0.0.1:6379", master.Addr)
		assert.Len(t, replicas, 2)
	})

	t.Run("no master", func(t *testing.T) {
		_, _, err := partition([]config.Server{{Addr: "10.0.0.1:6379", Role: config.RoleReplica}})
		assert.True(t, ecode.IsConfig(err))
	})

	t.Run("two masters", func(t *testing.T) {
		_, _, err := partition([]config.Server{
			{Addr: "10.0.0.1:6379", Role: config.RoleMaster},
			{Addr: "10.0.0.2:6379", Role: config.RoleMaster},
		})
		assert.True(t, ecode.IsConfig(err))
	})

	t.Run("unknown role", func(t *testing.T) {
		_, _, err := partition([]config.Server{{Addr: "10.0.0.1:6379", Role: "sentinel"}})
		assert.True(t, ecode.IsConfig(err))
	})
}

func TestRoundRobinPicker(t *testing.T) {
	p := &roundRobinPicker{}
	got := []int{p.Pick(3), p.Pick(3), p.Pick(3), p.Pick(3)}
	assert.Equal(t, []int{0, 1, 2, 0}, got)
	assert.Equal(t, 0, p.Pick(0))
}

func TestVersionCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"6.0.0", "6.0.0", 0},
		{"7.2.4", "6.0.0", 1},
		{"5.0.7", "6.0.0", -1},
		{"6.0", "6.0.0", 0},
		{"6.0.1", "6.0", 1},
		{"10.0.0", "9.9.9", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, versionCompare(tt.a, tt.b), "%s vs %s", tt.a, tt.b)
	}
}

func TestInfoField(t *testing.T) {
	raw := "# Server\r\nredis_version:7.2.4\r\nredis_mode:standalone\r\n"
	assert.Equal(t, "7.2.4", infoField(raw, "redis_version"))
	assert.Equal(t, "standalone", infoField(raw, "redis_mode"))
	assert.Empty(t, infoField(raw, "uptime_in_seconds"))
}
