package application

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/go-yogan-liqguard/breaker"
	"github.com/KOMKZ/go-yogan-liqguard/database"
	"github.com/KOMKZ/go-yogan-liqguard/host"
	"github.com/KOMKZ/go-yogan-liqguard/httpapi"
	"github.com/KOMKZ/go-yogan-liqguard/limiter"
	"github.com/KOMKZ/go-yogan-liqguard/logger"
	"github.com/KOMKZ/go-yogan-liqguard/redis"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var t0 = time.Unix(1_700_000_000, 0)

func init() {
	gin.SetMode(gin.TestMode)
}

func testAppConfig() AppConfig {
	cfg := DefaultAppConfig()
	cfg.HTTP.Mode = gin.TestMode
	cfg.HTTP.Auth.Secret = testSecret
	cfg.Breaker.Event.SetAllSync = true
	cfg.Host.Admins = []string{"admin"}
	cfg.Host.Deposits = []DepositConfig{{Asset: "eth", Amount: "5000000"}}
	cfg.Assets = []AssetConfig{{Asset: "eth", MinLiqRetainedBps: 7000, LimitBeginThreshold: "1000"}}
	return cfg
}

func newTestApp(t *testing.T, cfg AppConfig, clock clockwork.Clock) *Application {
	t.Helper()
	app, err := New(WithConfig(cfg), WithLogger(logger.NewNop()), WithClock(clock))
	require.NoError(t, err)
	require.NoError(t, app.Start(context.Background()))
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })
	return app
}

func TestAppConfig_Validate(t *testing.T) {
	t.Run("default needs an http secret", func(t *testing.T) {
		cfg := DefaultAppConfig()
		assert.Error(t, cfg.Validate())

		cfg.HTTP.Auth.Secret = testSecret
		assert.NoError(t, cfg.Validate())

		cfg = DefaultAppConfig()
		cfg.HTTP.Enabled = false
		assert.NoError(t, cfg.Validate())
	})

	tests := []struct {
		name   string
		modify func(*AppConfig)
	}{
		{"redis store without instance", func(c *AppConfig) { c.Store.Type = "redis" }},
		{"database store without instance", func(c *AppConfig) { c.Store.Type = "database" }},
		{"unknown store", func(c *AppConfig) { c.Store.Type = "etcd" }},
		{"duplicate asset", func(c *AppConfig) { c.Assets = append(c.Assets, c.Assets[0]) }},
		{"assets without admin", func(c *AppConfig) { c.Host.Admins = nil }},
		{"blank admin", func(c *AppConfig) { c.Host.Admins = []string{" "} }},
		{"bps above 100%", func(c *AppConfig) { c.Assets[0].MinLiqRetainedBps = 10001 }},
		{"bad threshold", func(c *AppConfig) { c.Assets[0].LimitBeginThreshold = "-1" }},
		{"bad deposit", func(c *AppConfig) { c.Host.Deposits[0].Amount = "lots" }},
		{"cleanup interval", func(c *AppConfig) { c.Cleanup.Interval = time.Millisecond }},
		{"redis db out of range", func(c *AppConfig) {
			c.Redis.Instances["main"] = redis.Config{Addr: "localhost:6379", DB: 16}
		}},
		{"database driver", func(c *AppConfig) {
			c.Database.Instances["main"] = database.Config{Driver: "oracle", DSN: "x"}
		}},
		{"kafka without brokers", func(c *AppConfig) { c.Kafka.Enabled = true }},
		{"breaker tick longer than period", func(c *AppConfig) { c.Breaker.TickLength = 5 * time.Hour }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testAppConfig()
			require.NoError(t, cfg.Validate())
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAssetConfig_Policy(t *testing.T) {
	p := AssetConfig{Asset: "eth", MinLiqRetainedBps: 7000, LimitBeginThreshold: "1000"}.Policy()
	assert.Equal(t, uint32(7000), p.MinLiqRetainedBps)
	assert.Equal(t, uint64(1000), p.LimitBeginThreshold.Uint64())

	p = AssetConfig{Asset: "eth", MinLiqRetainedBps: 1}.Policy()
	assert.True(t, p.LimitBeginThreshold.IsZero())
}

func TestNew_FromConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
http:
  enabled: true
  auth:
    secret: "` + testSecret + `"
breaker:
  withdrawal_period: 2h
  tick_length: 1m
host:
  admins: ["ops"]
cleanup:
  interval: 30s
  max_steps: 10
assets:
  - asset: usdc
    min_liq_retained_bps: 9000
    limit_begin_threshold: "500"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	app, err := New(WithConfigPath(dir), WithLogger(logger.NewNop()))
	require.NoError(t, err)

	cfg := app.Config()
	assert.Equal(t, 2*time.Hour, cfg.Breaker.WithdrawalPeriod)
	assert.Equal(t, time.Minute, cfg.Breaker.TickLength)
	assert.Equal(t, 30*time.Second, cfg.Cleanup.Interval)
	assert.Equal(t, 10, cfg.Cleanup.MaxSteps)
	assert.Equal(t, []string{"ops"}, cfg.Host.Admins)
	require.Len(t, cfg.Assets, 1)
	assert.Equal(t, "usdc", cfg.Assets[0].Asset)
	assert.Equal(t, uint32(9000), cfg.Assets[0].MinLiqRetainedBps)
	// untouched sections keep their defaults
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, 3*24*time.Hour, cfg.Breaker.CooldownPeriod)
	assert.Equal(t, StateInit, app.State())
}

func TestNew_SampleConfig(t *testing.T) {
	app, err := New(WithConfigPath("../configs"), WithLogger(logger.NewNop()))
	require.NoError(t, err)

	cfg := app.Config()
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "liqguard.events", cfg.Kafka.Topic)
	assert.Equal(t, "snappy", cfg.Kafka.Producer.Compression)
	assert.Equal(t, []string{"admin"}, cfg.Host.Admins)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testAppConfig()
	cfg.Assets[0].MinLiqRetainedBps = 0
	_, err := New(WithConfig(cfg), WithLogger(logger.NewNop()))
	assert.Error(t, err)
}

func TestApplication_Lifecycle(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(t0)
	app := newTestApp(t, testAppConfig(), clock)

	assert.Equal(t, StateRunning, app.State())
	assert.Error(t, app.Start(ctx), "second start")

	ctrl := app.Controller()
	require.NotNil(t, ctrl)
	require.NotNil(t, app.Council())

	status, err := ctrl.Status(ctx, "eth")
	require.NoError(t, err)
	assert.Equal(t, limiter.StatusInactive, status)

	require.NotNil(t, app.scheduler)
	jobs := app.scheduler.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, cleanupJobName, jobs[0].Name())

	require.NoError(t, ctrl.AddProtectedCallers(ctx, "admin", "pool"))
	require.NoError(t, ctrl.OnTokenInflow(ctx, "pool", "eth", uint256.NewInt(1_000_000)))

	// the inflow settles once the window has passed
	clock.Advance(app.Config().Breaker.WithdrawalPeriod + app.Config().Breaker.TickLength)
	steps, err := app.CleanupBacklog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, steps)

	st, err := ctrl.Limiter(ctx, "eth")
	require.NoError(t, err)
	assert.True(t, st.LiqInPeriod.IsZero())
	assert.Equal(t, "1000000", st.LiqTotal.String())

	outcome, err := ctrl.OnTokenOutflow(ctx, "pool", "eth", uint256.NewInt(100), "alice", false)
	require.NoError(t, err)
	assert.Equal(t, breaker.OutcomeTransferred, outcome)

	custody, err := app.Custody()
	require.NoError(t, err)
	ledger, ok := custody.(*host.Ledger)
	require.True(t, ok)
	bal, err := ledger.BalanceOf(ctx, "eth", "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), bal.Uint64())
	assert.Greater(t, app.Uptime(), time.Duration(0))

	require.NoError(t, app.Shutdown(ctx))
	assert.Equal(t, StateStopped, app.State())
	assert.NoError(t, app.Shutdown(ctx), "second shutdown is a no-op")
}

func TestApplication_CleanupBeforeStart(t *testing.T) {
	app, err := New(WithConfig(testAppConfig()), WithLogger(logger.NewNop()))
	require.NoError(t, err)
	_, err = app.CleanupBacklog(context.Background())
	assert.Error(t, err)
}

func TestApplication_CleanupDisabled(t *testing.T) {
	cfg := testAppConfig()
	cfg.Cleanup.Enabled = false
	app := newTestApp(t, cfg, clockwork.NewFakeClockAt(t0))
	assert.Nil(t, app.scheduler)
}

func TestApplication_InjectedCollaborators(t *testing.T) {
	ctx := context.Background()
	ledger := host.NewLedger("treasury")
	require.NoError(t, ledger.Deposit("eth", "treasury", uint256.NewInt(10)))
	access := host.NewAccessList("root")
	pause := &host.PauseSwitch{}

	cfg := testAppConfig()
	cfg.Host.Admins = []string{"root"}
	app, err := New(WithConfig(cfg), WithLogger(logger.NewNop()), WithClock(clockwork.NewFakeClockAt(t0)),
		WithCustody(ledger), WithAccessControl(access), WithPauseFlag(pause))
	require.NoError(t, err)
	require.NoError(t, app.Start(ctx))
	defer app.Shutdown(ctx)

	custody, err := app.Custody()
	require.NoError(t, err)
	assert.Same(t, ledger, custody)

	// configured deposits only apply to the built-in ledger
	bal, err := ledger.BalanceOf(ctx, "eth", "treasury")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), bal.Uint64())

	require.NoError(t, app.Controller().MarkAsNotOperational(ctx, "root"))
	assert.True(t, pause.IsPaused())
}

func TestApplication_HTTPServer(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	cfg := testAppConfig()
	app := newTestApp(t, cfg, clock)

	srv, err := app.Server()
	require.NoError(t, err)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	token, err := httpapi.NewAuthenticator(cfg.HTTP.Auth, clock.Now).Issue("admin", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/assets/eth/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Code int `json:"code"`
		Data struct {
			Asset  string `json:"asset"`
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 0, body.Code)
	assert.Equal(t, "eth", body.Data.Asset)
}

func TestApplication_HTTPDisabled(t *testing.T) {
	cfg := testAppConfig()
	cfg.HTTP.Enabled = false
	app := newTestApp(t, cfg, clockwork.NewFakeClockAt(t0))
	_, err := app.Server()
	assert.Error(t, err)
}

func TestApplication_KafkaUnreachable(t *testing.T) {
	cfg := testAppConfig()
	cfg.HTTP.Enabled = false
	cfg.Kafka.Enabled = true
	cfg.Kafka.Brokers = []string{"127.0.0.1:1"}
	cfg.Kafka.ConnectAttempts = 1

	app, err := New(WithConfig(cfg), WithLogger(logger.NewNop()), WithClock(clockwork.NewFakeClockAt(t0)))
	require.NoError(t, err)
	err = app.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka producer")
	_ = app.Shutdown(context.Background())
}

func TestApplication_DatabaseStoreSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testAppConfig()
	cfg.HTTP.Enabled = false
	cfg.Store.Type = "database"
	cfg.Database.Instances = map[string]database.Config{
		"main": {Driver: "sqlite", DSN: "file:" + filepath.Join(t.TempDir(), "liqguard.db")},
	}

	first, err := New(WithConfig(cfg), WithLogger(logger.NewNop()), WithClock(clockwork.NewFakeClockAt(t0)))
	require.NoError(t, err)
	require.NoError(t, first.Start(ctx))
	ctrl := first.Controller()
	require.NoError(t, ctrl.AddProtectedCallers(ctx, "admin", "pool"))
	require.NoError(t, ctrl.OnTokenInflow(ctx, "pool", "eth", uint256.NewInt(42)))
	require.NoError(t, first.Shutdown(ctx))

	// the asset is already stored; boot registration skips it
	second := newTestApp(t, cfg, clockwork.NewFakeClockAt(t0))
	st, err := second.Controller().Limiter(ctx, "eth")
	require.NoError(t, err)
	assert.Equal(t, "42", st.LiqTotal.String())
}

func TestApplication_RedisStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := testAppConfig()
	cfg.Store.Type = "redis"
	cfg.Redis.Instances = map[string]redis.Config{"main": {Addr: mr.Addr()}}
	app := newTestApp(t, cfg, clockwork.NewFakeClockAt(t0))

	assets, err := app.Controller().Assets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"eth"}, assets)
	assert.NotEmpty(t, mr.Keys())

	srv, err := app.Server()
	require.NoError(t, err)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"ok"`)
}
