package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/KOMKZ/go-yogan-liqguard/breaker"
	"github.com/KOMKZ/go-yogan-liqguard/component"
	"github.com/KOMKZ/go-yogan-liqguard/event"
	"github.com/KOMKZ/go-yogan-liqguard/governance"
	"github.com/KOMKZ/go-yogan-liqguard/host"
	"github.com/KOMKZ/go-yogan-liqguard/httpapi"
	"github.com/KOMKZ/go-yogan-liqguard/limiter"
	"github.com/KOMKZ/go-yogan-liqguard/logger"
	"github.com/KOMKZ/go-yogan-liqguard/store"
)

const (
	admin  = "admin"
	vault  = "vault"
	pool   = "pool"
	alice  = "alice"
	g1     = "g1"
	g2     = "g2"
	secret = "0123456789abcdef0123456789abcdef"
)

var t0 = time.Unix(1_700_000_000, 0)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type harness struct {
	t       *testing.T
	handler http.Handler
	auth    *httpapi.Authenticator
	clock   *clockwork.FakeClock
	ledger  *host.Ledger
	ctl     *breaker.Controller
	metrics *httpapi.Metrics
	reader  *sdkmetric.ManualReader
}

type failingCheck struct{}

func (failingCheck) Name() string                    { return "store" }
func (failingCheck) Check(ctx context.Context) error { return errors.New("down") }

type okCheck struct{}

func (okCheck) Name() string                    { return "memory" }
func (okCheck) Check(ctx context.Context) error { return nil }

func testConfig() httpapi.Config {
	cfg := httpapi.DefaultConfig()
	cfg.Mode = gin.TestMode
	cfg.Auth.Secret = secret
	cfg.RequestLog.Enabled = true
	return cfg
}

func newHarness(t *testing.T, checks ...component.HealthChecker) *harness {
	t.Helper()
	ctx := context.Background()
	log := logger.NewNop()

	h := &harness{
		t:      t,
		clock:  clockwork.NewFakeClockAt(t0),
		ledger: host.NewLedger(vault),
		reader: sdkmetric.NewManualReader(),
	}
	dispatcher := event.NewDispatcher(event.WithSetAllSync(true), event.WithLogger(log))
	access := host.NewAccessList(admin)
	pause := &host.PauseSwitch{}

	bcfg := breaker.DefaultConfig()
	bcfg.WithdrawalPeriod = time.Hour
	bcfg.TickLength = time.Minute
	bcfg.CooldownPeriod = 10 * time.Minute
	bcfg.Custodian = vault
	ctl, err := breaker.NewController(bcfg, breaker.Options{
		Engine:     limiter.NewEngineWithLogger(bcfg.Limiter, store.NewMemoryStore(), log),
		Custody:    h.ledger,
		Access:     access,
		Pause:      pause,
		Clock:      h.clock,
		Dispatcher: dispatcher,
		Logger:     log,
	})
	require.NoError(t, err)
	t.Cleanup(ctl.Close)
	h.ctl = ctl

	council, err := governance.NewCouncil(governance.Config{Guardians: []string{g1, g2}, Threshold: 2}, governance.Options{
		Access:     access,
		Breaker:    ctl,
		Pause:      pause,
		Clock:      h.clock,
		Dispatcher: dispatcher,
		Logger:     log,
	})
	require.NoError(t, err)

	cfg := testConfig()
	// tokens are verified against real time, the fake clock only drives the breaker
	h.auth = httpapi.NewAuthenticator(cfg.Auth, nil)
	h.metrics = httpapi.NewMetrics(httpapi.MetricsConfig{Enabled: true})
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(h.reader))
	require.NoError(t, h.metrics.RegisterMetrics(mp.Meter("test")))

	srv := httpapi.NewServer(cfg, httpapi.ServerOptions{
		API:            httpapi.NewAPI(ctl, council),
		Auth:           h.auth,
		HealthCheckers: checks,
		Metrics:        h.metrics,
		Logger:         log,
	})
	h.handler = srv.Handler()

	require.NoError(t, h.ledger.Deposit("eth", vault, uint256.NewInt(5_000_000)))
	require.NoError(t, ctl.AddProtectedCallers(ctx, admin, pool))
	return h
}

func (h *harness) token(subject string) string {
	tok, err := h.auth.Issue(subject, time.Hour)
	require.NoError(h.t, err)
	return tok
}

func (h *harness) do(method, path, caller string, body interface{}) (int, envelope) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set("Authorization", "Bearer "+h.token(caller))
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)

	var env envelope
	require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func (h *harness) registerEth() {
	code, env := h.do(http.MethodPost, "/v1/assets", admin, map[string]interface{}{
		"asset":                 "eth",
		"min_liq_retained_bps":  7000,
		"limit_begin_threshold": "1000",
	})
	require.Equal(h.t, http.StatusOK, code, env.Msg)
}

// settle 1,000,000 inflow that has left the window
func (h *harness) settle() {
	code, _ := h.do(http.MethodPost, "/v1/flows/inflow", pool, map[string]string{"asset": "eth", "amount": "1000000"})
	require.Equal(h.t, http.StatusOK, code)
	h.clock.Advance(time.Hour + time.Minute)
	code, _ = h.do(http.MethodPost, "/v1/assets/eth/sync", alice, nil)
	require.Equal(h.t, http.StatusOK, code)
}

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, httpapi.DefaultConfig().Validate(), "secret required")
	assert.NoError(t, testConfig().Validate())

	cfg := testConfig()
	cfg.Auth.Secret = "short"
	assert.Error(t, cfg.Validate())

	cfg = testConfig()
	cfg.Enabled = false
	cfg.Addr = ""
	assert.NoError(t, cfg.Validate())
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, okCheck{})
	code, env := h.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
	view := decode[httpapi.HealthView](t, env.Data)
	assert.Equal(t, "ok", view.Status)
	assert.Equal(t, "ok", view.Checks["memory"])

	h = newHarness(t, okCheck{}, failingCheck{})
	code, env = h.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, httpapi.ErrUnhealthy.Code(), env.Code)
	view = decode[httpapi.HealthView](t, env.Data)
	assert.Equal(t, "down", view.Checks["store"])
}

func TestAuth(t *testing.T) {
	h := newHarness(t)

	t.Run("missing token", func(t *testing.T) {
		code, env := h.do(http.MethodGet, "/v1/breaker", "", nil)
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.Equal(t, httpapi.ErrUnauthorized.Code(), env.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := httpapi.NewAuthenticator(httpapi.AuthConfig{Secret: "ffffffffffffffffffffffffffffffff", Issuer: "liqguard"}, nil)
		tok, err := other.Issue(admin, time.Hour)
		require.NoError(t, err)
		_, err = h.auth.Verify(tok)
		assert.ErrorIs(t, err, httpapi.ErrUnauthorized)
	})

	t.Run("expired", func(t *testing.T) {
		past := httpapi.NewAuthenticator(testConfig().Auth, func() time.Time { return time.Now().Add(-2 * time.Hour) })
		tok, err := past.Issue(admin, time.Hour)
		require.NoError(t, err)
		_, err = h.auth.Verify(tok)
		assert.ErrorIs(t, err, httpapi.ErrUnauthorized)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		cfg := testConfig().Auth
		cfg.Issuer = "someone-else"
		tok, err := httpapi.NewAuthenticator(cfg, nil).Issue(admin, time.Hour)
		require.NoError(t, err)
		_, err = h.auth.Verify(tok)
		assert.ErrorIs(t, err, httpapi.ErrUnauthorized)
	})

	t.Run("subject becomes caller", func(t *testing.T) {
		claims, err := h.auth.Verify(h.token(alice))
		require.NoError(t, err)
		assert.Equal(t, alice, claims.Subject)
	})
}

func TestRoutingErrors(t *testing.T) {
	h := newHarness(t)

	code, env := h.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, httpapi.ErrRouteNotFound.Code(), env.Code)

	code, env = h.do(http.MethodPatch, "/healthz", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, code)
	assert.Equal(t, httpapi.ErrMethodNotAllowed.Code(), env.Code)
}

func TestAssets(t *testing.T) {
	h := newHarness(t)

	t.Run("non admin rejected", func(t *testing.T) {
		code, env := h.do(http.MethodPost, "/v1/assets", alice, map[string]interface{}{
			"asset": "eth", "min_liq_retained_bps": 7000, "limit_begin_threshold": "1000",
		})
		assert.Equal(t, http.StatusForbidden, code)
		assert.Equal(t, breaker.ErrNotAdmin.Code(), env.Code)
	})

	t.Run("validation", func(t *testing.T) {
		code, env := h.do(http.MethodPost, "/v1/assets", admin, map[string]interface{}{
			"asset": "eth", "min_liq_retained_bps": 10001, "limit_begin_threshold": "x",
		})
		assert.Equal(t, http.StatusBadRequest, code)
		fields := decode[map[string]map[string]string](t, env.Data)["fields"]
		assert.Contains(t, fields, "min_liq_retained_bps")
		assert.Contains(t, fields, "limit_begin_threshold")
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/assets", bytes.NewBufferString("{"))
		req.Header.Set("Authorization", "Bearer "+h.token(admin))
		w := httptest.NewRecorder()
		h.handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	h.registerEth()

	code, env := h.do(http.MethodGet, "/v1/assets", alice, nil)
	require.Equal(t, http.StatusOK, code)
	list := decode[httpapi.AssetList](t, env.Data)
	require.Len(t, list.Assets, 1)
	assert.Equal(t, "eth", list.Assets[0].Asset)
	assert.Equal(t, "inactive", list.Assets[0].Status)

	code, env = h.do(http.MethodGet, "/v1/assets/dai/status", alice, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "uninitialized", decode[httpapi.StatusView](t, env.Data).Status)

	code, env = h.do(http.MethodPut, "/v1/assets/eth", admin, map[string]interface{}{
		"min_liq_retained_bps": 9000, "limit_begin_threshold": "0", "max_sync_steps": 10,
	})
	require.Equal(t, http.StatusOK, code, env.Msg)
	assert.Equal(t, uint32(9000), decode[httpapi.AssetView](t, env.Data).MinLiqRetainedBps)
}

func TestFlows_LockThenClaim(t *testing.T) {
	h := newHarness(t)
	h.registerEth()
	h.settle()

	code, env := h.do(http.MethodGet, "/v1/assets/eth", alice, nil)
	require.Equal(t, http.StatusOK, code)
	view := decode[httpapi.AssetView](t, env.Data)
	assert.Equal(t, "1000000", view.LiqTotal)
	assert.Equal(t, "0", view.LiqInPeriod)
	assert.Equal(t, "1000000", view.ConfirmedLiquidity)
	assert.Empty(t, view.Window)

	t.Run("only protected callers report flows", func(t *testing.T) {
		code, env := h.do(http.MethodPost, "/v1/flows/outflow", alice, map[string]interface{}{
			"asset": "eth", "amount": "1", "recipient": alice,
		})
		assert.Equal(t, http.StatusForbidden, code)
		assert.Equal(t, breaker.ErrNotProtectedCaller.Code(), env.Code)
	})

	t.Run("revert on breach", func(t *testing.T) {
		code, env := h.do(http.MethodPost, "/v1/flows/outflow", pool, map[string]interface{}{
			"asset": "eth", "amount": "400000", "recipient": alice, "revert_on_breach": true,
		})
		assert.Equal(t, http.StatusTooManyRequests, code)
		assert.Equal(t, breaker.ErrRateLimited.Code(), env.Code)
	})

	code, env = h.do(http.MethodPost, "/v1/flows/outflow", pool, map[string]interface{}{
		"asset": "eth", "amount": "400000", "recipient": alice,
	})
	require.Equal(t, http.StatusOK, code, env.Msg)
	assert.Equal(t, breaker.OutcomeLocked, decode[httpapi.OutflowView](t, env.Data).Outcome)

	code, env = h.do(http.MethodGet, "/v1/locked/alice/eth", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "400000", decode[httpapi.FundsView](t, env.Data).Amount)

	code, env = h.do(http.MethodGet, "/v1/breaker", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, decode[breaker.Snapshot](t, env.Data).RateLimited)

	code, env = h.do(http.MethodPost, "/v1/claims", alice, map[string]string{"asset": "eth"})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, breaker.ErrRateLimited.Code(), env.Code)

	code, env = h.do(http.MethodPost, "/v1/breaker/override-expired", alice, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, breaker.ErrCooldownNotReached.Code(), env.Code)

	h.clock.Advance(10 * time.Minute)
	code, _ = h.do(http.MethodPost, "/v1/breaker/override-expired", alice, nil)
	require.Equal(t, http.StatusOK, code)

	code, env = h.do(http.MethodPost, "/v1/claims", alice, map[string]string{"asset": "eth"})
	require.Equal(t, http.StatusOK, code, env.Msg)
	claimed := decode[httpapi.FundsView](t, env.Data)
	assert.Equal(t, alice, claimed.Recipient)
	assert.Equal(t, "400000", claimed.Amount)

	bal, err := h.ledger.BalanceOf(context.Background(), "eth", alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(400000), bal.Uint64())

	code, env = h.do(http.MethodPost, "/v1/claims", alice, map[string]string{"asset": "eth"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, breaker.ErrNoLockedFunds.Code(), env.Code)
}

func TestFlows_NativeAndWithinPolicy(t *testing.T) {
	h := newHarness(t)
	h.registerEth()
	h.settle()

	code, env := h.do(http.MethodPost, "/v1/flows/outflow", pool, map[string]interface{}{
		"asset": "eth", "amount": "300000", "recipient": alice,
	})
	require.Equal(t, http.StatusOK, code, env.Msg)
	assert.Equal(t, breaker.OutcomeTransferred, decode[httpapi.OutflowView](t, env.Data).Outcome)

	// native asset is untracked until registered: transferred as is
	require.NoError(t, h.ledger.Deposit(breaker.NativeAsset, vault, uint256.NewInt(10)))
	code, env = h.do(http.MethodPost, "/v1/flows/outflow", pool, map[string]interface{}{
		"asset": breaker.NativeAsset, "amount": "10", "recipient": alice,
	})
	require.Equal(t, http.StatusOK, code, env.Msg)
	assert.Equal(t, breaker.OutcomeTransferred, decode[httpapi.OutflowView](t, env.Data).Outcome)

	code, _ = h.do(http.MethodPost, "/v1/flows/inflow", pool, map[string]string{"asset": breaker.NativeAsset, "amount": "5"})
	assert.Equal(t, http.StatusOK, code)
}

func TestBreakerAdmin(t *testing.T) {
	h := newHarness(t)

	code, env := h.do(http.MethodPost, "/v1/breaker/protected-callers", admin, map[string][]string{"callers": {"router"}})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, decode[breaker.Snapshot](t, env.Data).ProtectedCallers, "router")

	code, env = h.do(http.MethodDelete, "/v1/breaker/protected-callers", admin, map[string][]string{"callers": {"router"}})
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, decode[breaker.Snapshot](t, env.Data).ProtectedCallers, "router")

	code, env = h.do(http.MethodPost, "/v1/breaker/override", admin, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, breaker.ErrNotRateLimited.Code(), env.Code)

	code, _ = h.do(http.MethodPost, "/v1/breaker/grace-period", admin, map[string]time.Time{"end": t0.Add(-time.Second)})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = h.do(http.MethodPost, "/v1/breaker/grace-period", admin, map[string]time.Time{"end": t0.Add(time.Hour)})
	assert.Equal(t, http.StatusOK, code)

	code, env = h.do(http.MethodPost, "/v1/breaker/migrate", admin, map[string]interface{}{"assets": []string{"eth"}, "recovery": "safe"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, breaker.ErrNotPausedForMigration.Code(), env.Code)

	code, _ = h.do(http.MethodPost, "/v1/breaker/pause", admin, nil)
	require.Equal(t, http.StatusOK, code)

	code, env = h.do(http.MethodPost, "/v1/breaker/migrate", admin, map[string]interface{}{"assets": []string{"eth"}, "recovery": "safe"})
	require.Equal(t, http.StatusOK, code, env.Msg)
	assert.Equal(t, "5000000", decode[httpapi.MigrateView](t, env.Data).Amounts["eth"])
}

func TestGovernance(t *testing.T) {
	h := newHarness(t)
	h.registerEth()
	h.settle()

	code, _ := h.do(http.MethodPost, "/v1/flows/outflow", pool, map[string]interface{}{
		"asset": "eth", "amount": "400000", "recipient": alice,
	})
	require.Equal(t, http.StatusOK, code)
	require.True(t, h.ctl.IsRateLimited())

	code, env := h.do(http.MethodGet, "/v1/governance", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, decode[httpapi.CouncilView](t, env.Data).Threshold)

	code, env = h.do(http.MethodPost, "/v1/governance/proposals", alice, map[string]string{"id": "p1"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, governance.ErrNotGuardian.Code(), env.Code)

	code, env = h.do(http.MethodPost, "/v1/governance/proposals", g1, map[string]string{"id": "p1"})
	require.Equal(t, http.StatusOK, code, env.Msg)
	assert.Equal(t, 1, decode[governance.Proposal](t, env.Data).VotesFor)

	code, env = h.do(http.MethodPost, "/v1/governance/proposals/p1/execute", g1, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, governance.ErrThresholdNotMet.Code(), env.Code)

	code, env = h.do(http.MethodPost, "/v1/governance/proposals/p1/votes", g2, map[string]bool{"approve": true})
	require.Equal(t, http.StatusOK, code, env.Msg)
	assert.Equal(t, 2, decode[governance.Proposal](t, env.Data).VotesFor)

	code, env = h.do(http.MethodPost, "/v1/governance/proposals/p1/execute", alice, nil)
	require.Equal(t, http.StatusOK, code, env.Msg)
	assert.True(t, decode[governance.Proposal](t, env.Data).Executed)
	assert.False(t, h.ctl.IsRateLimited())

	code, env = h.do(http.MethodGet, "/v1/governance/proposals/p2", alice, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, governance.ErrProposalNotFound.Code(), env.Code)

	code, env = h.do(http.MethodPost, "/v1/governance/guardians", admin, map[string]string{"guardian": "g3"})
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[httpapi.CouncilView](t, env.Data).Guardians, 3)

	code, env = h.do(http.MethodPut, "/v1/governance/threshold", admin, map[string]int{"threshold": 4})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, governance.ErrInvalidThreshold.Code(), env.Code)

	code, env = h.do(http.MethodDelete, "/v1/governance/guardians/g3", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[httpapi.CouncilView](t, env.Data).Guardians, 2)

	code, _ = h.do(http.MethodPost, "/v1/governance/emergency-pause", g1, nil)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, h.ctl.IsOperational())
}

func TestMetricsMiddleware(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodGet, "/healthz", "", nil)
	h.do(http.MethodGet, "/v1/breaker", alice, nil)

	var rm metricdata.ResourceMetrics
	require.NoError(t, h.reader.Collect(context.Background(), &rm))

	var total int64
	paths := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http_requests_total" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				total += dp.Value
				if p, ok := dp.Attributes.Value("path"); ok {
					paths[p.AsString()] = true
				}
			}
		}
	}
	assert.Equal(t, int64(2), total)
	assert.True(t, paths["/healthz"])
	assert.True(t, paths["/v1/breaker"])
}
