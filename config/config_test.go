package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	HTTP struct {
		Port int    `mapstructure:"port"`
		Host string `mapstructure:"host"`
	} `mapstructure:"http"`
	Breaker struct {
		WithdrawalPeriod time.Duration `mapstructure:"withdrawal_period"`
		MaxSyncSteps     int           `mapstructure:"max_sync_steps"`
	} `mapstructure:"breaker"`
	Governance struct {
		Guardians []string `mapstructure:"guardians"`
	} `mapstructure:"governance"`
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestEnvKeyToConfigKey(t *testing.T) {
	assert.Equal(t, "http.port", EnvKeyToConfigKey("HTTP_PORT"))
	assert.Equal(t, "breaker.withdrawal_period", EnvKeyToConfigKey("BREAKER__WITHDRAWAL_PERIOD"))
	assert.Equal(t, "store.redis.key_prefix", EnvKeyToConfigKey("STORE__REDIS__KEY_PREFIX"))
}

func TestLoader_PriorityOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", `
http:
  port: 8080
  host: 0.0.0.0
breaker:
  withdrawal_period: 4h
  max_sync_steps: 100
governance:
  guardians: [g1, g2]
`)
	writeFile(t, dir, "test.yaml", `
http:
  port: 9090
`)
	t.Setenv("LIQGUARD_ENV", "test")
	t.Setenv("LIQGUARD_BREAKER__MAX_SYNC_STEPS", "7")

	loader, err := NewLoaderBuilder().
		WithConfigPath(dir).
		WithOverrides(map[string]interface{}{"http.host": "127.0.0.1"}).
		Build()
	require.NoError(t, err)

	var cfg sample
	cfg.Breaker.WithdrawalPeriod = time.Minute
	require.NoError(t, loader.Unmarshal(&cfg))

	assert.Equal(t, 9090, cfg.HTTP.Port, "env file overrides base file")
	assert.Equal(t, "127.0.0.1", cfg.HTTP.Host, "overrides win")
	assert.Equal(t, 4*time.Hour, cfg.Breaker.WithdrawalPeriod)
	assert.Equal(t, 7, cfg.Breaker.MaxSyncSteps, "env var overrides files")
	assert.Equal(t, []string{"g1", "g2"}, cfg.Governance.Guardians)
	assert.Len(t, loader.LoadedSources(), 4)
}

func TestLoader_DefaultsSurvive(t *testing.T) {
	loader, err := NewLoaderBuilder().
		WithEnvPrefix("").
		WithOverrides(map[string]interface{}{"http": map[string]interface{}{"port": 1}}).
		Build()
	require.NoError(t, err)

	var cfg sample
	cfg.HTTP.Host = "localhost"
	cfg.Breaker.MaxSyncSteps = 100
	require.NoError(t, loader.Unmarshal(&cfg))
	assert.Equal(t, 1, cfg.HTTP.Port)
	assert.Equal(t, "localhost", cfg.HTTP.Host)
	assert.Equal(t, 100, cfg.Breaker.MaxSyncSteps)

	var port int
	require.NoError(t, loader.UnmarshalKey("http.port", &port))
	assert.Equal(t, 1, port)
	assert.True(t, loader.IsSet("http.port"))
	assert.False(t, loader.IsSet("http.host"))
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()

	missing, err := NewFileSource(filepath.Join(dir, "nope.yaml"), 1).Load()
	require.NoError(t, err)
	assert.Empty(t, missing)

	writeFile(t, dir, "bad.yaml", "http: [")
	_, err = NewFileSource(filepath.Join(dir, "bad.yaml"), 1).Load()
	assert.Error(t, err)
}

func TestEnvSource_Bindings(t *testing.T) {
	t.Setenv("LIQGUARD_STORE_BACKEND", "redis")
	s := NewEnvSource("LIQGUARD", PriorityEnv)
	s.AddBinding("store.type", "STORE_BACKEND")

	data, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "redis", data["store.type"])
	assert.Equal(t, "env:LIQGUARD", s.Name())
}

type okValidator struct{ err error }

func (v okValidator) Validate() error { return v.err }

func TestValidateAll(t *testing.T) {
	assert.NoError(t, ValidateAll(okValidator{}, okValidator{}))
	assert.ErrorIs(t, ValidateAll(okValidator{}, okValidator{err: os.ErrInvalid}), os.ErrInvalid)
}

func TestProvideLoader(t *testing.T) {
	injector := do.New()
	do.Provide(injector, ProvideLoader(ProvideLoaderOptions{
		Overrides: map[string]interface{}{"http.port": 1234},
	}))

	loader := do.MustInvoke[*Loader](injector)
	assert.Equal(t, 1234, loader.GetInt("http.port"))
}
