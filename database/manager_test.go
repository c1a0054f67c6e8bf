package database

import (
	"context"
	"testing"

	"github.com/KOMKZ/go-yogan-liqguard/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() Config {
	cfg := DefaultConfig()
	cfg.DSN = "file::memory:"
	cfg.EnableLog = false
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Driver = "oracle"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.DSN = ""
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestManager_SQLite(t *testing.T) {
	ctx := context.Background()
	m, err := NewManager(map[string]Config{"main": memoryConfig()}, logger.NewNop())
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, []string{"main"}, m.Names())
	assert.NotNil(t, m.DB("main"))
	assert.Nil(t, m.DB("other"))

	_, err = m.MustDB("other")
	assert.ErrorIs(t, err, ErrInstanceNotFound)

	assert.NoError(t, m.Ping(ctx))
	stats, err := m.Stats("main")
	require.NoError(t, err)
	assert.Equal(t, 20, stats.MaxOpenConnections)

	hc := NewHealthChecker(m)
	assert.Equal(t, "database", hc.Name())
	assert.NoError(t, hc.Check(ctx))
}

func TestManager_InvalidConfig(t *testing.T) {
	_, err := NewManager(map[string]Config{"bad": {Driver: "sqlite"}}, logger.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestHealthChecker_Empty(t *testing.T) {
	assert.Error(t, NewHealthChecker(nil).Check(context.Background()))

	m, err := NewManager(nil, logger.NewNop())
	require.NoError(t, err)
	assert.Error(t, NewHealthChecker(m).Check(context.Background()))
}
