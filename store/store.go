// Package store provides the host-side storage backends of the limiter:
// in-process maps, Redis hashes and SQL tables through gorm.
package store

import (
	"fmt"
	"strconv"

	"github.com/holiman/uint256"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/KOMKZ/go-yogan-liqguard/limiter"
	"github.com/KOMKZ/go-yogan-liqguard/logger"
	"github.com/KOMKZ/go-yogan-liqguard/signed"
)

// Config store selection
type Config struct {
	// Type memory, redis, database
	Type string `mapstructure:"type"`

	// Redis backend reference
	Redis RedisRef `mapstructure:"redis"`

	// Database backend reference
	Database DatabaseRef `mapstructure:"database"`
}

// RedisRef points at an instance of the redis component
type RedisRef struct {
	Instance  string `mapstructure:"instance"`   // instance name in redis.instances
	KeyPrefix string `mapstructure:"key_prefix"` // default "liqguard:"
}

// DatabaseRef points at an instance of the database component
type DatabaseRef struct {
	Instance    string `mapstructure:"instance"`     // instance name in database.instances
	AutoMigrate bool   `mapstructure:"auto_migrate"` // create tables on start
}

// DefaultConfig in-memory store
func DefaultConfig() Config {
	return Config{
		Type:     string(limiter.StoreTypeMemory),
		Redis:    RedisRef{Instance: "main", KeyPrefix: DefaultKeyPrefix},
		Database: DatabaseRef{Instance: "main", AutoMigrate: true},
	}
}

// Validate configuration
func (c *Config) Validate() error {
	switch limiter.StoreType(c.Type) {
	case limiter.StoreTypeMemory:
	case limiter.StoreTypeRedis:
		if c.Redis.Instance == "" {
			return ErrMissingBackend.WithMsgf("store.redis.instance is required")
		}
		if c.Redis.KeyPrefix == "" {
			c.Redis.KeyPrefix = DefaultKeyPrefix
		}
	case limiter.StoreTypeDatabase:
		if c.Database.Instance == "" {
			return ErrMissingBackend.WithMsgf("store.database.instance is required")
		}
	default:
		return ErrUnsupportedType.WithData("type", c.Type)
	}
	return nil
}

// New builds the configured backend. Only the backend matching cfg.Type has
// to be non-nil.
func New(cfg Config, redisClient *redis.Client, db *gorm.DB, ctxLogger *logger.CtxZapLogger) (limiter.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ctxLogger == nil {
		ctxLogger = logger.GetLogger("liqguard")
	}

	switch limiter.StoreType(cfg.Type) {
	case limiter.StoreTypeMemory:
		ctxLogger.Debug("using in-memory limiter store")
		return NewMemoryStore(), nil
	case limiter.StoreTypeRedis:
		if redisClient == nil {
			return nil, ErrMissingBackend.WithData("type", cfg.Type)
		}
		ctxLogger.Debug("using redis limiter store", zap.String("key_prefix", cfg.Redis.KeyPrefix))
		return NewRedisStore(redisClient, cfg.Redis.KeyPrefix), nil
	case limiter.StoreTypeDatabase:
		if db == nil {
			return nil, ErrMissingBackend.WithData("type", cfg.Type)
		}
		s, err := NewGormStore(db, cfg.Database.AutoMigrate)
		if err != nil {
			return nil, err
		}
		ctxLogger.Debug("using database limiter store", zap.String("dialect", db.Dialector.Name()))
		return s, nil
	default:
		return nil, ErrUnsupportedType.WithData("type", cfg.Type)
	}
}

// record 存储层统一的字符串编码
type record struct {
	Bps         uint32
	Threshold   string
	LiqTotal    string
	LiqInPeriod string
	Head        uint64
	Tail        uint64
}

func encodeState(st limiter.State) record {
	return record{
		Bps:         st.Policy.MinLiqRetainedBps,
		Threshold:   st.Policy.LimitBeginThreshold.Dec(),
		LiqTotal:    st.LiqTotal.String(),
		LiqInPeriod: st.LiqInPeriod.String(),
		Head:        st.List.Head,
		Tail:        st.List.Tail,
	}
}

func decodeState(asset string, r record) (limiter.State, error) {
	threshold, err := uint256.FromDecimal(r.Threshold)
	if err != nil {
		return limiter.State{}, ErrCorruptRecord.Wrap(err).WithData("asset", asset).WithData("field", "threshold")
	}
	total, err := signed.FromDecimal(r.LiqTotal)
	if err != nil {
		return limiter.State{}, ErrCorruptRecord.Wrap(err).WithData("asset", asset).WithData("field", "liq_total")
	}
	inPeriod, err := signed.FromDecimal(r.LiqInPeriod)
	if err != nil {
		return limiter.State{}, ErrCorruptRecord.Wrap(err).WithData("asset", asset).WithData("field", "liq_in_period")
	}
	st := limiter.State{
		Asset:       asset,
		Policy:      limiter.Policy{MinLiqRetainedBps: r.Bps, LimitBeginThreshold: *threshold},
		LiqTotal:    total,
		LiqInPeriod: inPeriod,
		Initialized: true,
	}
	st.List.Head = r.Head
	st.List.Tail = r.Tail
	return st, nil
}

func parseUint(field, s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, ErrCorruptRecord.Wrap(fmt.Errorf("%s: %w", field, err))
	}
	return v, nil
}
