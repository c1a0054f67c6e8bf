package event

// Config event dispatcher settings
type Config struct {
	PoolSize   int  `mapstructure:"pool_size"`
	SetAllSync bool `mapstructure:"set_all_sync"` // run async dispatches inline (tests, simulate)
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		PoolSize: 100,
	}
}
