// Package config 多数据源配置加载
//
// 数据源按优先级从低到高合并（文件 < 环境文件 < 环境变量 < 命令行覆盖），
// 合并结果同步到 viper，通过 mapstructure 解析到各模块配置结构体。
package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Loader configuration loader (supporting multiple data sources)
type Loader struct {
	sources      []ConfigSource
	mergedConfig map[string]interface{} // flat, dot separated keys
	v            *viper.Viper
	loaded       []string // names of sources that contributed keys
}

// NewLoader creates an empty loader
func NewLoader() *Loader {
	return &Loader{
		mergedConfig: make(map[string]interface{}),
		v:            viper.New(),
	}
}

// AddSource add configuration data source
func (l *Loader) AddSource(source ConfigSource) {
	l.sources = append(l.sources, source)
}

// Load and merge all data sources
func (l *Loader) Load() error {
	sort.SliceStable(l.sources, func(i, j int) bool {
		return l.sources[i].Priority() < l.sources[j].Priority()
	})

	merged := make(map[string]interface{})
	var loaded []string
	for _, source := range l.sources {
		data, err := source.Load()
		if err != nil {
			return fmt.Errorf("加载数据源 %s 失败: %w", source.Name(), err)
		}
		if len(data) > 0 {
			loaded = append(loaded, source.Name())
		}
		// higher priority overrides lower priority
		for key, value := range data {
			merged[strings.ToLower(key)] = value
		}
	}

	l.mergedConfig = merged
	l.loaded = loaded
	l.syncToViper()
	return nil
}

// syncToViper rebuilds viper from the nested form of the merged map
func (l *Loader) syncToViper() {
	nested := make(map[string]interface{})
	for key, value := range l.mergedConfig {
		setNestedValue(nested, key, value)
	}

	l.v = viper.New()
	for key, value := range nested {
		l.v.Set(key, value)
	}
}

// setNestedValue {"http.port": 8080} -> {"http": {"port": 8080}}
func setNestedValue(m map[string]interface{}, key string, value interface{}) {
	keys := splitKey(key)
	if len(keys) == 0 {
		return
	}

	current := m
	for _, k := range keys[:len(keys)-1] {
		nested, ok := current[k].(map[string]interface{})
		if !ok {
			// a scalar at a parent path is replaced by the deeper key
			nested = make(map[string]interface{})
			current[k] = nested
		}
		current = nested
	}
	current[keys[len(keys)-1]] = value
}

func splitKey(key string) []string {
	parts := strings.Split(key, ".")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Unmarshal parse configuration into struct. Fields absent from every source
// keep the value already in v, so callers pass a struct holding defaults.
func (l *Loader) Unmarshal(v interface{}) error {
	return l.v.Unmarshal(v)
}

// UnmarshalKey parse one section into struct
func (l *Loader) UnmarshalKey(key string, v interface{}) error {
	return l.v.UnmarshalKey(key, v)
}

// Get configuration value
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// GetString Get string configuration
func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

// GetInt Get integer configuration
func (l *Loader) GetInt(key string) int {
	return l.v.GetInt(key)
}

// GetBool Get boolean configuration
func (l *Loader) GetBool(key string) bool {
	return l.v.GetBool(key)
}

// IsSet Check if the configuration item exists
func (l *Loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}

// AllSettings Get all settings
func (l *Loader) AllSettings() map[string]interface{} {
	return l.v.AllSettings()
}

// LoadedSources names of the sources that contributed at least one key
func (l *Loader) LoadedSources() []string {
	return l.loaded
}

// Reload reload configuration
func (l *Loader) Reload() error {
	return l.Load()
}
