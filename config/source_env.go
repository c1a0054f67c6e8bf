package config

import (
	"os"
	"strings"
)

// EnvSource 环境变量数据源
//
// 双下划线分隔层级，单下划线保留在 key 中：
// LIQGUARD_BREAKER__WITHDRAWAL_PERIOD -> breaker.withdrawal_period
// 不含双下划线时每个下划线都视为层级：LIQGUARD_HTTP_PORT -> http.port
type EnvSource struct {
	prefix   string // 环境变量前缀，如 "LIQGUARD"
	priority int
	bindings map[string]string // key 映射，如 "http.port" -> "HTTP_PORT"
}

// NewEnvSource 创建环境变量数据源
func NewEnvSource(prefix string, priority int) *EnvSource {
	return &EnvSource{
		prefix:   prefix,
		priority: priority,
		bindings: make(map[string]string),
	}
}

// AddBinding 添加 key 映射
// 例如：AddBinding("store.type", "STORE_BACKEND")
func (s *EnvSource) AddBinding(key, envKey string) {
	s.bindings[key] = envKey
}

// Name 数据源名称
func (s *EnvSource) Name() string {
	return "env:" + s.prefix
}

// Priority 优先级
func (s *EnvSource) Priority() int {
	return s.priority
}

// Load 加载环境变量配置
func (s *EnvSource) Load() (map[string]interface{}, error) {
	result := make(map[string]interface{})

	// 明确的 bindings 优先
	for key, envKey := range s.bindings {
		fullEnvKey := envKey
		if s.prefix != "" && !strings.HasPrefix(envKey, s.prefix+"_") {
			fullEnvKey = s.prefix + "_" + envKey
		}
		if value := os.Getenv(fullEnvKey); value != "" {
			result[key] = value
		}
	}

	if s.prefix == "" {
		return result, nil
	}

	prefix := s.prefix + "_"
	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 || !strings.HasPrefix(parts[0], prefix) {
			continue
		}
		configKey := EnvKeyToConfigKey(strings.TrimPrefix(parts[0], prefix))
		if _, bound := result[configKey]; bound || configKey == "" {
			continue
		}
		result[configKey] = parts[1]
	}

	return result, nil
}

// EnvKeyToConfigKey 转换环境变量名（不含前缀）为配置 key
func EnvKeyToConfigKey(envKey string) string {
	envKey = strings.ToLower(envKey)
	if strings.Contains(envKey, "__") {
		return strings.ReplaceAll(envKey, "__", ".")
	}
	return strings.ReplaceAll(envKey, "_", ".")
}
