package config

// Source priorities, higher wins
const (
	PriorityFile     = 10
	PriorityEnvFile  = 20
	PriorityEnv      = 50
	PriorityOverride = 100
)

// ConfigSource 配置数据源（文件、环境变量、命令行覆盖）
type ConfigSource interface {
	Name() string
	Priority() int

	// Load 返回点号分隔的扁平 key，例如 "breaker.tick_length"
	Load() (map[string]interface{}, error)
}

// flattenMap {"http": {"auth": {"secret": "x"}}} -> {"http.auth.secret": "x"}
func flattenMap(prefix string, data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	flattenInto(out, prefix, data)
	return out
}

func flattenInto(out map[string]interface{}, prefix string, data map[string]interface{}) {
	for k, v := range data {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			flattenInto(out, key, nested)
			continue
		}
		out[key] = v
	}
}
