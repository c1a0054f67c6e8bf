package config

// MapSource 内存数据源（命令行参数覆盖、测试）
type MapSource struct {
	name     string
	data     map[string]interface{}
	priority int
}

// NewMapSource 创建内存数据源，data 的 key 使用点号分隔
func NewMapSource(name string, data map[string]interface{}, priority int) *MapSource {
	return &MapSource{name: name, data: data, priority: priority}
}

// Name 数据源名称
func (s *MapSource) Name() string {
	return "map:" + s.name
}

// Priority 优先级
func (s *MapSource) Priority() int {
	return s.priority
}

// Load 返回数据副本（嵌套 map 会被展平）
func (s *MapSource) Load() (map[string]interface{}, error) {
	return flattenMap("", s.data), nil
}
