package config

import (
	"fmt"

	"github.com/samber/do/v2"
)

// ProvideLoaderOptions 创建 Loader 的选项
type ProvideLoaderOptions struct {
	ConfigPath string                 // 配置目录路径
	ConfigFile string                 // 基础配置文件名，默认 config.yaml
	EnvPrefix  string                 // 环境变量前缀，默认 LIQGUARD
	Overrides  map[string]interface{} // 命令行参数覆盖
}

// ProvideLoader 创建 Config Loader Provider
// Config 是最底层组件，无任何依赖
//
// 使用示例：
//
//	do.Provide(injector, config.ProvideLoader(config.ProvideLoaderOptions{
//	    ConfigPath: "./configs",
//	}))
//	loader := do.MustInvoke[*config.Loader](injector)
func ProvideLoader(opts ProvideLoaderOptions) func(do.Injector) (*Loader, error) {
	return func(i do.Injector) (*Loader, error) {
		b := NewLoaderBuilder().
			WithConfigPath(opts.ConfigPath).
			WithConfigFile(opts.ConfigFile).
			WithOverrides(opts.Overrides)
		if opts.EnvPrefix != "" {
			b.WithEnvPrefix(opts.EnvPrefix)
		}

		loader, err := b.Build()
		if err != nil {
			return nil, fmt.Errorf("config loader build failed: %w", err)
		}
		return loader, nil
	}
}

// ProvideLoaderValue 直接注册已创建的 Loader（用于测试或特殊场景）
func ProvideLoaderValue(loader *Loader) func(do.Injector) (*Loader, error) {
	return func(i do.Injector) (*Loader, error) {
		return loader, nil
	}
}
