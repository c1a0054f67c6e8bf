package config

import (
	"os"
	"path/filepath"
)

// LoaderBuilder configuration loader builder
type LoaderBuilder struct {
	configPath string
	configFile string
	envPrefix  string
	overrides  map[string]interface{}
}

// NewLoaderBuilder creates a loader builder
func NewLoaderBuilder() *LoaderBuilder {
	return &LoaderBuilder{
		configFile: "config.yaml",
		envPrefix:  "LIQGUARD",
	}
}

// WithConfigPath set configuration directory
func (b *LoaderBuilder) WithConfigPath(path string) *LoaderBuilder {
	b.configPath = path
	return b
}

// WithConfigFile base file name inside the configuration directory
func (b *LoaderBuilder) WithConfigFile(name string) *LoaderBuilder {
	if name != "" {
		b.configFile = name
	}
	return b
}

// WithEnvPrefix set environment variable prefix, empty disables the env source
func (b *LoaderBuilder) WithEnvPrefix(prefix string) *LoaderBuilder {
	b.envPrefix = prefix
	return b
}

// WithOverrides highest priority values (command line flags)
func (b *LoaderBuilder) WithOverrides(overrides map[string]interface{}) *LoaderBuilder {
	b.overrides = overrides
	return b
}

// Build loader
func (b *LoaderBuilder) Build() (*Loader, error) {
	loader := NewLoader()

	// 1. Basic configuration file
	if b.configPath != "" {
		loader.AddSource(NewFileSource(filepath.Join(b.configPath, b.configFile), PriorityFile))

		// 2. Environment configuration file
		if env := GetEnv(); env != "" {
			loader.AddSource(NewFileSource(filepath.Join(b.configPath, env+".yaml"), PriorityEnvFile))
		}
	}

	// 3. Environment variables
	if b.envPrefix != "" {
		loader.AddSource(NewEnvSource(b.envPrefix, PriorityEnv))
	}

	// 4. Command line overrides
	if len(b.overrides) > 0 {
		loader.AddSource(NewMapSource("overrides", b.overrides, PriorityOverride))
	}

	if err := loader.Load(); err != nil {
		return nil, err
	}

	return loader, nil
}

// GetEnv retrieves the deployment environment (priority: LIQGUARD_ENV > APP_ENV > default dev)
func GetEnv() string {
	if env := os.Getenv("LIQGUARD_ENV"); env != "" {
		return env
	}
	if env := os.Getenv("APP_ENV"); env != "" {
		return env
	}
	return "dev"
}
