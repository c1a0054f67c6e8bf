package database

import "github.com/KOMKZ/go-yogan-liqguard/errcode"

// ModuleCode database 模块码
const ModuleCode = 39

var (
	// ErrInvalidConfig Invalid Configuration
	ErrInvalidConfig = errcode.Register(errcode.New(ModuleCode, 1, "database", "error.database.invalid_config", "invalid database config"))

	// ErrConnectionFailed Connection failed
	ErrConnectionFailed = errcode.Register(errcode.New(ModuleCode, 2, "database", "error.database.connection_failed", "database connection failed", 503))

	// ErrInstanceNotFound unknown instance name
	ErrInstanceNotFound = errcode.Register(errcode.New(ModuleCode, 3, "database", "error.database.instance_not_found", "database instance not found"))
)
