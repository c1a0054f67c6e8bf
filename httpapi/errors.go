package httpapi

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-liqguard/errcode"
)

// ModuleCode httpapi 模块码
const ModuleCode = 36

var (
	// ErrUnauthorized missing, malformed or expired bearer token
	ErrUnauthorized = errcode.Register(errcode.New(ModuleCode, 1,
		"httpapi", "error.httpapi.unauthorized", "unauthorized", http.StatusUnauthorized))

	// ErrBadRequest request body or parameters could not be decoded
	ErrBadRequest = errcode.Register(errcode.New(ModuleCode, 2,
		"httpapi", "error.httpapi.bad_request", "bad request", http.StatusBadRequest))

	// ErrRouteNotFound 路由不存在
	ErrRouteNotFound = errcode.Register(errcode.New(ModuleCode, 3,
		"httpapi", "error.httpapi.route_not_found", "route not found", http.StatusNotFound))

	// ErrMethodNotAllowed 方法不允许
	ErrMethodNotAllowed = errcode.Register(errcode.New(ModuleCode, 4,
		"httpapi", "error.httpapi.method_not_allowed", "method not allowed", http.StatusMethodNotAllowed))

	// ErrInternal anything that is not a LayeredError
	ErrInternal = errcode.Register(errcode.New(ModuleCode, 5,
		"httpapi", "error.httpapi.internal", "internal server error", http.StatusInternalServerError))

	// ErrUnhealthy a health checker failed
	ErrUnhealthy = errcode.Register(errcode.New(ModuleCode, 6,
		"httpapi", "error.httpapi.unhealthy", "service unhealthy", http.StatusServiceUnavailable))
)
