// Package router assembles the gin engine of the invoice API.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/invoicer/internal/infrastructure/logger"
	"github.com/erp/invoicer/internal/interfaces/http/handler"
	"github.com/erp/invoicer/internal/interfaces/http/middleware"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	middleware []gin.HandlerFunc
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithMiddleware adds middleware to the versioned API group only
func WithMiddleware(handlers ...gin.HandlerFunc) RouterOption {
	return func(r *Router) {
		r.middleware = append(r.middleware, handlers...)
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
		registrars: make([]RouteRegistrar, 0),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	if len(r.middleware) > 0 {
		api.Use(r.middleware...)
	}
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// Config holds what the engine is built from
type Config struct {
	Logger      *zap.Logger
	Invoices    *handler.InvoiceHandler
	Health      *handler.HealthHandler
	MaxBodySize int64
	Tracing     middleware.TracingConfig
}

// NewEngine builds the gin engine with the middleware chain and all routes.
func NewEngine(cfg Config) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		logger.GinMiddleware(log),
		middleware.TracingWithConfig(cfg.Tracing),
		middleware.SpanAttributes(),
	)

	if cfg.Health != nil {
		engine.GET("/health", cfg.Health.Health)
	}

	var opts []RouterOption
	if cfg.MaxBodySize > 0 {
		opts = append(opts, WithMiddleware(middleware.BodyLimit(cfg.MaxBodySize)))
	}
	r := NewRouter(engine, opts...)
	if cfg.Invoices != nil {
		r.Register(cfg.Invoices)
	}
	r.Setup()

	return engine
}
