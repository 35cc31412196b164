package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	// ServiceName is the name of the service for trace identification.
	ServiceName string
	// Enabled controls whether tracing is active.
	Enabled bool
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "invoicer",
		Enabled:     true,
	}
}

// Tracing returns OpenTelemetry tracing middleware with default configuration.
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig returns OpenTelemetry tracing middleware with custom configuration.
// The span is named "METHOD route", e.g. "POST /api/v1/invoices/render".
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return otelgin.Middleware(cfg.ServiceName)
}

// SpanAttributes tags the active span with the request ID and marks 4xx/5xx
// responses as errors. It must come after Tracing and RequestID in the chain.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}

		if requestID := GetRequestID(c); requestID != "" {
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Next()

		markSpanStatus(span, c.Writer.Status())
	}
}

func markSpanStatus(span trace.Span, statusCode int) {
	if statusCode < http.StatusBadRequest {
		return
	}

	var errorMessage string
	switch {
	case statusCode >= http.StatusInternalServerError:
		errorMessage = "Internal Server Error"
	case statusCode == http.StatusNotFound:
		errorMessage = "Not Found"
	case statusCode == http.StatusRequestEntityTooLarge:
		errorMessage = "Request Too Large"
	default:
		errorMessage = "Client Error"
	}

	span.SetStatus(codes.Error, errorMessage)
	span.SetAttributes(attribute.Int("http.status_code", statusCode))
}
