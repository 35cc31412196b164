package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func findEntry(entries []observer.LoggedEntry, msg string) *observer.LoggedEntry {
	for i := range entries {
		if entries[i].Message == msg {
			return &entries[i]
		}
	}
	return nil
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		status int
		level  zapcore.Level
	}{
		{"success", http.StatusOK, zapcore.InfoLevel},
		{"client error", http.StatusBadRequest, zapcore.WarnLevel},
		{"server error", http.StatusInternalServerError, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, recorded := observedLogger()

			router := gin.New()
			router.Use(func(c *gin.Context) {
				c.Set("request_id", "req-123")
				c.Next()
			})
			router.Use(GinMiddleware(logger))
			router.POST("/api/v1/invoices/render", func(c *gin.Context) {
				// Handlers see the request logger through the request context
				L(c.Request.Context()).Info("handler")
				c.Status(tt.status)
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/render?store=true", nil)
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)

			handler := findEntry(recorded.All(), "handler")
			require.NotNil(t, handler)
			assert.Equal(t, "req-123", handler.ContextMap()["request_id"])
			assert.Equal(t, "/api/v1/invoices/render", handler.ContextMap()["path"])

			entry := findEntry(recorded.All(), "HTTP Request")
			require.NotNil(t, entry)
			assert.Equal(t, tt.level, entry.Level)
			fields := entry.ContextMap()
			assert.Equal(t, int64(tt.status), fields["status"])
			assert.Equal(t, "store=true", fields["query"])
			assert.Equal(t, "POST", fields["method"])
		})
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, recorded := observedLogger()

	router := gin.New()
	router.Use(Recovery(logger))
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	entry := findEntry(recorded.All(), "Panic recovered")
	require.NotNil(t, entry)
	assert.Equal(t, "/panic", entry.ContextMap()["path"])
}
