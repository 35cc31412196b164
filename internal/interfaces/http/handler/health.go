package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/erp/invoicer/internal/interfaces/http/dto"
)

// HealthHandler reports liveness
type HealthHandler struct {
	version string
	engine  string
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(version, engine string) *HealthHandler {
	return &HealthHandler{version: version, engine: engine}
}

// Health godoc
// @Summary  Liveness probe
// @Tags     system
// @Produce  json
// @Success  200  {object}  dto.HealthResponse
// @Router   /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:  "ok",
		Version: h.version,
		Engine:  h.engine,
	})
}
