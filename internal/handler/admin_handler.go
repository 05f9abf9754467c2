package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/bioweaver/internal/pkg/response"
)

type AdminHandler struct {
	stats  StatsService
	seed   SeedService
	health HealthService
}

func NewAdminHandler(stats StatsService, seed SeedService, health HealthService) *AdminHandler {
	return &AdminHandler{stats: stats, seed: seed, health: health}
}

func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.stats.Stats(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stats)
}

func (h *AdminHandler) SeedDemo(c *gin.Context) {
	res, err := h.seed.SeedDemo(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, res)
}

func (h *AdminHandler) ClearDemo(c *gin.Context) {
	res, err := h.seed.ClearDemo(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, res)
}

func (h *AdminHandler) Health(c *gin.Context) {
	deep, _ := strconv.ParseBool(c.Query("deep"))
	response.Success(c, h.health.Collect(c.Request.Context(), deep))
}

// Ping is the unauthenticated liveness probe.
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
