package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ElleGoodarzi/schoolaut-sub000/internal/service"
	"github.com/ElleGoodarzi/schoolaut-sub000/pkg/response"
)

// DashboardHandler exposes the cached daily overview and runtime metrics.
type DashboardHandler struct {
	dashboard *service.DashboardService
	metrics   *service.MetricsService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboard *service.DashboardService, metrics *service.MetricsService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, metrics: metrics}
}

// Overview godoc
// @Summary Daily operational overview
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Overview(c *gin.Context) {
	overview, cached, err := h.dashboard.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil, map[string]interface{}{"cached": cached})
}

// SystemMetrics godoc
// @Summary Runtime counters for the admin UI
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/system [get]
func (h *DashboardHandler) SystemMetrics(c *gin.Context) {
	snapshot := h.metrics.Snapshot()
	response.JSON(c, http.StatusOK, snapshot, nil)
}
