package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ElleGoodarzi/schoolaut-sub000/internal/models"
	"github.com/ElleGoodarzi/schoolaut-sub000/internal/service"
	appErrors "github.com/ElleGoodarzi/schoolaut-sub000/pkg/errors"
	"github.com/ElleGoodarzi/schoolaut-sub000/pkg/response"
)

// ServiceAssignmentHandler exposes meal/transport subscription endpoints.
type ServiceAssignmentHandler struct {
	assignments *service.ServiceAssignmentService
}

// NewServiceAssignmentHandler constructs the handler.
func NewServiceAssignmentHandler(assignments *service.ServiceAssignmentService) *ServiceAssignmentHandler {
	return &ServiceAssignmentHandler{assignments: assignments}
}

// List godoc
// @Summary List service subscriptions
// @Tags Services
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param classId query string false "Filter by class"
// @Param type query string false "MEAL or TRANSPORT"
// @Param active query bool false "Filter by active state"
// @Success 200 {object} response.Envelope
// @Router /services [get]
func (h *ServiceAssignmentHandler) List(c *gin.Context) {
	var filter models.ServiceAssignmentFilter
	filter.StudentID = c.Query("studentId")
	filter.ClassID = c.Query("classId")
	if t := c.Query("type"); t != "" {
		serviceType := models.ServiceType(strings.ToUpper(t))
		if !serviceType.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "type must be MEAL or TRANSPORT"))
			return
		}
		filter.Type = &serviceType
	}
	if active := c.Query("active"); active != "" {
		if v, err := strconv.ParseBool(active); err == nil {
			filter.Active = &v
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	assignments, pagination, err := h.assignments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, pagination)
}

// Get godoc
// @Summary Get subscription
// @Tags Services
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /services/{id} [get]
func (h *ServiceAssignmentHandler) Get(c *gin.Context) {
	assignment, err := h.assignments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Assign godoc
// @Summary Subscribe a student to a service
// @Tags Services
// @Accept json
// @Produce json
// @Param payload body service.AssignServiceRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Router /services [post]
func (h *ServiceAssignmentHandler) Assign(c *gin.Context) {
	var req service.AssignServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assignment, err := h.assignments.Assign(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// Update godoc
// @Summary Amend a subscription
// @Tags Services
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body service.UpdateServiceRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Router /services/{id} [put]
func (h *ServiceAssignmentHandler) Update(c *gin.Context) {
	var req service.UpdateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assignment, err := h.assignments.Update(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Terminate godoc
// @Summary End a subscription
// @Tags Services
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body object true "End date"
// @Success 204
// @Router /services/{id}/terminate [post]
func (h *ServiceAssignmentHandler) Terminate(c *gin.Context) {
	var payload struct {
		EndDate string `json:"end_date" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "end_date is required"))
		return
	}
	endDate, err := time.Parse("2006-01-02", payload.EndDate)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "end_date must be YYYY-MM-DD"))
		return
	}
	if err := h.assignments.Terminate(c.Request.Context(), actorFromContext(c), c.Param("id"), endDate); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// @Summary Delete a service assignment
// @Tags Services
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 204
// @Router /services/{id} [delete]
func (h *ServiceAssignmentHandler) Delete(c *gin.Context) {
	if err := h.assignments.Delete(c.Request.Context(), actorFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
