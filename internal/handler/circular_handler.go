package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ElleGoodarzi/schoolaut-sub000/internal/service"
	appErrors "github.com/ElleGoodarzi/schoolaut-sub000/pkg/errors"
	"github.com/ElleGoodarzi/schoolaut-sub000/pkg/response"
)

// CircularHandler exposes circular endpoints.
type CircularHandler struct {
	circulars *service.CircularService
}

// NewCircularHandler constructs CircularHandler.
func NewCircularHandler(circulars *service.CircularService) *CircularHandler {
	return &CircularHandler{circulars: circulars}
}

// List godoc
// @Summary List circulars visible to the caller
// @Description Teachers see school-wide and own-class circulars, finance sees school-wide only.
// @Tags Circulars
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /circulars [get]
func (h *CircularHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	circulars, pagination, err := h.circulars.List(c.Request.Context(), actorFromContext(c), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, circulars, pagination)
}

// Get godoc
// @Summary Get circular
// @Tags Circulars
// @Produce json
// @Param id path string true "Circular ID"
// @Success 200 {object} response.Envelope
// @Router /circulars/{id} [get]
func (h *CircularHandler) Get(c *gin.Context) {
	circular, err := h.circulars.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, circular, nil)
}

// Create godoc
// @Summary Publish circular
// @Tags Circulars
// @Accept json
// @Produce json
// @Param payload body service.CreateCircularRequest true "Circular payload"
// @Success 201 {object} response.Envelope
// @Router /circulars [post]
func (h *CircularHandler) Create(c *gin.Context) {
	var req service.CreateCircularRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	circular, err := h.circulars.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, circular)
}

// Update godoc
// @Summary Update circular
// @Tags Circulars
// @Accept json
// @Produce json
// @Param id path string true "Circular ID"
// @Param payload body service.UpdateCircularRequest true "Circular payload"
// @Success 200 {object} response.Envelope
// @Router /circulars/{id} [put]
func (h *CircularHandler) Update(c *gin.Context) {
	var req service.UpdateCircularRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	circular, err := h.circulars.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, circular, nil)
}

// Delete godoc
// @Summary Delete circular
// @Tags Circulars
// @Produce json
// @Param id path string true "Circular ID"
// @Success 204
// @Router /circulars/{id} [delete]
func (h *CircularHandler) Delete(c *gin.Context) {
	if err := h.circulars.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
