package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ElleGoodarzi/schoolaut-sub000/internal/service"
	appErrors "github.com/ElleGoodarzi/schoolaut-sub000/pkg/errors"
	"github.com/ElleGoodarzi/schoolaut-sub000/pkg/response"
)

// AttendanceHandler exposes attendance endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
	exporter   *service.ExportService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService, exporter *service.ExportService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, exporter: exporter}
}

func parseDateQuery(c *gin.Context, key string) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, key+" is required as YYYY-MM-DD")
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, key+" must be YYYY-MM-DD")
	}
	return date, nil
}

// Roster godoc
// @Summary Class roster for a day
// @Tags Attendance
// @Produce json
// @Param classId query string false "Class ID; omit for the whole school"
// @Param date query string true "Date YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Router /attendance/roster [get]
func (h *AttendanceHandler) Roster(c *gin.Context) {
	classID := c.Query("classId")
	date, err := parseDateQuery(c, "date")
	if err != nil {
		response.Error(c, err)
		return
	}
	roster, err := h.attendance.Roster(c.Request.Context(), actorFromContext(c), classID, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// Mark godoc
// @Summary Mark one student's attendance
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.MarkAttendanceRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req service.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.attendance.Mark(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// BulkMark godoc
// @Summary Mark a whole class at once
// @Description Rows are processed independently; failures land in the manifest.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.BulkMarkAttendanceRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/bulk [post]
func (h *AttendanceHandler) BulkMark(c *gin.Context) {
	var req service.BulkMarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.attendance.BulkMark(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Clear godoc
// @Summary Clear marks for a day
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.ClearAttendanceRequest true "Clear payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/clear [post]
func (h *AttendanceHandler) Clear(c *gin.Context) {
	var req service.ClearAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	affected, err := h.attendance.Clear(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"cleared": affected}, nil)
}

// List godoc
// @Summary List raw attendance records
// @Tags Attendance
// @Produce json
// @Param classId query string false "Filter by class"
// @Param studentId query string false "Filter by student"
// @Param status query string false "Filter by status"
// @Param from query string false "Date from YYYY-MM-DD"
// @Param to query string false "Date to YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	var req service.AttendanceListRequest
	req.ClassID = c.Query("classId")
	req.StudentID = c.Query("studentId")
	if status := c.Query("status"); status != "" {
		req.Status = &status
	}
	if from := c.Query("from"); from != "" {
		if parsed, err := time.Parse("2006-01-02", from); err == nil {
			req.DateFrom = &parsed
		}
	}
	if to := c.Query("to"); to != "" {
		if parsed, err := time.Parse("2006-01-02", to); err == nil {
			req.DateTo = &parsed
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		req.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		req.PageSize = size
	}
	req.SortBy = c.Query("sort")
	req.SortOrder = c.Query("order")

	records, pagination, err := h.attendance.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// StudentReport godoc
// @Summary Student attendance history and summary
// @Tags Attendance
// @Produce json
// @Param id path string true "Student ID"
// @Param from query string false "Date from YYYY-MM-DD"
// @Param to query string false "Date to YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/attendance [get]
func (h *AttendanceHandler) StudentReport(c *gin.Context) {
	var from, to *time.Time
	if raw := c.Query("from"); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			from = &parsed
		}
	}
	if raw := c.Query("to"); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			to = &parsed
		}
	}
	report, err := h.attendance.StudentReport(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// History mirrors StudentReport for clients that address the student
// through a query parameter instead of the path.
//
// @Summary Student attendance history and summary
// @Tags attendance
// @Security BearerAuth
// @Param studentId query string true "Student ID"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance/history [get]
func (h *AttendanceHandler) History(c *gin.Context) {
	studentID := c.Query("studentId")
	if studentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "studentId is required"))
		return
	}
	var from, to *time.Time
	if raw := c.Query("from"); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			from = &parsed
		}
	}
	if raw := c.Query("to"); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			to = &parsed
		}
	}
	report, err := h.attendance.StudentReport(c.Request.Context(), studentID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ExportRoster godoc
// @Summary Download the day roster as CSV
// @Tags Attendance
// @Produce text/csv
// @Param classId query string false "Class ID; omit for the whole school"
// @Param date query string true "Date YYYY-MM-DD"
// @Success 200 {file} file
// @Router /attendance/export [get]
func (h *AttendanceHandler) ExportRoster(c *gin.Context) {
	classID := c.Query("classId")
	date, err := parseDateQuery(c, "date")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := service.RosterExportFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
	}
	filename, payload, err := h.exporter.RosterCSV(c.Request.Context(), classID, date, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", payload)
}
