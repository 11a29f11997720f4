package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moshiurrahman101/ccit-sub003/internal/service"
	appErrors "github.com/moshiurrahman101/ccit-sub003/pkg/errors"
	"github.com/moshiurrahman101/ccit-sub003/pkg/response"
)

// AttendanceHandler exposes attendance recording, statistics and export.
type AttendanceHandler struct {
	service *service.AttendanceService
}

// NewAttendanceHandler creates a new handler.
func NewAttendanceHandler(svc *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Mark godoc
// @Summary Mark attendance
// @Description Record a student's presence for a class date; rewrites overwrite
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.MarkAttendanceRequest true "Attendance payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance payload"))
		return
	}

	record, err := h.service.Mark(c.Request.Context(), claims.Role, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// ListForStudent godoc
// @Summary List student attendance
// @Tags Attendance
// @Produce json
// @Param id path string true "Batch ID"
// @Param student_id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /batches/{id}/attendance/{student_id} [get]
func (h *AttendanceHandler) ListForStudent(c *gin.Context) {
	records, err := h.service.ListForStudent(c.Request.Context(), c.Param("id"), c.Param("student_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Statistics godoc
// @Summary Student attendance statistics
// @Description Aggregated counts and percentage derived at read time
// @Tags Attendance
// @Produce json
// @Param id path string true "Batch ID"
// @Param student_id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /batches/{id}/attendance/{student_id}/statistics [get]
func (h *AttendanceHandler) Statistics(c *gin.Context) {
	stats, err := h.service.Statistics(c.Request.Context(), c.Param("id"), c.Param("student_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Export godoc
// @Summary Export batch attendance
// @Description Download the attendance sheet as CSV or PDF
// @Tags Attendance
// @Produce octet-stream
// @Param id path string true "Batch ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /batches/{id}/attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	batchID := c.Param("id")
	format := c.DefaultQuery("format", "csv")

	payload, contentType, err := h.service.Export(c.Request.Context(), batchID, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("attendance-%s.%s", batchID, format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
