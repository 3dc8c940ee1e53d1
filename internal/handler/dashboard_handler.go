package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/examdash/exam-dash-api/internal/middleware"
	"github.com/examdash/exam-dash-api/internal/models"
	appErrors "github.com/examdash/exam-dash-api/pkg/errors"
	"github.com/examdash/exam-dash-api/pkg/response"
)

type dashboardService interface {
	Summary(ctx context.Context, studentID string) (*models.DashboardSummary, error)
}

type studentResolver interface {
	GetByUser(ctx context.Context, userID string) (*models.Student, error)
}

// DashboardHandler wires the dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service  dashboardService
	students studentResolver
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService, students studentResolver) *DashboardHandler {
	return &DashboardHandler{service: service, students: students}
}

// Summary godoc
// @Summary Student dashboard summary
// @Description Status counts, backlog, upcoming slots and course grades for one student. Students always see their own summary; staff pass studentId.
// @Tags Dashboard
// @Produce json
// @Param studentId query string false "Student ID (staff only)"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /dashboard/summary [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	studentID := strings.TrimSpace(c.Query("studentId"))
	if claims.Role == models.RoleStudent {
		student, err := h.students.GetByUser(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, err)
			return
		}
		studentID = student.ID
	} else if studentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "studentId is required"))
		return
	}

	start := time.Now()
	summary, err := h.service.Summary(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, summary, nil, meta)
}
