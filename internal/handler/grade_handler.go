package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/examdash/exam-dash-api/internal/service"
	appErrors "github.com/examdash/exam-dash-api/pkg/errors"
	"github.com/examdash/exam-dash-api/pkg/response"
)

// GradeHandler exposes grade determination endpoints.
type GradeHandler struct {
	grades *service.GradeService
}

// NewGradeHandler constructs handler.
func NewGradeHandler(grades *service.GradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// CourseGrade godoc
// @Summary Determined grade for one student in a course
// @Tags Grades
// @Produce json
// @Param id path string true "Course ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/grades/{studentId} [get]
func (h *GradeHandler) CourseGrade(c *gin.Context) {
	result, err := h.grades.CourseGrade(c.Request.Context(), c.Param("id"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Roster godoc
// @Summary Grade roster for a course
// @Tags Grades
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/roster [get]
func (h *GradeHandler) Roster(c *gin.Context) {
	roster, err := h.grades.Roster(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// Strategy godoc
// @Summary Grade strategy configured for a course
// @Tags Grades
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /courses/{id}/grade-strategy [get]
func (h *GradeHandler) Strategy(c *gin.Context) {
	strategy, err := h.grades.Strategy(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, strategy, nil)
}

// UpdateStrategy godoc
// @Summary Replace or clear the grade strategy of a course
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.UpdateStrategyRequest true "Strategy payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /courses/{id}/grade-strategy [put]
func (h *GradeHandler) UpdateStrategy(c *gin.Context) {
	var req service.UpdateStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	strategy, err := h.grades.UpdateStrategy(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, strategy, nil)
}
