package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/examdash/exam-dash-api/internal/models"
	"github.com/examdash/exam-dash-api/internal/service"
	appErrors "github.com/examdash/exam-dash-api/pkg/errors"
	"github.com/examdash/exam-dash-api/pkg/response"
)

// ExamHandler exposes exam definition and exam instance endpoints.
type ExamHandler struct {
	exams *service.ExamService
}

// NewExamHandler constructs ExamHandler.
func NewExamHandler(exams *service.ExamService) *ExamHandler {
	return &ExamHandler{exams: exams}
}

// List godoc
// @Summary List exam definitions
// @Tags Exams
// @Produce json
// @Param courseId query string false "Filter by course"
// @Param state query int false "Filter by state (0 inactive, 1 active)"
// @Success 200 {object} response.Envelope
// @Router /exams [get]
func (h *ExamHandler) List(c *gin.Context) {
	var filter models.ExamFilter
	filter.CourseID = c.Query("courseId")
	if raw := c.Query("state"); raw != "" {
		state, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "state must be 0 or 1"))
			return
		}
		filter.State = &state
	}

	exams, err := h.exams.ListExams(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exams, nil)
}

// Get godoc
// @Summary Get exam definition
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id} [get]
func (h *ExamHandler) Get(c *gin.Context) {
	exam, err := h.exams.GetExam(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exam, nil)
}

// Create godoc
// @Summary Create exam definition
// @Tags Exams
// @Accept json
// @Produce json
// @Param payload body service.CreateExamRequest true "Exam payload"
// @Success 201 {object} response.Envelope
// @Router /exams [post]
func (h *ExamHandler) Create(c *gin.Context) {
	var req service.CreateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	exam, err := h.exams.CreateExam(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, exam)
}

// Update godoc
// @Summary Update exam definition
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param payload body service.UpdateExamRequest true "Exam payload"
// @Success 200 {object} response.Envelope
// @Router /exams/{id} [put]
func (h *ExamHandler) Update(c *gin.Context) {
	var req service.UpdateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	exam, err := h.exams.UpdateExam(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exam, nil)
}

// SetState godoc
// @Summary Activate or retire exam definition
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param payload body map[string]int true "State payload"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/state [patch]
func (h *ExamHandler) SetState(c *gin.Context) {
	var payload struct {
		State *int `json:"state" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "state required"))
		return
	}
	exam, err := h.exams.SetExamState(c.Request.Context(), c.Param("id"), *payload.State)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exam, nil)
}

// ListInstances godoc
// @Summary List exam instances with classified status
// @Tags Exam Instances
// @Produce json
// @Param courseId query string false "Filter by course"
// @Param studentId query string false "Filter by student"
// @Param examId query string false "Filter by exam definition"
// @Param required query bool false "Filter by required flag"
// @Success 200 {object} response.Envelope
// @Router /exam-instances [get]
func (h *ExamHandler) ListInstances(c *gin.Context) {
	var filter models.ExamInstanceFilter
	filter.CourseID = c.Query("courseId")
	filter.StudentID = c.Query("studentId")
	filter.ExamID = c.Query("examId")
	filter.Required = parseBoolQuery(c, "required")

	instances, err := h.exams.ListInstances(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instances, nil)
}

// GetInstance godoc
// @Summary Get exam instance with classified status
// @Tags Exam Instances
// @Produce json
// @Param id path string true "Instance ID"
// @Success 200 {object} response.Envelope
// @Router /exam-instances/{id} [get]
func (h *ExamHandler) GetInstance(c *gin.Context) {
	instance, err := h.exams.GetInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instance, nil)
}

// CreateInstance godoc
// @Summary Assign exam instance to a student
// @Tags Exam Instances
// @Accept json
// @Produce json
// @Param payload body service.CreateInstanceRequest true "Instance payload"
// @Success 201 {object} response.Envelope
// @Router /exam-instances [post]
func (h *ExamHandler) CreateInstance(c *gin.Context) {
	var req service.CreateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	instance, err := h.exams.CreateInstance(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, instance)
}

// Schedule godoc
// @Summary Schedule exam instance
// @Tags Exam Instances
// @Accept json
// @Produce json
// @Param id path string true "Instance ID"
// @Param payload body service.ScheduleInstanceRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Router /exam-instances/{id}/schedule [put]
func (h *ExamHandler) Schedule(c *gin.Context) {
	var req service.ScheduleInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	instance, err := h.exams.ScheduleInstance(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instance, nil)
}

// RecordResult godoc
// @Summary Record exam result
// @Tags Exam Instances
// @Accept json
// @Produce json
// @Param id path string true "Instance ID"
// @Param payload body service.RecordResultRequest true "Result payload"
// @Success 200 {object} response.Envelope
// @Router /exam-instances/{id}/result [put]
func (h *ExamHandler) RecordResult(c *gin.Context) {
	var req service.RecordResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	instance, err := h.exams.RecordResult(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instance, nil)
}

// Backlog godoc
// @Summary Exam instances still needing a schedule or sitting
// @Tags Exam Instances
// @Produce json
// @Param studentId query string true "Student ID"
// @Param courseId query string false "Filter by course"
// @Param status query string false "Comma separated statuses (PENDING,UPCOMING,MISSING)"
// @Success 200 {object} response.Envelope
// @Router /exam-instances/backlog [get]
func (h *ExamHandler) Backlog(c *gin.Context) {
	studentID := strings.TrimSpace(c.Query("studentId"))
	if studentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "studentId is required"))
		return
	}

	var statuses []models.ExamStatus
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			statuses = append(statuses, models.ExamStatus(part))
		}
	}

	backlog, err := h.exams.Backlog(c.Request.Context(), studentID, c.Query("courseId"), statuses)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, backlog, nil)
}
