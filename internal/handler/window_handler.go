package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/examdash/exam-dash-api/internal/models"
	"github.com/examdash/exam-dash-api/internal/service"
	appErrors "github.com/examdash/exam-dash-api/pkg/errors"
	"github.com/examdash/exam-dash-api/pkg/response"
)

// WindowHandler exposes recurring test window endpoints and the
// materialized slot feeds derived from them.
type WindowHandler struct {
	windows *service.WindowService
}

// NewWindowHandler constructs WindowHandler.
func NewWindowHandler(windows *service.WindowService) *WindowHandler {
	return &WindowHandler{windows: windows}
}

// List godoc
// @Summary List test windows
// @Tags Test Windows
// @Produce json
// @Param courseId query string false "Filter by course"
// @Param active query bool false "Filter by active state"
// @Success 200 {object} response.Envelope
// @Router /test-windows [get]
func (h *WindowHandler) List(c *gin.Context) {
	var filter models.TestWindowFilter
	filter.CourseID = c.Query("courseId")
	filter.Active = parseBoolQuery(c, "active")

	windows, err := h.windows.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, windows, nil)
}

// Get godoc
// @Summary Get test window detail
// @Tags Test Windows
// @Produce json
// @Param id path string true "Window ID"
// @Success 200 {object} response.Envelope
// @Router /test-windows/{id} [get]
func (h *WindowHandler) Get(c *gin.Context) {
	window, err := h.windows.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, window, nil)
}

// Create godoc
// @Summary Create test window
// @Tags Test Windows
// @Accept json
// @Produce json
// @Param payload body service.SaveWindowRequest true "Window payload"
// @Success 201 {object} response.Envelope
// @Router /test-windows [post]
func (h *WindowHandler) Create(c *gin.Context) {
	var req service.SaveWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	window, err := h.windows.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, window)
}

// Update godoc
// @Summary Update test window
// @Tags Test Windows
// @Accept json
// @Produce json
// @Param id path string true "Window ID"
// @Param payload body service.SaveWindowRequest true "Window payload"
// @Success 200 {object} response.Envelope
// @Router /test-windows/{id} [put]
func (h *WindowHandler) Update(c *gin.Context) {
	var req service.SaveWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	window, err := h.windows.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, window, nil)
}

// Delete godoc
// @Summary Delete test window
// @Tags Test Windows
// @Produce json
// @Param id path string true "Window ID"
// @Success 204 {object} response.Envelope
// @Router /test-windows/{id} [delete]
func (h *WindowHandler) Delete(c *gin.Context) {
	if err := h.windows.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Slots godoc
// @Summary Materialized slots for a single window
// @Tags Test Windows
// @Produce json
// @Param id path string true "Window ID"
// @Success 200 {object} response.Envelope
// @Router /test-windows/{id}/slots [get]
func (h *WindowHandler) Slots(c *gin.Context) {
	slots, err := h.windows.WindowSlots(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// CourseSlots godoc
// @Summary Merged slot calendar for all active windows of a course
// @Tags Test Windows
// @Produce json
// @Param id path string true "Course ID"
// @Param from query string false "Keep slots on or after this date (YYYY-MM-DD)"
// @Param to query string false "Keep slots on or before this date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/slots [get]
func (h *WindowHandler) CourseSlots(c *gin.Context) {
	slots, err := h.windows.CourseSlots(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	slots, err = filterSlotRange(slots, c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// filterSlotRange narrows a slot feed to an inclusive date range. Slot IDs
// end in the slot's local ISO date, so the comparison stays in the feed's
// own zone without reparsing timestamps.
func filterSlotRange(slots []models.CalendarSlot, from, to string) ([]models.CalendarSlot, error) {
	if from == "" && to == "" {
		return slots, nil
	}
	for _, bound := range []string{from, to} {
		if bound == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", bound); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "from/to must be YYYY-MM-DD")
		}
	}
	kept := make([]models.CalendarSlot, 0, len(slots))
	for _, slot := range slots {
		date := slot.ID[strings.LastIndexByte(slot.ID, ':')+1:]
		if from != "" && date < from {
			continue
		}
		if to != "" && date > to {
			continue
		}
		kept = append(kept, slot)
	}
	return kept, nil
}
