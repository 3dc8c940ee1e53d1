package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestExamHandlerBacklogRequiresStudent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExamHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/exam-instances/backlog", nil)

	handler.Backlog(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExamHandlerSetStateRequiresState(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExamHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPatch, "/exams/exam-1/state", nil)

	handler.SetState(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
