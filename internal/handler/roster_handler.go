package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-results-api/internal/models"
	"github.com/noah-isme/sma-results-api/pkg/response"
)

type rosterService interface {
	ListStudents(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error)
	GetStudent(ctx context.Context, id string) (*models.Student, error)
	ListClasses(ctx context.Context) ([]models.Class, error)
	GetClass(ctx context.Context, id string) (*models.Class, error)
}

// RosterHandler exposes read-only class and student rosters.
type RosterHandler struct {
	roster rosterService
}

// NewRosterHandler constructs a roster handler.
func NewRosterHandler(roster rosterService) *RosterHandler {
	return &RosterHandler{roster: roster}
}

// ListStudents godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param class_id query string false "Class ID"
// @Param active query bool false "Active flag"
// @Param search query string false "Name or admission number"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *RosterHandler) ListStudents(c *gin.Context) {
	filter := models.StudentFilter{
		ClassID:  c.Query("class_id"),
		Search:   strings.TrimSpace(c.Query("search")),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "limit", 50),
	}
	if c.Query("active") != "" {
		active, err := queryBool(c, "active")
		if err != nil {
			response.Error(c, err)
			return
		}
		filter.Active = &active
	}

	students, pagination, err := h.roster.ListStudents(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// GetStudent godoc
// @Summary Get student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *RosterHandler) GetStudent(c *gin.Context) {
	student, err := h.roster.GetStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// ListClasses godoc
// @Summary List classes
// @Tags Classes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *RosterHandler) ListClasses(c *gin.Context) {
	classes, err := h.roster.ListClasses(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, nil)
}

// GetClass godoc
// @Summary Get class
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *RosterHandler) GetClass(c *gin.Context) {
	class, err := h.roster.GetClass(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}
