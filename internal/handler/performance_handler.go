package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-results-api/internal/dto"
	"github.com/noah-isme/sma-results-api/internal/middleware"
	"github.com/noah-isme/sma-results-api/internal/models"
	"github.com/noah-isme/sma-results-api/pkg/response"
)

type performanceService interface {
	ClassPerformance(ctx context.Context, filter models.PerformanceFilter, role models.UserRole) (*models.ClassPerformance, bool, error)
	StudentSummary(ctx context.Context, studentID string, filter models.PerformanceFilter, role models.UserRole) (*dto.StudentSummaryResponse, bool, error)
}

// PerformanceHandler serves ranked class views and student summaries.
type PerformanceHandler struct {
	performance performanceService
}

// NewPerformanceHandler constructs a performance handler.
func NewPerformanceHandler(performance performanceService) *PerformanceHandler {
	return &PerformanceHandler{performance: performance}
}

// ClassPerformance godoc
// @Summary Ranked class performance
// @Description Cumulative scores, positions and class statistics. Only approved and printed results count unless include_pending is set by an admin.
// @Tags Performance
// @Produce json
// @Param id path string true "Class ID"
// @Param session query string true "Session"
// @Param term query string false "Term; omit for the whole session"
// @Param tie query string false "Tie policy: input or name"
// @Param include_pending query bool false "Count submitted results (admin only)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /classes/{id}/performance [get]
func (h *PerformanceHandler) ClassPerformance(c *gin.Context) {
	_, role, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter, err := parsePerformanceFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.ClassID = c.Param("id")

	perf, hit, err := h.performance.ClassPerformance(c.Request.Context(), filter, role)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, perf, nil, middleware.ExtractMeta(c))
}

// StudentSummary godoc
// @Summary One student's ranked summary
// @Tags Performance
// @Produce json
// @Param id path string true "Student ID"
// @Param class_id query string false "Class ID; defaults to the student's class"
// @Param session query string true "Session"
// @Param term query string false "Term"
// @Param tie query string false "Tie policy"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/summary [get]
func (h *PerformanceHandler) StudentSummary(c *gin.Context) {
	_, role, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter, err := parsePerformanceFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.ClassID = c.Query("class_id")

	summary, hit, err := h.performance.StudentSummary(c.Request.Context(), c.Param("id"), filter, role)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}

func parsePerformanceFilter(c *gin.Context) (models.PerformanceFilter, error) {
	includePending, err := queryBool(c, "include_pending")
	if err != nil {
		return models.PerformanceFilter{}, err
	}
	return models.PerformanceFilter{
		Session:        c.Query("session"),
		Term:           models.Term(c.Query("term")),
		TiePolicy:      c.Query("tie"),
		IncludePending: includePending,
	}, nil
}
