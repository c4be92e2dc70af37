package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-results-api/internal/dto"
	"github.com/noah-isme/sma-results-api/internal/models"
	appErrors "github.com/noah-isme/sma-results-api/pkg/errors"
	"github.com/noah-isme/sma-results-api/pkg/response"
)

type resultService interface {
	List(ctx context.Context, filter models.ResultFilter) ([]models.ResultRecord, *models.Pagination, error)
	Submit(ctx context.Context, req dto.SubmitResultRequest, actorID string) (*models.ResultRecord, error)
	BulkSubmit(ctx context.Context, req dto.BulkSubmitRequest, actorID string) (*dto.BulkSubmitResponse, error)
	Approve(ctx context.Context, scope models.ResultScope, actorID string) (*dto.TransitionResponse, error)
	Print(ctx context.Context, scope models.ResultScope, actorID string) (*dto.TransitionResponse, error)
}

// ResultHandler exposes result entry and the approval lifecycle.
type ResultHandler struct {
	results resultService
}

// NewResultHandler constructs a result handler.
func NewResultHandler(results resultService) *ResultHandler {
	return &ResultHandler{results: results}
}

// List godoc
// @Summary List result records
// @Tags Results
// @Produce json
// @Param class_id query string false "Class ID"
// @Param subject_id query string false "Subject ID"
// @Param student_id query string false "Student ID"
// @Param term query string false "Term"
// @Param session query string false "Session"
// @Param status query string false "Comma separated statuses"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /results [get]
func (h *ResultHandler) List(c *gin.Context) {
	filter := models.ResultFilter{
		ClassID:   c.Query("class_id"),
		SubjectID: c.Query("subject_id"),
		StudentID: c.Query("student_id"),
		Term:      models.Term(c.Query("term")),
		Session:   c.Query("session"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "limit", 50),
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := models.ResultStatus(strings.ToLower(strings.TrimSpace(part)))
			switch status {
			case models.ResultStatusSubmitted, models.ResultStatusApproved, models.ResultStatusPrinted:
				filter.Statuses = append(filter.Statuses, status)
			default:
				response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown status "+part))
				return
			}
		}
	}

	records, pagination, err := h.results.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Submit godoc
// @Summary Submit one result
// @Tags Results
// @Accept json
// @Produce json
// @Param payload body dto.SubmitResultRequest true "Scores"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /results [post]
func (h *ResultHandler) Submit(c *gin.Context) {
	actorID, _, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.SubmitResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid result payload"))
		return
	}
	record, err := h.results.Submit(c.Request.Context(), req, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// BulkSubmit godoc
// @Summary Submit a class subject sheet
// @Description mode=atomic stores nothing when any item fails; mode=partialOnError stores the valid items.
// @Tags Results
// @Accept json
// @Produce json
// @Param payload body dto.BulkSubmitRequest true "Sheet"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /results/bulk [post]
func (h *ResultHandler) BulkSubmit(c *gin.Context) {
	actorID, _, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.BulkSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk payload"))
		return
	}
	resp, err := h.results.BulkSubmit(c.Request.Context(), req, actorID)
	if err != nil {
		if resp != nil {
			response.ErrorWithData(c, err, resp)
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Approve godoc
// @Summary Approve submitted results in scope
// @Tags Results
// @Accept json
// @Produce json
// @Param payload body models.ResultScope true "Scope"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /results/approve [post]
func (h *ResultHandler) Approve(c *gin.Context) {
	h.transition(c, h.results.Approve)
}

// Print godoc
// @Summary Mark approved results in scope as printed
// @Tags Results
// @Accept json
// @Produce json
// @Param payload body models.ResultScope true "Scope"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /results/print [post]
func (h *ResultHandler) Print(c *gin.Context) {
	h.transition(c, h.results.Print)
}

func (h *ResultHandler) transition(c *gin.Context, apply func(context.Context, models.ResultScope, string) (*dto.TransitionResponse, error)) {
	actorID, _, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var scope models.ResultScope
	if err := c.ShouldBindJSON(&scope); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scope"))
		return
	}
	resp, err := apply(c.Request.Context(), scope, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}
