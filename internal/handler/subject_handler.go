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

type subjectService interface {
	List(ctx context.Context, filter models.SubjectFilter, classID string) ([]models.Subject, error)
	Get(ctx context.Context, id string) (*models.Subject, error)
	UpdateMaxima(ctx context.Context, id string, req dto.UpdateSubjectMaximaRequest) (*models.Subject, error)
}

// SubjectHandler handles subject endpoints.
type SubjectHandler struct {
	service subjectService
}

// NewSubjectHandler constructs a subject handler.
func NewSubjectHandler(svc subjectService) *SubjectHandler {
	return &SubjectHandler{service: svc}
}

// List godoc
// @Summary List subjects
// @Tags Subjects
// @Produce json
// @Param class_id query string false "Only subjects on this class roster, in roster order"
// @Param active query bool false "Filter by active flag"
// @Param search query string false "Search keyword"
// @Success 200 {object} response.Envelope
// @Router /subjects [get]
func (h *SubjectHandler) List(c *gin.Context) {
	var filter models.SubjectFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if c.Query("active") != "" {
		active, err := queryBool(c, "active")
		if err != nil {
			response.Error(c, err)
			return
		}
		filter.Active = &active
	}

	subjects, err := h.service.List(c.Request.Context(), filter, c.Query("class_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}

// Get godoc
// @Summary Get subject by id
// @Tags Subjects
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /subjects/{id} [get]
func (h *SubjectHandler) Get(c *gin.Context) {
	subject, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject, nil)
}

// UpdateMaxima godoc
// @Summary Update subject score maxima
// @Tags Subjects
// @Accept json
// @Produce json
// @Param id path string true "Subject ID"
// @Param payload body dto.UpdateSubjectMaximaRequest true "Maxima"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /subjects/{id}/maxima [put]
func (h *SubjectHandler) UpdateMaxima(c *gin.Context) {
	var req dto.UpdateSubjectMaximaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid maxima payload"))
		return
	}
	subject, err := h.service.UpdateMaxima(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject, nil)
}
