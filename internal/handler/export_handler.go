package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-results-api/internal/dto"
	"github.com/noah-isme/sma-results-api/internal/models"
	"github.com/noah-isme/sma-results-api/internal/service"
	appErrors "github.com/noah-isme/sma-results-api/pkg/errors"
	"github.com/noah-isme/sma-results-api/pkg/response"
)

type broadsheetRenderer interface {
	RenderRequest(ctx context.Context, req dto.ExportRequest, role models.UserRole) (*service.RenderedExport, error)
}

type exportJobService interface {
	CreateJob(ctx context.Context, req dto.ExportRequest, actorID string) (*dto.ExportJobResponse, error)
	GetStatus(ctx context.Context, id, actorID string, role models.UserRole) (*dto.ExportStatusResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error)
}

// ExportHandler serves broadsheet downloads and background export jobs.
type ExportHandler struct {
	renderer broadsheetRenderer
	jobs     exportJobService
}

// NewExportHandler constructs an export handler. jobs may be nil when background exports are disabled.
func NewExportHandler(renderer broadsheetRenderer, jobs exportJobService) *ExportHandler {
	return &ExportHandler{renderer: renderer, jobs: jobs}
}

// Broadsheet godoc
// @Summary Download a class broadsheet
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Class ID"
// @Param session query string true "Session"
// @Param term query string false "Term"
// @Param tie query string false "Tie policy"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /classes/{id}/broadsheet [get]
func (h *ExportHandler) Broadsheet(c *gin.Context) {
	_, role, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid broadsheet query"))
		return
	}
	req.ClassID = c.Param("id")
	if req.Format == "" {
		req.Format = models.ExportFormatCSV
	}

	rendered, err := h.renderer.RenderRequest(c.Request.Context(), req, role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, rendered.Filename, rendered.ContentType, rendered.Payload)
}

// CreateJob godoc
// @Summary Queue a broadsheet export
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body dto.ExportRequest true "Export request"
// @Success 202 {object} response.Envelope
// @Router /exports/broadsheets [post]
func (h *ExportHandler) CreateJob(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "background exports are disabled"))
		return
	}
	actorID, _, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload"))
		return
	}
	resp, err := h.jobs.CreateJob(c.Request.Context(), req, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, resp, nil)
}

// JobStatus godoc
// @Summary Export job status
// @Tags Exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /exports/{id} [get]
func (h *ExportHandler) JobStatus(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "background exports are disabled"))
		return
	}
	actorID, role, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	resp, err := h.jobs.GetStatus(c.Request.Context(), c.Param("id"), actorID, role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Download godoc
// @Summary Download a finished export by signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "background exports are disabled"))
		return
	}
	download, err := h.jobs.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export file"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", download.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), download.Format.ContentType(), download.File, nil)
}
