package dto

import "github.com/noah-isme/sma-results-api/internal/models"

// ExportRequest captures POST /exports/broadsheets payload and sync download query.
type ExportRequest struct {
	ClassID string              `json:"class_id" form:"class_id" validate:"required"`
	Session string              `json:"session" form:"session" validate:"required"`
	Term    models.Term         `json:"term,omitempty" form:"term"`
	Tie     string              `json:"tie,omitempty" form:"tie"`
	Format  models.ExportFormat `json:"format" form:"format" validate:"required"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse exposes job progress metadata.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ExportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
