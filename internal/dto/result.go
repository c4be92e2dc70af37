package dto

import "github.com/noah-isme/sma-results-api/internal/models"

// Bulk submission modes.
const (
	BulkModeAtomic         = "atomic"
	BulkModePartialOnError = "partialOnError"
)

// SubmitResultRequest captures POST /results payload.
type SubmitResultRequest struct {
	StudentID string      `json:"student_id" validate:"required"`
	SubjectID string      `json:"subject_id" validate:"required"`
	ClassID   string      `json:"class_id" validate:"required"`
	Term      models.Term `json:"term" validate:"required"`
	Session   string      `json:"session" validate:"required"`
	Test1     float64     `json:"test1"`
	Test2     float64     `json:"test2"`
	Exam      float64     `json:"exam"`
}

// BulkResultItem is one student's scores inside a bulk submission.
type BulkResultItem struct {
	StudentID string  `json:"student_id" validate:"required"`
	Test1     float64 `json:"test1"`
	Test2     float64 `json:"test2"`
	Exam      float64 `json:"exam"`
}

// BulkSubmitRequest captures POST /results/bulk payload for one class subject sheet.
type BulkSubmitRequest struct {
	ClassID   string           `json:"class_id" validate:"required"`
	SubjectID string           `json:"subject_id" validate:"required"`
	Term      models.Term      `json:"term" validate:"required"`
	Session   string           `json:"session" validate:"required"`
	Mode      string           `json:"mode,omitempty" validate:"omitempty,oneof=atomic partialOnError"`
	Items     []BulkResultItem `json:"items" validate:"required,min=1,dive"`
}

// BulkItemError reports why one bulk item was not stored.
type BulkItemError struct {
	Index     int    `json:"index"`
	StudentID string `json:"student_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// BulkSubmitResponse summarises a bulk submission.
type BulkSubmitResponse struct {
	Mode     string                `json:"mode"`
	Accepted int                   `json:"accepted"`
	Results  []models.ResultRecord `json:"results"`
	Errors   []BulkItemError       `json:"errors,omitempty"`
}

// TransitionResponse reports how many records an approve or print action moved.
type TransitionResponse struct {
	Scope    models.ResultScope  `json:"scope"`
	Status   models.ResultStatus `json:"status"`
	Affected int64               `json:"affected"`
}

// UpdateSubjectMaximaRequest captures PUT /subjects/:id/maxima payload.
type UpdateSubjectMaximaRequest struct {
	Test1Max float64 `json:"test1_max" validate:"gte=0"`
	Test2Max float64 `json:"test2_max" validate:"gte=0"`
	ExamMax  float64 `json:"exam_max" validate:"gte=0"`
}

// StudentSummaryResponse is one student's ranked summary within the class view.
type StudentSummaryResponse struct {
	ClassID   string                 `json:"class_id"`
	ClassName string                 `json:"class_name"`
	Session   string                 `json:"session"`
	Term      models.Term            `json:"term,omitempty"`
	ClassSize int                    `json:"class_size"`
	Subjects  []models.SubjectColumn `json:"subjects"`
	Summary   models.StudentSummary  `json:"summary"`
}
