package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-results-api/internal/dto"
	"github.com/noah-isme/sma-results-api/internal/models"
	"github.com/noah-isme/sma-results-api/internal/scoring"
	appErrors "github.com/noah-isme/sma-results-api/pkg/errors"
)

const testSession = "2025/2026"

type resultFixture struct {
	svc     *ResultService
	results *memoryResults
	cache   *recordingInvalidator
	metrics *MetricsService
}

func newResultFixture(policy scoring.ScorePolicy, existing ...models.ResultRecord) resultFixture {
	results := newMemoryResults(existing...)
	subjects := &stubSubjects{subjects: []models.Subject{
		{ID: "math", Code: "MTH", Name: "Mathematics", Test1Max: 20, Test2Max: 20, ExamMax: 60, Active: true},
		{ID: "old", Code: "OLD", Name: "Retired", Test1Max: 20, Test2Max: 20, ExamMax: 60, Active: false},
	}}
	students := &stubStudents{students: []models.Student{
		{ID: "s-1", FirstName: "Ada", LastName: "Obi", ClassID: "jss1", Active: true},
		{ID: "s-2", FirstName: "Bayo", LastName: "Ade", ClassID: "jss1", Active: true},
		{ID: "s-3", FirstName: "Chi", LastName: "Eze", ClassID: "jss2", Active: true},
	}}
	cache := &recordingInvalidator{}
	metrics := NewMetricsService()
	svc := NewResultService(results, subjects, students, scoring.NewNormalizer(policy), cache, metrics, nil, nil)
	return resultFixture{svc: svc, results: results, cache: cache, metrics: metrics}
}

func submitReq(studentID string, test1, test2, exam float64) dto.SubmitResultRequest {
	return dto.SubmitResultRequest{StudentID: studentID, SubjectID: "math", ClassID: "jss1", Term: models.TermFirst, Session: testSession, Test1: test1, Test2: test2, Exam: exam}
}

func TestResultServiceSubmitNormalisesAndStores(t *testing.T) {
	fx := newResultFixture(scoring.PolicyReject)

	record, err := fx.svc.Submit(context.Background(), submitReq("s-1", 15, 18, 50), "sup-1")
	require.NoError(t, err)
	assert.Equal(t, 83.0, record.TotalScore)
	assert.Equal(t, 83, record.Percentage)
	assert.Equal(t, models.ResultStatusSubmitted, record.Status)
	assert.Equal(t, "sup-1", record.SubmittedBy)
	assert.Equal(t, []string{"jss1"}, fx.cache.classes)
	assert.EqualValues(t, 1, fx.metrics.Snapshot().ResultsSubmitted)

	// resubmission while still submitted overwrites the scores in place
	record, err = fx.svc.Submit(context.Background(), submitReq("s-1", 20, 20, 60), "sup-1")
	require.NoError(t, err)
	assert.Equal(t, 100, record.Percentage)
	assert.Len(t, fx.results.records, 1)
}

func TestResultServiceSubmitOutOfRangePolicies(t *testing.T) {
	rejecting := newResultFixture(scoring.PolicyReject)
	_, err := rejecting.svc.Submit(context.Background(), submitReq("s-1", 25, 10, 40), "sup-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrScoreOutOfRange)
	assert.Contains(t, err.Error(), "test1")
	assert.Empty(t, rejecting.results.records)

	clamping := newResultFixture(scoring.PolicyClamp)
	record, err := clamping.svc.Submit(context.Background(), submitReq("s-1", 25, 10, 40), "sup-1")
	require.NoError(t, err)
	assert.Equal(t, 20.0, record.Test1)
	assert.Equal(t, 70, record.Percentage)
}

func TestResultServiceSubmitRejections(t *testing.T) {
	approved := models.ResultRecord{ID: "r-1", StudentID: "s-1", SubjectID: "math", ClassID: "jss1", Term: models.TermFirst, Session: testSession, Status: models.ResultStatusApproved}
	fx := newResultFixture(scoring.PolicyReject, approved)
	ctx := context.Background()

	_, err := fx.svc.Submit(ctx, submitReq("s-1", 10, 10, 40), "sup-1")
	assert.ErrorIs(t, err, appErrors.ErrFinalized)

	_, err = fx.svc.Submit(ctx, submitReq("s-3", 10, 10, 40), "sup-1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = fx.svc.Submit(ctx, submitReq("ghost", 10, 10, 40), "sup-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	bad := submitReq("s-2", 10, 10, 40)
	bad.Term = "Fourth Term"
	_, err = fx.svc.Submit(ctx, bad, "sup-1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	inactive := submitReq("s-2", 10, 10, 40)
	inactive.SubjectID = "old"
	_, err = fx.svc.Submit(ctx, inactive, "sup-1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	assert.Empty(t, fx.cache.classes)
}

func bulkReq(mode string, items ...dto.BulkResultItem) dto.BulkSubmitRequest {
	return dto.BulkSubmitRequest{ClassID: "jss1", SubjectID: "math", Term: models.TermFirst, Session: testSession, Mode: mode, Items: items}
}

func TestResultServiceBulkSubmitAtomicStoresNothingOnError(t *testing.T) {
	fx := newResultFixture(scoring.PolicyReject)

	resp, err := fx.svc.BulkSubmit(context.Background(), bulkReq("",
		dto.BulkResultItem{StudentID: "s-1", Test1: 10, Test2: 10, Exam: 40},
		dto.BulkResultItem{StudentID: "s-2", Test1: 10, Test2: 10, Exam: 70},
	), "sup-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	require.NotNil(t, resp)
	assert.Equal(t, dto.BulkModeAtomic, resp.Mode)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, 1, resp.Errors[0].Index)
	assert.Equal(t, appErrors.ErrScoreOutOfRange.Code, resp.Errors[0].Code)
	assert.Empty(t, fx.results.records)
	assert.Zero(t, fx.results.bulkCalls)
}

func TestResultServiceBulkSubmitAtomicCommits(t *testing.T) {
	fx := newResultFixture(scoring.PolicyReject)

	resp, err := fx.svc.BulkSubmit(context.Background(), bulkReq(dto.BulkModeAtomic,
		dto.BulkResultItem{StudentID: "s-1", Test1: 10, Test2: 10, Exam: 40},
		dto.BulkResultItem{StudentID: "s-2", Test1: 20, Test2: 20, Exam: 60},
	), "sup-1")
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Accepted)
	assert.Equal(t, 1, fx.results.bulkCalls)
	assert.Equal(t, 60, resp.Results[0].Percentage)
	assert.Equal(t, 100, resp.Results[1].Percentage)
	assert.Equal(t, []string{"jss1"}, fx.cache.classes)
}

func TestResultServiceBulkSubmitPartialReportsFailures(t *testing.T) {
	printed := models.ResultRecord{ID: "r-2", StudentID: "s-2", SubjectID: "math", ClassID: "jss1", Term: models.TermFirst, Session: testSession, Status: models.ResultStatusPrinted}
	fx := newResultFixture(scoring.PolicyReject, printed)

	resp, err := fx.svc.BulkSubmit(context.Background(), bulkReq(dto.BulkModePartialOnError,
		dto.BulkResultItem{StudentID: "s-1", Test1: 10, Test2: 10, Exam: 40},
		dto.BulkResultItem{StudentID: "s-2", Test1: 10, Test2: 10, Exam: 40},
		dto.BulkResultItem{StudentID: "s-3", Test1: 10, Test2: 10, Exam: 40},
		dto.BulkResultItem{StudentID: "s-1", Test1: 1, Test2: 1, Exam: 1},
	), "sup-1")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Accepted)
	require.Len(t, resp.Errors, 3)
	assert.Equal(t, appErrors.ErrFinalized.Code, resp.Errors[0].Code)
	assert.Equal(t, "s-3", resp.Errors[1].StudentID)
	assert.Equal(t, 3, resp.Errors[2].Index)
	assert.Equal(t, models.ResultStatusPrinted, fx.results.records[keyOf(printed)].Status)
}

func TestResultServiceBulkSubmitPartialReportsStoreFailureAtItemIndex(t *testing.T) {
	fx := newResultFixture(scoring.PolicyReject)
	fx.results.failFor = map[string]error{"s-2": errors.New("connection reset")}

	resp, err := fx.svc.BulkSubmit(context.Background(), bulkReq(dto.BulkModePartialOnError,
		dto.BulkResultItem{StudentID: "s-3", Test1: 10, Test2: 10, Exam: 40},
		dto.BulkResultItem{StudentID: "s-1", Test1: 10, Test2: 10, Exam: 40},
		dto.BulkResultItem{StudentID: "s-2", Test1: 10, Test2: 10, Exam: 40},
	), "sup-1")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Accepted)
	require.Len(t, resp.Errors, 2)
	assert.Equal(t, dto.BulkItemError{Index: 0, StudentID: "s-3", Code: appErrors.ErrValidation.Code, Message: "student is not on the class roster"}, resp.Errors[0])
	assert.Equal(t, 2, resp.Errors[1].Index)
	assert.Equal(t, "s-2", resp.Errors[1].StudentID)
	assert.Equal(t, appErrors.ErrInternal.Code, resp.Errors[1].Code)
}

func TestResultServiceApproveAndPrintLifecycle(t *testing.T) {
	base := models.ResultRecord{SubjectID: "math", ClassID: "jss1", Term: models.TermFirst, Session: testSession, Status: models.ResultStatusSubmitted}
	r1, r2, other := base, base, base
	r1.StudentID, r2.StudentID = "s-1", "s-2"
	other.StudentID, other.SubjectID = "s-1", "eng"
	fx := newResultFixture(scoring.PolicyReject, r1, r2, other)
	ctx := context.Background()
	scope := models.ResultScope{ClassID: "jss1", SubjectID: "math", Term: models.TermFirst, Session: testSession}

	resp, err := fx.svc.Approve(ctx, scope, "admin-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, resp.Affected)
	assert.Equal(t, models.ResultStatusApproved, resp.Status)
	stored := fx.results.records[keyOf(r1)]
	require.NotNil(t, stored.ApprovedBy)
	assert.Equal(t, "admin-1", *stored.ApprovedBy)
	assert.Equal(t, models.ResultStatusSubmitted, fx.results.records[keyOf(other)].Status)

	_, err = fx.svc.Approve(ctx, scope, "admin-1")
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	resp, err = fx.svc.Print(ctx, scope, "admin-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, resp.Affected)

	_, err = fx.svc.Approve(ctx, scope, "admin-1")
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)
	_, err = fx.svc.Print(ctx, scope, "admin-1")
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	_, err = fx.svc.Submit(ctx, submitReq("s-1", 10, 10, 10), "sup-1")
	assert.ErrorIs(t, err, appErrors.ErrFinalized)

	assert.EqualValues(t, 4, fx.metrics.Snapshot().ResultsTransitioned)
}

func TestResultServiceApproveEmptyScope(t *testing.T) {
	fx := newResultFixture(scoring.PolicyReject)

	_, err := fx.svc.Approve(context.Background(), models.ResultScope{ClassID: "jss1", Term: models.TermFirst, Session: testSession}, "admin-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = fx.svc.Approve(context.Background(), models.ResultScope{ClassID: "jss1", Term: models.TermFirst}, "admin-1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestResultServiceListPagination(t *testing.T) {
	r := models.ResultRecord{StudentID: "s-1", SubjectID: "math", ClassID: "jss1", Term: models.TermFirst, Session: testSession, Status: models.ResultStatusSubmitted}
	fx := newResultFixture(scoring.PolicyReject, r)

	records, pagination, err := fx.svc.List(context.Background(), models.ResultFilter{ClassID: "jss1"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, &models.Pagination{Page: 1, PageSize: 50, TotalCount: 1}, pagination)
}
