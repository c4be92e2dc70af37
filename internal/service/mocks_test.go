package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/sma-results-api/internal/models"
	"github.com/noah-isme/sma-results-api/internal/repository"
	appErrors "github.com/noah-isme/sma-results-api/pkg/errors"
	"github.com/noah-isme/sma-results-api/pkg/jobs"
)

type resultKey struct {
	studentID, subjectID, classID string
	term                          models.Term
	session                       string
}

func keyOf(r models.ResultRecord) resultKey {
	return resultKey{r.StudentID, r.SubjectID, r.ClassID, r.Term, r.Session}
}

// memoryResults is an in-memory result store honouring the upsert lock rule.
type memoryResults struct {
	records   map[resultKey]models.ResultRecord
	upsertErr error
	failFor   map[string]error
	bulkCalls int
}

func newMemoryResults(records ...models.ResultRecord) *memoryResults {
	m := &memoryResults{records: map[resultKey]models.ResultRecord{}}
	for _, r := range records {
		m.records[keyOf(r)] = r
	}
	return m
}

func (m *memoryResults) matches(r models.ResultRecord, f models.ResultFilter) bool {
	if f.ClassID != "" && r.ClassID != f.ClassID {
		return false
	}
	if f.SubjectID != "" && r.SubjectID != f.SubjectID {
		return false
	}
	if f.StudentID != "" && r.StudentID != f.StudentID {
		return false
	}
	if f.Term != "" && r.Term != f.Term {
		return false
	}
	if f.Session != "" && r.Session != f.Session {
		return false
	}
	if len(f.Statuses) > 0 {
		for _, s := range f.Statuses {
			if r.Status == s {
				return true
			}
		}
		return false
	}
	return true
}

func (m *memoryResults) sorted() []models.ResultRecord {
	out := make([]models.ResultRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StudentID != out[j].StudentID {
			return out[i].StudentID < out[j].StudentID
		}
		if out[i].SubjectID != out[j].SubjectID {
			return out[i].SubjectID < out[j].SubjectID
		}
		return out[i].Term < out[j].Term
	})
	return out
}

func (m *memoryResults) List(ctx context.Context, filter models.ResultFilter) ([]models.ResultRecord, int, error) {
	all, err := m.ListAll(ctx, filter)
	return all, len(all), err
}

func (m *memoryResults) ListAll(ctx context.Context, filter models.ResultFilter) ([]models.ResultRecord, error) {
	var out []models.ResultRecord
	for _, r := range m.sorted() {
		if m.matches(r, filter) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryResults) FindByKey(ctx context.Context, studentID, subjectID, classID string, term models.Term, session string) (*models.ResultRecord, error) {
	r, ok := m.records[resultKey{studentID, subjectID, classID, term, session}]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (m *memoryResults) Upsert(ctx context.Context, record *models.ResultRecord) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if err := m.failFor[record.StudentID]; err != nil {
		return err
	}
	if prior, ok := m.records[keyOf(*record)]; ok && prior.Status != models.ResultStatusSubmitted {
		return repository.ErrResultLocked
	}
	if record.ID == "" {
		record.ID = record.StudentID + "-" + record.SubjectID
	}
	if record.Status == "" {
		record.Status = models.ResultStatusSubmitted
	}
	record.UpdatedAt = time.Now()
	m.records[keyOf(*record)] = *record
	return nil
}

func (m *memoryResults) BulkUpsert(ctx context.Context, records []*models.ResultRecord) error {
	m.bulkCalls++
	for _, r := range records {
		if prior, ok := m.records[keyOf(*r)]; ok && prior.Status != models.ResultStatusSubmitted {
			return repository.ErrResultLocked
		}
	}
	for _, r := range records {
		if err := m.Upsert(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryResults) inScope(r models.ResultRecord, scope models.ResultScope) bool {
	return r.ClassID == scope.ClassID && r.Session == scope.Session && r.Term == scope.Term &&
		(scope.SubjectID == "" || r.SubjectID == scope.SubjectID)
}

func (m *memoryResults) CountByStatus(ctx context.Context, scope models.ResultScope) (map[models.ResultStatus]int, error) {
	counts := map[models.ResultStatus]int{}
	for _, r := range m.records {
		if m.inScope(r, scope) {
			counts[r.Status]++
		}
	}
	return counts, nil
}

func (m *memoryResults) Transition(ctx context.Context, scope models.ResultScope, from, to models.ResultStatus, actorID string, at time.Time) (int64, error) {
	var affected int64
	for k, r := range m.records {
		if !m.inScope(r, scope) || r.Status != from {
			continue
		}
		r.Status = to
		if to == models.ResultStatusApproved {
			actor := actorID
			r.ApprovedBy = &actor
			r.ApprovedAt = &at
		}
		m.records[k] = r
		affected++
	}
	return affected, nil
}

type stubSubjects struct {
	subjects []models.Subject
	byClass  map[string][]models.Subject
}

func (s *stubSubjects) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	for _, subject := range s.subjects {
		if subject.ID == id {
			copied := subject
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubSubjects) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, error) {
	return s.subjects, nil
}

func (s *stubSubjects) ListByClass(ctx context.Context, classID string) ([]models.Subject, error) {
	return s.byClass[classID], nil
}

func (s *stubSubjects) UpdateMaxima(ctx context.Context, subject *models.Subject) error {
	for i := range s.subjects {
		if s.subjects[i].ID == subject.ID {
			s.subjects[i] = *subject
			return nil
		}
	}
	return sql.ErrNoRows
}

type stubStudents struct {
	students []models.Student
}

func (s *stubStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	for _, student := range s.students {
		if student.ID == id {
			copied := student
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubStudents) ListActiveByClass(ctx context.Context, classID string) ([]models.Student, error) {
	var out []models.Student
	for _, student := range s.students {
		if student.ClassID == classID && student.Active {
			out = append(out, student)
		}
	}
	return out, nil
}

func (s *stubStudents) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	out, _ := s.ListActiveByClass(ctx, filter.ClassID)
	return out, len(out), nil
}

type stubClasses struct {
	classes []models.Class
}

func (s *stubClasses) FindByID(ctx context.Context, id string) (*models.Class, error) {
	for _, class := range s.classes {
		if class.ID == id {
			copied := class
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubClasses) List(ctx context.Context) ([]models.Class, error) {
	return s.classes, nil
}

type recordingInvalidator struct {
	classes []string
}

func (r *recordingInvalidator) InvalidateClass(ctx context.Context, classID string) {
	r.classes = append(r.classes, classID)
}

// memoryCache is a map-backed CacheRepository storing values by reference.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]interface{}
	deleted []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]interface{}{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	if perf, ok := value.(*models.ClassPerformance); ok {
		*(dest.(*models.ClassPerformance)) = *perf
	}
	return nil
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, pattern)
	for key := range m.entries {
		if len(pattern) > 0 && pattern[len(pattern)-1] == '*' && len(key) >= len(pattern)-1 && key[:len(pattern)-1] == pattern[:len(pattern)-1] {
			delete(m.entries, key)
		}
	}
	return nil
}

type recordingQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *recordingQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}
