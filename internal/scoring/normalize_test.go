package scoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-results-api/internal/models"
)

func TestNormalizeDefaultSubject(t *testing.T) {
	subject := models.Subject{ID: "mth", Code: "MTH", Test1Max: 20, Test2Max: 20, ExamMax: 60}
	result, err := NewNormalizer(PolicyReject).Normalize(Scores{Test1: 15, Test2: 18, Exam: 50}, MaximaFor(subject))
	require.NoError(t, err)
	assert.Equal(t, 83.0, result.Total)
	assert.Equal(t, 83, result.Percentage)
	assert.Equal(t, models.GradeA, GradeFor(float64(result.Percentage)))
}

func TestNormalizeCustomMaxima(t *testing.T) {
	result, err := NewNormalizer("").Normalize(Scores{Test1: 10, Test2: 10, Exam: 17}, Maxima{Test1: 10, Test2: 10, Exam: 30})
	require.NoError(t, err)
	assert.Equal(t, 37.0, result.Total)
	assert.Equal(t, 74, result.Percentage)
}

func TestNormalizeRejectsOutOfRange(t *testing.T) {
	_, err := NewNormalizer(PolicyReject).Normalize(Scores{Test1: 25, Test2: 10, Exam: 40}, DefaultMaxima())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrScoreOutOfRange))
	var rangeErr *RangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, "test1", rangeErr.Component)

	_, err = NewNormalizer(PolicyReject).Normalize(Scores{Test1: 5, Test2: -1, Exam: 40}, DefaultMaxima())
	assert.ErrorIs(t, err, ErrScoreOutOfRange)
}

func TestNormalizeClampsOutOfRange(t *testing.T) {
	result, err := NewNormalizer(PolicyClamp).Normalize(Scores{Test1: 25, Test2: -3, Exam: 60}, DefaultMaxima())
	require.NoError(t, err)
	assert.Equal(t, 20.0, result.Scores.Test1)
	assert.Equal(t, 0.0, result.Scores.Test2)
	assert.Equal(t, 80.0, result.Total)
	assert.Equal(t, 80, result.Percentage)
}

func TestNormalizePermissiveKeepsValues(t *testing.T) {
	result, err := NewNormalizer(PolicyPermissive).Normalize(Scores{Test1: 30, Test2: 20, Exam: 60}, DefaultMaxima())
	require.NoError(t, err)
	assert.Equal(t, 110.0, result.Total)
	assert.Equal(t, 110, result.Percentage)
}

func TestPercentageZeroDenominator(t *testing.T) {
	assert.Equal(t, 0, Percentage(12, 0))
	assert.Equal(t, 67, Percentage(2, 3))
	assert.Equal(t, 50, Percentage(49.5, 99))
}

func TestMaximaForFallsBackToDefaults(t *testing.T) {
	assert.Equal(t, DefaultMaxima(), MaximaFor(models.Subject{}))
	assert.Equal(t, 100.0, DefaultMaxima().Total())
}

func TestParseScorePolicy(t *testing.T) {
	policy, err := ParseScorePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyReject, policy)

	policy, err = ParseScorePolicy(" Clamp ")
	require.NoError(t, err)
	assert.Equal(t, PolicyClamp, policy)

	_, err = ParseScorePolicy("lenient")
	assert.Error(t, err)
}
