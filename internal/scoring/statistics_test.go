package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-results-api/internal/models"
)

func TestStatisticsExcludesStudentsWithoutResults(t *testing.T) {
	stats := Statistics([]models.StudentSummary{
		{TotalAverage: 80, Grade: models.GradeA, HasResults: true},
		{TotalAverage: 60, Grade: models.GradeC, HasResults: true},
		{TotalAverage: 0, Grade: models.GradeNA},
	})

	assert.Equal(t, 70.0, stats.Average)
	assert.Equal(t, 80, stats.Highest)
	assert.Equal(t, 60, stats.Lowest)
	assert.Equal(t, 2, stats.Counted)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.GradeCounts[models.GradeA])
	assert.Equal(t, 1, stats.GradeCounts[models.GradeC])
	assert.Equal(t, 1, stats.GradeCounts[models.GradeNA])
	assert.Equal(t, 0, stats.GradeCounts[models.GradeF])
}

func TestStatisticsCountsGenuineZero(t *testing.T) {
	stats := Statistics([]models.StudentSummary{
		{TotalAverage: 0, Grade: models.GradeF, HasResults: true},
		{TotalAverage: 45, Grade: models.GradeE, HasResults: true},
	})
	assert.Equal(t, 22.5, stats.Average)
	assert.Equal(t, 0, stats.Lowest)
	assert.Equal(t, 45, stats.Highest)
}

func TestStatisticsEmptyClass(t *testing.T) {
	stats := Statistics(nil)
	assert.Zero(t, stats.Average)
	assert.Zero(t, stats.Counted)
	assert.Len(t, stats.GradeCounts, len(models.GradeBands))
}
