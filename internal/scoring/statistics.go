package scoring

import (
	"math"

	"github.com/noah-isme/sma-results-api/internal/models"
)

// Statistics summarises a ranked class. Students without results are left out of
// the average, highest and lowest, but are still tallied under the N/A band.
func Statistics(students []models.StudentSummary) models.ClassStatistics {
	stats := models.ClassStatistics{
		Total:       len(students),
		GradeCounts: make(map[models.Grade]int, len(models.GradeBands)),
	}
	for _, band := range models.GradeBands {
		stats.GradeCounts[band] = 0
	}

	sum := 0
	for _, student := range students {
		stats.GradeCounts[student.Grade]++
		if !student.HasResults {
			continue
		}
		if stats.Counted == 0 || student.TotalAverage > stats.Highest {
			stats.Highest = student.TotalAverage
		}
		if stats.Counted == 0 || student.TotalAverage < stats.Lowest {
			stats.Lowest = student.TotalAverage
		}
		sum += student.TotalAverage
		stats.Counted++
	}
	if stats.Counted > 0 {
		stats.Average = math.Round(float64(sum)/float64(stats.Counted)*100) / 100
	}
	return stats
}
