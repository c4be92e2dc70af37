package scoring

import "github.com/noah-isme/sma-results-api/internal/models"

var gradeCutoffs = []struct {
	min   float64
	grade models.Grade
}{
	{80, models.GradeA},
	{70, models.GradeB},
	{60, models.GradeC},
	{50, models.GradeD},
	{40, models.GradeE},
}

// GradeFor maps a percentage to its letter band. Lower bounds are inclusive.
func GradeFor(percentage float64) models.Grade {
	for _, cutoff := range gradeCutoffs {
		if percentage >= cutoff.min {
			return cutoff.grade
		}
	}
	return models.GradeF
}
