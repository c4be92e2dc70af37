package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/sma-results-api/internal/models"
)

// TiePolicy orders students whose total averages are equal.
type TiePolicy string

const (
	// TieInputOrder keeps tied students in the order they were supplied.
	TieInputOrder TiePolicy = "input"
	// TieByName orders tied students by name, then admission number.
	TieByName TiePolicy = "name"
)

// ParseTiePolicy resolves a policy name; empty means input order.
func ParseTiePolicy(raw string) (TiePolicy, error) {
	switch TiePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", TieInputOrder:
		return TieInputOrder, nil
	case TieByName:
		return TieByName, nil
	default:
		return "", fmt.Errorf("unknown tie policy %q", raw)
	}
}

// Rank sorts a copy of the summaries by total average, highest first, and assigns
// positions 1..n. Equal averages still receive distinct consecutive positions.
// Students without results rank below every student with results.
func Rank(summaries []models.StudentSummary, policy TiePolicy) []models.StudentSummary {
	ranked := make([]models.StudentSummary, len(summaries))
	copy(ranked, summaries)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.TotalAverage != b.TotalAverage {
			return a.TotalAverage > b.TotalAverage
		}
		if a.HasResults != b.HasResults {
			return a.HasResults
		}
		if policy == TieByName {
			if an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name); an != bn {
				return an < bn
			}
			return a.AdmissionNumber < b.AdmissionNumber
		}
		return false
	})
	for i := range ranked {
		ranked[i].Position = i + 1
	}
	return ranked
}
