package scoring

import (
	"strconv"

	"github.com/noah-isme/sma-results-api/internal/models"
)

// BroadsheetHeaders lists the broadsheet columns: three identity columns, four per
// subject (each term then cumulative) and three trailing result columns.
func BroadsheetHeaders(subjects []models.SubjectColumn) []string {
	headers := make([]string, 0, 6+4*len(subjects))
	headers = append(headers, "S/N", "Admission No", "Name")
	for _, subject := range subjects {
		for _, term := range models.Terms {
			headers = append(headers, subject.Code+" "+string(term))
		}
		headers = append(headers, subject.Code+" Cumulative")
	}
	return append(headers, "Total Average", "Grade", "Position")
}

// BroadsheetRows renders one row per ranked student. Missing scores are blank.
func BroadsheetRows(perf models.ClassPerformance) [][]string {
	rows := make([][]string, 0, len(perf.Students))
	for i, student := range perf.Students {
		row := make([]string, 0, 6+4*len(perf.Subjects))
		row = append(row, strconv.Itoa(i+1), student.AdmissionNumber, student.Name)
		for _, subject := range perf.Subjects {
			terms := student.TermScores[subject.ID]
			for _, term := range models.Terms {
				row = append(row, optionalScore(terms, term))
			}
			if cumulative, ok := student.Cumulative[subject.ID]; ok {
				row = append(row, strconv.Itoa(cumulative))
			} else {
				row = append(row, "")
			}
		}
		row = append(row, strconv.Itoa(student.TotalAverage), string(student.Grade), strconv.Itoa(student.Position))
		rows = append(rows, row)
	}
	return rows
}

func optionalScore(scores map[models.Term]int, term models.Term) string {
	if score, ok := scores[term]; ok {
		return strconv.Itoa(score)
	}
	return ""
}
