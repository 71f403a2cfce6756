package service

import (
	"math"

	"github.com/noah-isme/sma-grade-workflow/internal/models"
)

const (
	minScore = 0
	maxScore = 100
)

// roundHalfUp rounds .5 away from zero for non-negative values, matching how scores are entered.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

func roundTo2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

// ClampScore normalises a raw input to an integer in [0, 100]. NaN becomes 0.
func ClampScore(v float64) int {
	if math.IsNaN(v) {
		return minScore
	}
	if v < minScore {
		return minScore
	}
	if v > maxScore {
		return maxScore
	}
	return int(roundHalfUp(v))
}

// SubjectScore is the unweighted mean of a student's column scores; empty cells count as 0.
// Every column is treated as a 0-100 contribution, so GradeColumn.MaxScore does not weight it.
func SubjectScore(sheet *models.Gradesheet, studentID string) int {
	if sheet == nil || len(sheet.Columns) == 0 {
		return 0
	}
	row := sheet.Scores[studentID]
	sum := 0
	for _, column := range sheet.Columns {
		if score := row[column.ID]; score != nil {
			sum += ClampScore(float64(*score))
		}
	}
	return int(roundHalfUp(float64(sum) / float64(len(sheet.Columns))))
}

// CompletionPercent is the share of entered cells over columns x students, 0 when either is empty.
func CompletionPercent(sheet *models.Gradesheet, students []models.StudentRecord) int {
	if sheet == nil || len(sheet.Columns) == 0 || len(students) == 0 {
		return 0
	}
	filled := 0
	for _, student := range students {
		row := sheet.Scores[student.ID]
		for _, column := range sheet.Columns {
			if row[column.ID] != nil {
				filled++
			}
		}
	}
	total := len(sheet.Columns) * len(students)
	return int(roundHalfUp(float64(filled) / float64(total) * 100))
}
