package service

import (
	"sort"

	"github.com/noah-isme/sma-grade-workflow/internal/models"
)

// BuildClassRanking aggregates every subject sheet of the class into a sorted, positioned ranking.
// Subjects without a sheet are skipped rather than counted as zero; draft sheets still contribute.
func BuildClassRanking(class *models.ClassDefinition, sheets []*models.Gradesheet) []models.RankingEntry {
	if class == nil {
		return []models.RankingEntry{}
	}
	bySubject := make(map[string]*models.Gradesheet, len(sheets))
	for _, sheet := range sheets {
		if sheet == nil || sheet.ClassID != class.ID {
			continue
		}
		if _, exists := bySubject[sheet.SubjectID]; !exists {
			bySubject[sheet.SubjectID] = sheet
		}
	}

	entries := make([]models.RankingEntry, 0, len(class.Students))
	for _, student := range class.Students {
		entry := models.RankingEntry{
			StudentID:     student.ID,
			StudentName:   student.Name,
			RollNo:        student.RollNo,
			SubjectScores: make(map[string]models.SubjectScore, len(class.Subjects)),
		}
		contributing := 0
		for _, subject := range class.Subjects {
			sheet, ok := bySubject[subject.ID]
			if !ok {
				continue
			}
			score := SubjectScore(sheet, student.ID)
			entry.SubjectScores[subject.ID] = models.SubjectScore{SubjectName: subject.Name, Score: score}
			entry.Total += score
			if contributing == 0 || score > entry.HighestSubject {
				entry.HighestSubject = score
			}
			contributing++
		}
		if contributing > 0 {
			entry.Average = roundTo2(float64(entry.Total) / float64(contributing))
		}
		entries = append(entries, entry)
	}

	SortRankingEntries(entries)
	AssignCompetitionPositions(entries)
	return entries
}

// SortRankingEntries orders by total desc, then highest subject desc, then student name asc.
func SortRankingEntries(entries []models.RankingEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.HighestSubject != b.HighestSubject {
			return a.HighestSubject > b.HighestSubject
		}
		return a.StudentName < b.StudentName
	})
}

// AssignCompetitionPositions numbers already-sorted entries by scan index. A row shares the
// previous row's position only when both total and highest subject are equal, so ties leave gaps
// (1, 1, 3, ...). The name ordering never splits or merges a position.
func AssignCompetitionPositions(entries []models.RankingEntry) {
	for i := range entries {
		if i > 0 &&
			entries[i].Total == entries[i-1].Total &&
			entries[i].HighestSubject == entries[i-1].HighestSubject {
			entries[i].Position = entries[i-1].Position
			continue
		}
		entries[i].Position = i + 1
	}
}
