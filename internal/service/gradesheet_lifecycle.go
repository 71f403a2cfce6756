package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/sma-grade-workflow/internal/models"
	appErrors "github.com/noah-isme/sma-grade-workflow/pkg/errors"
)

const defaultColumnMaxScore = 100

func requireDraft(sheet *models.Gradesheet) error {
	if sheet.Status != models.SheetDraft {
		return appErrors.Clone(appErrors.ErrWrongStatus, fmt.Sprintf("gradesheet is %s", sheet.Status))
	}
	return nil
}

func findColumn(sheet *models.Gradesheet, columnID string) int {
	for i, column := range sheet.Columns {
		if column.ID == columnID {
			return i
		}
	}
	return -1
}

func hasStudent(class *models.ClassDefinition, studentID string) bool {
	for _, student := range class.Students {
		if student.ID == studentID {
			return true
		}
	}
	return false
}

// setScore writes one cell. A nil raw value stores "not entered"; numbers are clamped to [0, 100].
func setScore(sheet *models.Gradesheet, class *models.ClassDefinition, studentID, columnID string, raw *float64, now time.Time) error {
	if err := requireDraft(sheet); err != nil {
		return err
	}
	if findColumn(sheet, columnID) < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "unknown column")
	}
	if !hasStudent(class, studentID) {
		return appErrors.Clone(appErrors.ErrValidation, "student is not enrolled in this class")
	}
	row, ok := sheet.Scores[studentID]
	if !ok {
		row = make(map[string]*int, len(sheet.Columns))
		sheet.Scores[studentID] = row
	}
	if raw == nil {
		row[columnID] = nil
	} else {
		score := ClampScore(*raw)
		row[columnID] = &score
	}
	sheet.UpdatedAt = now
	return nil
}

// addColumn appends a column and backfills an empty cell for every student.
func addColumn(sheet *models.Gradesheet, class *models.ClassDefinition, columnID, name string, maxScore int, now time.Time) error {
	if err := requireDraft(sheet); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return appErrors.Clone(appErrors.ErrValidation, "column name is required")
	}
	if maxScore <= 0 {
		maxScore = defaultColumnMaxScore
	}
	sheet.Columns = append(sheet.Columns, models.GradeColumn{ID: columnID, Name: name, MaxScore: maxScore})
	for _, student := range class.Students {
		if _, ok := sheet.Scores[student.ID]; !ok {
			sheet.Scores[student.ID] = map[string]*int{}
		}
	}
	for _, row := range sheet.Scores {
		row[columnID] = nil
	}
	sheet.UpdatedAt = now
	return nil
}

// editColumn renames or rescales a column; blank names and non-positive max scores keep the old value.
func editColumn(sheet *models.Gradesheet, columnID, name string, maxScore int, now time.Time) error {
	if err := requireDraft(sheet); err != nil {
		return err
	}
	idx := findColumn(sheet, columnID)
	if idx < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "unknown column")
	}
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		sheet.Columns[idx].Name = trimmed
	}
	if maxScore > 0 {
		sheet.Columns[idx].MaxScore = maxScore
	}
	sheet.UpdatedAt = now
	return nil
}

// deleteColumn drops the column definition and every stored score for it.
func deleteColumn(sheet *models.Gradesheet, columnID string, now time.Time) error {
	if err := requireDraft(sheet); err != nil {
		return err
	}
	idx := findColumn(sheet, columnID)
	if idx < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "unknown column")
	}
	sheet.Columns = append(sheet.Columns[:idx], sheet.Columns[idx+1:]...)
	for _, row := range sheet.Scores {
		delete(row, columnID)
	}
	sheet.UpdatedAt = now
	return nil
}

func submitSheet(sheet *models.Gradesheet, now time.Time) error {
	if err := requireDraft(sheet); err != nil {
		return err
	}
	submittedAt := now
	sheet.Status = models.SheetSubmitted
	sheet.SubmittedAt = &submittedAt
	sheet.UpdatedAt = now
	return nil
}

// resetSheet returns a sheet to draft from any status. Resetting an approved sheet also withdraws
// the class approval: the frozen result is dropped and sibling approved sheets go back to submitted.
// It reports whether a class approval was withdrawn.
func resetSheet(store *models.WorkflowStore, sheet *models.Gradesheet, now time.Time) bool {
	withdrawn := false
	if sheet.Status == models.SheetApproved {
		delete(store.FinalResults, sheet.ClassID)
		for _, sibling := range store.SheetsForClass(sheet.ClassID) {
			if sibling.ID != sheet.ID && sibling.Status == models.SheetApproved {
				sibling.Status = models.SheetSubmitted
				sibling.ApprovedAt = nil
			}
		}
		withdrawn = true
	}
	sheet.Status = models.SheetDraft
	sheet.SubmittedAt = nil
	sheet.ApprovedAt = nil
	sheet.UpdatedAt = now
	return withdrawn
}
