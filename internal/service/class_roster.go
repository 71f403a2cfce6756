package service

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/sma-grade-workflow/internal/dto"
	"github.com/noah-isme/sma-grade-workflow/internal/models"
	appErrors "github.com/noah-isme/sma-grade-workflow/pkg/errors"
)

// RosterSeed is the YAML document loaded at startup.
type RosterSeed struct {
	Classes []models.ClassDefinition `yaml:"classes"`
}

// LoadRosterSeed reads class rosters from a YAML file.
func LoadRosterSeed(path string) ([]models.ClassDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster seed: %w", err)
	}
	var seed RosterSeed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse roster seed: %w", err)
	}
	return seed.Classes, nil
}

// upsertRoster replaces the class definition and makes sure every subject has a gradesheet. Only
// draft sheets get rows for new students; existing scores are never touched. An approved class is
// locked: re-applying its current roster is a no-op and any change is WRONG_STATUS.
func upsertRoster(store *models.WorkflowStore, class models.ClassDefinition, newID func() string, now time.Time) (dto.RosterResult, error) {
	result := dto.RosterResult{ClassID: class.ID, CreatedSheets: []string{}}
	existing := store.FindClass(class.ID)
	if _, approved := store.FinalResults[class.ID]; approved {
		if existing == nil || !sameRoster(*existing, class) {
			return result, appErrors.Clone(appErrors.ErrWrongStatus, fmt.Sprintf("class %s is approved; reset a gradesheet before changing its roster", class.ID))
		}
		result.TotalSheets = len(store.SheetsForClass(class.ID))
		return result, nil
	}
	if existing != nil {
		*existing = class
	} else {
		store.Classes = append(store.Classes, class)
	}

	for _, subject := range class.Subjects {
		sheet := sheetForSubject(store.SheetsForClass(class.ID), subject.ID)
		if sheet == nil {
			store.GradeSheets = append(store.GradeSheets, models.Gradesheet{
				ID:        newID(),
				ClassID:   class.ID,
				SubjectID: subject.ID,
				TeacherID: subject.TeacherID,
				Status:    models.SheetDraft,
				Columns:   []models.GradeColumn{},
				Scores:    map[string]map[string]*int{},
				UpdatedAt: now,
			})
			sheet = &store.GradeSheets[len(store.GradeSheets)-1]
			result.CreatedSheets = append(result.CreatedSheets, sheet.ID)
		} else if sheet.TeacherID != subject.TeacherID {
			sheet.TeacherID = subject.TeacherID
			sheet.UpdatedAt = now
		}
		if sheet.Status != models.SheetDraft {
			continue
		}
		for _, student := range class.Students {
			if _, ok := sheet.Scores[student.ID]; ok {
				continue
			}
			row := make(map[string]*int, len(sheet.Columns))
			for _, column := range sheet.Columns {
				row[column.ID] = nil
			}
			sheet.Scores[student.ID] = row
		}
	}
	result.TotalSheets = len(store.SheetsForClass(class.ID))
	return result, nil
}

func sameRoster(a, b models.ClassDefinition) bool {
	if a.ID != b.ID || a.Name != b.Name || a.HeadTeacherID != b.HeadTeacherID || a.HeadTeacherName != b.HeadTeacherName {
		return false
	}
	if len(a.Students) != len(b.Students) || len(a.Subjects) != len(b.Subjects) {
		return false
	}
	for i := range a.Students {
		if a.Students[i] != b.Students[i] {
			return false
		}
	}
	for i := range a.Subjects {
		if a.Subjects[i] != b.Subjects[i] {
			return false
		}
	}
	return true
}
