package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/sma-grade-workflow/internal/models"
	appErrors "github.com/noah-isme/sma-grade-workflow/pkg/errors"
)

func sheetForSubject(sheets []*models.Gradesheet, subjectID string) *models.Gradesheet {
	for _, sheet := range sheets {
		if sheet.SubjectID == subjectID {
			return sheet
		}
	}
	return nil
}

// CanApprove reports whether every subject of the class has a submitted or approved sheet, and
// lists the names of the subjects holding approval back.
func CanApprove(store *models.WorkflowStore, class *models.ClassDefinition) (bool, []string) {
	missing := []string{}
	if store == nil || class == nil {
		return false, missing
	}
	sheets := store.SheetsForClass(class.ID)
	for _, subject := range class.Subjects {
		sheet := sheetForSubject(sheets, subject.ID)
		if sheet == nil || sheet.Status == models.SheetDraft {
			missing = append(missing, subject.Name)
		}
	}
	return len(missing) == 0, missing
}

// approveClass locks every submitted sheet of the class and freezes the ranking. The gate is
// checked here, inside the same transformation, not trusted from an earlier CanApprove call.
func approveClass(store *models.WorkflowStore, class *models.ClassDefinition, headTeacherID string, now time.Time) error {
	if class.HeadTeacherID != headTeacherID {
		return appErrors.Clone(appErrors.ErrPermissionDenied, "only the head of class can approve results")
	}
	if ok, missing := CanApprove(store, class); !ok {
		return appErrors.Clone(appErrors.ErrIncompleteSubmissions,
			fmt.Sprintf("waiting for: %s", strings.Join(missing, ", ")))
	}

	sheets := store.SheetsForClass(class.ID)
	for _, sheet := range sheets {
		if sheet.Status == models.SheetSubmitted {
			approvedAt := now
			sheet.Status = models.SheetApproved
			sheet.ApprovedAt = &approvedAt
			sheet.UpdatedAt = now
		}
	}

	store.FinalResults[class.ID] = models.ClassFinalResult{
		ClassID:    class.ID,
		Approved:   true,
		ApprovedAt: now,
		ApprovedBy: headTeacherID,
		Rankings:   BuildClassRanking(class, sheets),
	}
	return nil
}
