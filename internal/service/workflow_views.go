package service

import (
	"time"

	"github.com/noah-isme/sma-grade-workflow/internal/dto"
	"github.com/noah-isme/sma-grade-workflow/internal/models"
)

func classOrPlaceholder(store *models.WorkflowStore, classID string) *models.ClassDefinition {
	if class := store.FindClass(classID); class != nil {
		return class
	}
	return &models.ClassDefinition{ID: classID}
}

func subjectOf(class *models.ClassDefinition, subjectID string) models.SubjectDefinition {
	for _, subject := range class.Subjects {
		if subject.ID == subjectID {
			return subject
		}
	}
	return models.SubjectDefinition{ID: subjectID}
}

func buildSheetView(store *models.WorkflowStore, sheet *models.Gradesheet) *dto.TeacherSheetView {
	class := classOrPlaceholder(store, sheet.ClassID)
	subject := subjectOf(class, sheet.SubjectID)

	view := &dto.TeacherSheetView{
		SheetID:     sheet.ID,
		ClassID:     sheet.ClassID,
		ClassName:   class.Name,
		SubjectID:   sheet.SubjectID,
		SubjectName: subject.Name,
		TeacherID:   sheet.TeacherID,
		TeacherName: subject.TeacherName,
		Status:      sheet.Status,
		Editable:    sheet.Status == models.SheetDraft,
		Columns:     append([]models.GradeColumn{}, sheet.Columns...),
		Students:    make([]dto.SheetStudentRow, 0, len(class.Students)),
		Completion:  CompletionPercent(sheet, class.Students),
		UpdatedAt:   sheet.UpdatedAt,
		SubmittedAt: cloneTime(sheet.SubmittedAt),
		ApprovedAt:  cloneTime(sheet.ApprovedAt),
	}
	for _, student := range class.Students {
		cells := make(map[string]*int, len(sheet.Columns))
		row := sheet.Scores[student.ID]
		for _, column := range sheet.Columns {
			if score := row[column.ID]; score != nil {
				v := *score
				cells[column.ID] = &v
			} else {
				cells[column.ID] = nil
			}
		}
		view.Students = append(view.Students, dto.SheetStudentRow{
			StudentID:    student.ID,
			StudentName:  student.Name,
			RollNo:       student.RollNo,
			Scores:       cells,
			SubjectScore: SubjectScore(sheet, student.ID),
		})
	}
	return view
}

func buildClassSummary(store *models.WorkflowStore, class *models.ClassDefinition) *dto.HeadClassSummary {
	sheets := store.SheetsForClass(class.ID)
	canApprove, missing := CanApprove(store, class)
	summary := &dto.HeadClassSummary{
		ClassID:         class.ID,
		ClassName:       class.Name,
		HeadTeacherID:   class.HeadTeacherID,
		HeadTeacherName: class.HeadTeacherName,
		StudentCount:    len(class.Students),
		Subjects:        make([]dto.SubjectProgress, 0, len(class.Subjects)),
		CanApprove:      canApprove,
		MissingSubjects: missing,
		Rankings:        BuildClassRanking(class, sheets),
	}
	for _, subject := range class.Subjects {
		progress := dto.SubjectProgress{
			SubjectID:   subject.ID,
			SubjectName: subject.Name,
			TeacherID:   subject.TeacherID,
			TeacherName: subject.TeacherName,
		}
		if sheet := sheetForSubject(sheets, subject.ID); sheet != nil {
			progress.SheetID = sheet.ID
			progress.Status = sheet.Status
			progress.Completion = CompletionPercent(sheet, class.Students)
			progress.SubmittedAt = cloneTime(sheet.SubmittedAt)
		}
		summary.Subjects = append(summary.Subjects, progress)
	}
	if final, ok := store.FinalResults[class.ID]; ok {
		frozen := final
		summary.FinalResult = &frozen
	}
	return summary
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
