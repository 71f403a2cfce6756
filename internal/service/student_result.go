package service

import (
	"github.com/noah-isme/sma-grade-workflow/internal/dto"
	"github.com/noah-isme/sma-grade-workflow/internal/models"
)

// ProjectStudentResult derives one student's result from the frozen class result. Before approval
// it returns a pending placeholder listing every class subject at 0. It returns nil only when the
// class is approved but the student is missing from the frozen rankings.
func ProjectStudentResult(class *models.ClassDefinition, final *models.ClassFinalResult, studentID string) *dto.StudentResult {
	if class == nil {
		return nil
	}
	if final == nil || !final.Approved {
		return pendingStudentResult(class, studentID)
	}

	var entry *models.RankingEntry
	for i := range final.Rankings {
		if final.Rankings[i].StudentID == studentID {
			entry = &final.Rankings[i]
			break
		}
	}
	if entry == nil {
		return nil
	}

	approvedAt := final.ApprovedAt
	result := &dto.StudentResult{
		ClassID:       class.ID,
		ClassName:     class.Name,
		Approved:      true,
		ApprovedAt:    &approvedAt,
		StudentID:     entry.StudentID,
		StudentName:   entry.StudentName,
		RollNo:        entry.RollNo,
		Total:         entry.Total,
		Average:       entry.Average,
		Rank:          entry.Position,
		OutOf:         len(final.Rankings),
		SubjectScores: make([]dto.StudentSubjectResult, 0, len(entry.SubjectScores)),
	}
	for _, subject := range class.Subjects {
		score, ok := entry.SubjectScores[subject.ID]
		if !ok {
			continue
		}
		result.SubjectScores = append(result.SubjectScores, dto.StudentSubjectResult{
			SubjectID:   subject.ID,
			SubjectName: score.SubjectName,
			Score:       score.Score,
		})
	}
	return result
}

func pendingStudentResult(class *models.ClassDefinition, studentID string) *dto.StudentResult {
	result := &dto.StudentResult{
		ClassID:       class.ID,
		ClassName:     class.Name,
		StudentID:     studentID,
		SubjectScores: make([]dto.StudentSubjectResult, 0, len(class.Subjects)),
	}
	for _, student := range class.Students {
		if student.ID == studentID {
			result.StudentName = student.Name
			result.RollNo = student.RollNo
			break
		}
	}
	for _, subject := range class.Subjects {
		result.SubjectScores = append(result.SubjectScores, dto.StudentSubjectResult{
			SubjectID:   subject.ID,
			SubjectName: subject.Name,
		})
	}
	return result
}
