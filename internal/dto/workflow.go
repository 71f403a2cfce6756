package dto

import (
	"time"

	"github.com/noah-isme/sma-grade-workflow/internal/models"
)

// SheetStudentRow is one student line of a teacher's gradesheet.
type SheetStudentRow struct {
	StudentID    string          `json:"studentId"`
	StudentName  string          `json:"studentName"`
	RollNo       string          `json:"rollNo"`
	Scores       map[string]*int `json:"scores"`
	SubjectScore int             `json:"subjectScore"`
}

// TeacherSheetView is the read view returned by every gradesheet operation.
type TeacherSheetView struct {
	SheetID     string                  `json:"sheetId"`
	ClassID     string                  `json:"classId"`
	ClassName   string                  `json:"className"`
	SubjectID   string                  `json:"subjectId"`
	SubjectName string                  `json:"subjectName"`
	TeacherID   string                  `json:"teacherId"`
	TeacherName string                  `json:"teacherName"`
	Status      models.GradesheetStatus `json:"status"`
	Editable    bool                    `json:"editable"`
	Columns     []models.GradeColumn    `json:"columns"`
	Students    []SheetStudentRow       `json:"students"`
	Completion  int                     `json:"completion"`
	UpdatedAt   time.Time               `json:"updatedAt"`
	SubmittedAt *time.Time              `json:"submittedAt,omitempty"`
	ApprovedAt  *time.Time              `json:"approvedAt,omitempty"`
}

// SubjectProgress summarises one subject sheet for the head of class.
type SubjectProgress struct {
	SubjectID   string                  `json:"subjectId"`
	SubjectName string                  `json:"subjectName"`
	TeacherID   string                  `json:"teacherId"`
	TeacherName string                  `json:"teacherName"`
	SheetID     string                  `json:"sheetId,omitempty"`
	Status      models.GradesheetStatus `json:"status,omitempty"`
	Completion  int                     `json:"completion"`
	SubmittedAt *time.Time              `json:"submittedAt,omitempty"`
}

// HeadClassSummary is the head-of-class dashboard for approval.
type HeadClassSummary struct {
	ClassID         string                   `json:"classId"`
	ClassName       string                   `json:"className"`
	HeadTeacherID   string                   `json:"headTeacherId"`
	HeadTeacherName string                   `json:"headTeacherName"`
	StudentCount    int                      `json:"studentCount"`
	Subjects        []SubjectProgress        `json:"subjects"`
	CanApprove      bool                     `json:"canApprove"`
	MissingSubjects []string                 `json:"missingSubjects"`
	Rankings        []models.RankingEntry    `json:"rankings"`
	FinalResult     *models.ClassFinalResult `json:"finalResult,omitempty"`
}

// StudentSubjectResult is one subject line of a student's result.
type StudentSubjectResult struct {
	SubjectID   string `json:"subjectId"`
	SubjectName string `json:"subjectName"`
	Score       int    `json:"score"`
}

// StudentResult is the personalised projection of a class result.
type StudentResult struct {
	ClassID       string                 `json:"classId"`
	ClassName     string                 `json:"className"`
	Approved      bool                   `json:"approved"`
	ApprovedAt    *time.Time             `json:"approvedAt,omitempty"`
	StudentID     string                 `json:"studentId"`
	StudentName   string                 `json:"studentName"`
	RollNo        string                 `json:"rollNo"`
	Total         int                    `json:"total"`
	Average       float64                `json:"average"`
	Rank          int                    `json:"rank"`
	OutOf         int                    `json:"outOf"`
	SubjectScores []StudentSubjectResult `json:"subjectScores"`
}

// SetScoreRequest writes one score cell; a null value clears it.
type SetScoreRequest struct {
	StudentID string   `json:"studentId" validate:"required"`
	ColumnID  string   `json:"columnId" validate:"required"`
	Value     *float64 `json:"value"`
}

// ColumnRequest creates or edits a grade column.
type ColumnRequest struct {
	Name     string `json:"name"`
	MaxScore int    `json:"maxScore"`
}

// RosterRequest upserts a class roster and its gradesheets.
type RosterRequest struct {
	Class models.ClassDefinition `json:"class" validate:"required"`
}

// RosterResult reports what a roster upsert created.
type RosterResult struct {
	ClassID       string   `json:"classId"`
	CreatedSheets []string `json:"createdSheets"`
	TotalSheets   int      `json:"totalSheets"`
}
