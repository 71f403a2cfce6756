package models

import "time"

// GradesheetStatus tracks a gradesheet through the submission workflow.
type GradesheetStatus string

const (
	// SheetDraft is the only status in which scores and columns may change.
	SheetDraft GradesheetStatus = "draft"
	// SheetSubmitted marks a sheet handed over to the head of class.
	SheetSubmitted GradesheetStatus = "submitted"
	// SheetApproved is reached only through class-wide approval.
	SheetApproved GradesheetStatus = "approved"
)

// GradeColumn is one assessment component of a gradesheet.
type GradeColumn struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MaxScore int    `json:"maxScore"`
}

// Gradesheet holds the score matrix of one class+subject+teacher assignment.
// Scores maps studentID -> columnID -> score; a nil score has not been entered yet.
type Gradesheet struct {
	ID          string                     `json:"id"`
	ClassID     string                     `json:"classId"`
	SubjectID   string                     `json:"subjectId"`
	TeacherID   string                     `json:"teacherId"`
	Status      GradesheetStatus           `json:"status"`
	Columns     []GradeColumn              `json:"columns"`
	Scores      map[string]map[string]*int `json:"scores"`
	UpdatedAt   time.Time                  `json:"updatedAt"`
	SubmittedAt *time.Time                 `json:"submittedAt,omitempty"`
	ApprovedAt  *time.Time                 `json:"approvedAt,omitempty"`
}

// StudentRecord is a roster entry.
type StudentRecord struct {
	ID     string `json:"id" yaml:"id" validate:"required"`
	Name   string `json:"name" yaml:"name" validate:"required"`
	RollNo string `json:"rollNo" yaml:"rollNo"`
}

// SubjectDefinition assigns a subject of a class to its teacher.
type SubjectDefinition struct {
	ID          string `json:"id" yaml:"id" validate:"required"`
	Name        string `json:"name" yaml:"name" validate:"required"`
	TeacherID   string `json:"teacherId" yaml:"teacherId" validate:"required"`
	TeacherName string `json:"teacherName" yaml:"teacherName"`
}

// ClassDefinition is the read-only roster seed of a class.
type ClassDefinition struct {
	ID              string              `json:"id" yaml:"id" validate:"required"`
	Name            string              `json:"name" yaml:"name" validate:"required"`
	HeadTeacherID   string              `json:"headTeacherId" yaml:"headTeacherId" validate:"required"`
	HeadTeacherName string              `json:"headTeacherName" yaml:"headTeacherName"`
	Students        []StudentRecord     `json:"students" yaml:"students" validate:"dive"`
	Subjects        []SubjectDefinition `json:"subjects" yaml:"subjects" validate:"dive"`
}

// SubjectScore is one subject's contribution inside a ranking entry.
type SubjectScore struct {
	SubjectName string `json:"subjectName"`
	Score       int    `json:"score"`
}

// RankingEntry is one student's row in a class ranking.
type RankingEntry struct {
	StudentID      string                  `json:"studentId"`
	StudentName    string                  `json:"studentName"`
	RollNo         string                  `json:"rollNo"`
	SubjectScores  map[string]SubjectScore `json:"subjectScores"`
	Total          int                     `json:"total"`
	Average        float64                 `json:"average"`
	HighestSubject int                     `json:"highestSubject"`
	Position       int                     `json:"position"`
}

// ClassFinalResult is the ranking frozen by class approval.
type ClassFinalResult struct {
	ClassID    string         `json:"classId"`
	Approved   bool           `json:"approved"`
	ApprovedAt time.Time      `json:"approvedAt"`
	ApprovedBy string         `json:"approvedBy"`
	Rankings   []RankingEntry `json:"rankings"`
}

// WorkflowStore is the whole persisted state of the grade workflow.
type WorkflowStore struct {
	Classes      []ClassDefinition           `json:"classes"`
	GradeSheets  []Gradesheet                `json:"gradeSheets"`
	FinalResults map[string]ClassFinalResult `json:"finalResults"`

	// Revision is the backend row version the store was loaded at; 0 means nothing stored yet.
	// Shared backends refuse a save whose revision is stale.
	Revision int64 `json:"-"`
}

// NewWorkflowStore returns the empty seed store.
func NewWorkflowStore() *WorkflowStore {
	return &WorkflowStore{
		Classes:      []ClassDefinition{},
		GradeSheets:  []Gradesheet{},
		FinalResults: map[string]ClassFinalResult{},
	}
}

// Normalize replaces nil collections so the store always serialises to the seed shape.
func (s *WorkflowStore) Normalize() {
	if s.Classes == nil {
		s.Classes = []ClassDefinition{}
	}
	if s.GradeSheets == nil {
		s.GradeSheets = []Gradesheet{}
	}
	if s.FinalResults == nil {
		s.FinalResults = map[string]ClassFinalResult{}
	}
	for i := range s.GradeSheets {
		if s.GradeSheets[i].Columns == nil {
			s.GradeSheets[i].Columns = []GradeColumn{}
		}
		if s.GradeSheets[i].Scores == nil {
			s.GradeSheets[i].Scores = map[string]map[string]*int{}
		}
	}
}

// FindClass returns a pointer into the store, or nil.
func (s *WorkflowStore) FindClass(id string) *ClassDefinition {
	for i := range s.Classes {
		if s.Classes[i].ID == id {
			return &s.Classes[i]
		}
	}
	return nil
}

// FindSheet returns a pointer into the store, or nil.
func (s *WorkflowStore) FindSheet(id string) *Gradesheet {
	for i := range s.GradeSheets {
		if s.GradeSheets[i].ID == id {
			return &s.GradeSheets[i]
		}
	}
	return nil
}

// SheetsForClass returns pointers to every gradesheet of the class.
func (s *WorkflowStore) SheetsForClass(classID string) []*Gradesheet {
	var sheets []*Gradesheet
	for i := range s.GradeSheets {
		if s.GradeSheets[i].ClassID == classID {
			sheets = append(sheets, &s.GradeSheets[i])
		}
	}
	return sheets
}

// Clone deep-copies the store so a rejected transformation can be discarded.
func (s *WorkflowStore) Clone() *WorkflowStore {
	out := &WorkflowStore{
		Classes:      make([]ClassDefinition, len(s.Classes)),
		GradeSheets:  make([]Gradesheet, len(s.GradeSheets)),
		FinalResults: make(map[string]ClassFinalResult, len(s.FinalResults)),
		Revision:     s.Revision,
	}
	for i, class := range s.Classes {
		class.Students = append([]StudentRecord(nil), class.Students...)
		class.Subjects = append([]SubjectDefinition(nil), class.Subjects...)
		out.Classes[i] = class
	}
	for i, sheet := range s.GradeSheets {
		out.GradeSheets[i] = sheet.clone()
	}
	for id, result := range s.FinalResults {
		rankings := make([]RankingEntry, len(result.Rankings))
		for j, entry := range result.Rankings {
			scores := make(map[string]SubjectScore, len(entry.SubjectScores))
			for k, v := range entry.SubjectScores {
				scores[k] = v
			}
			entry.SubjectScores = scores
			rankings[j] = entry
		}
		result.Rankings = rankings
		out.FinalResults[id] = result
	}
	return out
}

func (g Gradesheet) clone() Gradesheet {
	g.Columns = append([]GradeColumn{}, g.Columns...)
	scores := make(map[string]map[string]*int, len(g.Scores))
	for studentID, row := range g.Scores {
		copied := make(map[string]*int, len(row))
		for columnID, score := range row {
			if score != nil {
				v := *score
				score = &v
			}
			copied[columnID] = score
		}
		scores[studentID] = copied
	}
	g.Scores = scores
	g.SubmittedAt = cloneTime(g.SubmittedAt)
	g.ApprovedAt = cloneTime(g.ApprovedAt)
	return g
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
