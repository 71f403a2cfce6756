package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/noah-isme/sma-grade-workflow/internal/models"
)

var fixedNow = time.Date(2026, 5, 12, 8, 30, 0, 0, time.UTC)

type snapshotStoreStub struct {
	raw     []byte
	loads   int
	saves   int
	loadErr error
	saveErr error
}

func newSnapshotStoreStub(store *models.WorkflowStore) *snapshotStoreStub {
	raw, err := json.Marshal(store)
	if err != nil {
		panic(err)
	}
	return &snapshotStoreStub{raw: raw}
}

func (s *snapshotStoreStub) Load(ctx context.Context) (*models.WorkflowStore, error) {
	s.loads++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	store := models.NewWorkflowStore()
	if err := json.Unmarshal(s.raw, store); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *snapshotStoreStub) Save(ctx context.Context, store *models.WorkflowStore) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	raw, err := json.Marshal(store)
	if err != nil {
		return err
	}
	s.raw = raw
	s.saves++
	return nil
}

func (s *snapshotStoreStub) snapshot() *models.WorkflowStore {
	store, err := s.Load(context.Background())
	if err != nil {
		panic(err)
	}
	return store
}

func scorePtr(v int) *int {
	return &v
}

func floatPtr(v float64) *float64 {
	return &v
}

func testClass() models.ClassDefinition {
	return models.ClassDefinition{
		ID:              "class-10a",
		Name:            "Class 10A",
		HeadTeacherID:   "head-1",
		HeadTeacherName: "Bu Sari",
		Students: []models.StudentRecord{
			{ID: "stu-1", Name: "Ayu", RollNo: "01"},
			{ID: "stu-2", Name: "Budi", RollNo: "02"},
			{ID: "stu-3", Name: "Citra", RollNo: "03"},
		},
		Subjects: []models.SubjectDefinition{
			{ID: "math", Name: "Mathematics", TeacherID: "teacher-math", TeacherName: "Pak Andi"},
			{ID: "bio", Name: "Biology", TeacherID: "teacher-bio", TeacherName: "Bu Rina"},
		},
	}
}

// testSheet builds a sheet with two columns; scores[i] holds the two cells of student i.
func testSheet(id, subjectID, teacherID string, status models.GradesheetStatus, scores ...[2]*int) models.Gradesheet {
	sheet := models.Gradesheet{
		ID:        id,
		ClassID:   "class-10a",
		SubjectID: subjectID,
		TeacherID: teacherID,
		Status:    status,
		Columns: []models.GradeColumn{
			{ID: id + "-c1", Name: "Quiz", MaxScore: 100},
			{ID: id + "-c2", Name: "Exam", MaxScore: 100},
		},
		Scores:    map[string]map[string]*int{},
		UpdatedAt: fixedNow.Add(-time.Hour),
	}
	for i, cells := range scores {
		sheet.Scores[fmt.Sprintf("stu-%d", i+1)] = map[string]*int{
			id + "-c1": cells[0],
			id + "-c2": cells[1],
		}
	}
	return sheet
}

func testStore(mathStatus, bioStatus models.GradesheetStatus) *models.WorkflowStore {
	store := models.NewWorkflowStore()
	store.Classes = append(store.Classes, testClass())
	store.GradeSheets = append(store.GradeSheets,
		testSheet("sheet-math", "math", "teacher-math", mathStatus,
			[2]*int{scorePtr(90), scorePtr(80)},
			[2]*int{scorePtr(70), nil},
			[2]*int{scorePtr(60), scorePtr(60)},
		),
		testSheet("sheet-bio", "bio", "teacher-bio", bioStatus,
			[2]*int{scorePtr(100), scorePtr(90)},
			[2]*int{scorePtr(80), scorePtr(80)},
			[2]*int{scorePtr(50), scorePtr(70)},
		),
	)
	return store
}

func claimsFor(userID string, role models.UserRole) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: role}
}

func studentClaims(userID, classID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: models.RoleStudent, ClassID: classID}
}
