package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-grade-workflow/internal/dto"
	"github.com/noah-isme/sma-grade-workflow/internal/models"
	appErrors "github.com/noah-isme/sma-grade-workflow/pkg/errors"
)

type resultCacheStub struct {
	stored      map[string]*dto.StudentResult
	invalidated []string
}

func newResultCacheStub() *resultCacheStub {
	return &resultCacheStub{stored: map[string]*dto.StudentResult{}}
}

func (c *resultCacheStub) GetStudentResult(ctx context.Context, classID, studentID string) (*dto.StudentResult, bool) {
	result, ok := c.stored[classID+"/"+studentID]
	return result, ok
}

func (c *resultCacheStub) SetStudentResult(ctx context.Context, result *dto.StudentResult) {
	if result.Approved {
		c.stored[result.ClassID+"/"+result.StudentID] = result
	}
}

func (c *resultCacheStub) InvalidateClass(ctx context.Context, classID string) {
	c.invalidated = append(c.invalidated, classID)
	for key, result := range c.stored {
		if result.ClassID == classID {
			delete(c.stored, key)
		}
	}
}

func newWorkflowServiceForTest(t *testing.T, store *models.WorkflowStore) (*GradeWorkflowService, *snapshotStoreStub, *resultCacheStub) {
	t.Helper()
	backend := newSnapshotStoreStub(store)
	cache := newResultCacheStub()
	ids := 0
	svc := NewGradeWorkflowService(backend, cache, NewMetricsService(), nil, zap.NewNop(), WorkflowOptions{
		Now: func() time.Time { return fixedNow },
		NewID: func() string {
			ids++
			return "generated-" + string(rune('a'+ids-1))
		},
	})
	return svc, backend, cache
}

func TestWorkflowSetScorePersists(t *testing.T) {
	svc, backend, _ := newWorkflowServiceForTest(t, testStore(models.SheetDraft, models.SheetDraft))
	teacher := claimsFor("teacher-math", models.RoleTeacher)

	view, err := svc.SetScore(context.Background(), teacher, "sheet-math", "stu-2", "sheet-math-c2", floatPtr(89.5))
	require.NoError(t, err)
	assert.Equal(t, 100, view.Completion)
	assert.True(t, view.Editable)
	assert.Equal(t, 80, view.Students[1].SubjectScore)

	persisted := backend.snapshot().FindSheet("sheet-math")
	assert.Equal(t, 90, *persisted.Scores["stu-2"]["sheet-math-c2"])
	assert.Equal(t, fixedNow, persisted.UpdatedAt)
	assert.Equal(t, 1, backend.saves)
}

func TestWorkflowRejectionLeavesStoreUntouched(t *testing.T) {
	svc, backend, _ := newWorkflowServiceForTest(t, testStore(models.SheetSubmitted, models.SheetDraft))
	before := append([]byte(nil), backend.raw...)
	teacher := claimsFor("teacher-math", models.RoleTeacher)
	ctx := context.Background()

	view, err := svc.SetScore(ctx, teacher, "sheet-math", "stu-1", "sheet-math-c1", floatPtr(10))
	assert.Equal(t, appErrors.CodeWrongStatus, appErrors.ReasonCode(err))
	require.NotNil(t, view)
	assert.Equal(t, models.SheetSubmitted, view.Status)
	assert.False(t, view.Editable)
	assert.Equal(t, 90, *view.Students[0].Scores["sheet-math-c1"])

	_, err = svc.AddColumn(ctx, teacher, "sheet-math", "Project", 100)
	assert.Equal(t, appErrors.CodeWrongStatus, appErrors.ReasonCode(err))
	_, err = svc.Submit(ctx, teacher, "sheet-math")
	assert.Equal(t, appErrors.CodeWrongStatus, appErrors.ReasonCode(err))

	assert.Equal(t, before, backend.raw)
	assert.Zero(t, backend.saves)
}

func TestWorkflowSheetOwnership(t *testing.T) {
	svc, backend, _ := newWorkflowServiceForTest(t, testStore(models.SheetDraft, models.SheetDraft))
	ctx := context.Background()

	_, err := svc.SetScore(ctx, claimsFor("teacher-bio", models.RoleTeacher), "sheet-math", "stu-1", "sheet-math-c1", floatPtr(1))
	assert.Equal(t, appErrors.CodePermissionDenied, appErrors.ReasonCode(err))

	_, err = svc.GetSheet(ctx, studentClaims("stu-1", "class-10a"), "sheet-math")
	assert.Equal(t, appErrors.CodePermissionDenied, appErrors.ReasonCode(err))

	_, err = svc.SetScore(ctx, nil, "sheet-math", "stu-1", "sheet-math-c1", floatPtr(1))
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	view, err := svc.SetScore(ctx, claimsFor("admin-1", models.RoleAdmin), "sheet-math", "stu-1", "sheet-math-c1", floatPtr(1))
	require.NoError(t, err)
	assert.Equal(t, 1, *view.Students[0].Scores["sheet-math-c1"])
	assert.Equal(t, 1, backend.saves)
}

func TestWorkflowUnknownSheet(t *testing.T) {
	svc, _, _ := newWorkflowServiceForTest(t, testStore(models.SheetDraft, models.SheetDraft))

	view, err := svc.Submit(context.Background(), claimsFor("teacher-math", models.RoleTeacher), "missing")
	assert.Nil(t, view)
	assert.Equal(t, appErrors.CodeNotFound, appErrors.ReasonCode(err))
}

func TestWorkflowColumnLifecycle(t *testing.T) {
	svc, _, _ := newWorkflowServiceForTest(t, testStore(models.SheetDraft, models.SheetDraft))
	teacher := claimsFor("teacher-bio", models.RoleTeacher)
	ctx := context.Background()

	view, err := svc.AddColumn(ctx, teacher, "sheet-bio", "Practicum", 0)
	require.NoError(t, err)
	require.Len(t, view.Columns, 3)
	added := view.Columns[2]
	assert.Equal(t, "generated-a", added.ID)
	assert.Equal(t, 100, added.MaxScore)
	assert.Equal(t, 67, view.Completion)

	view, err = svc.EditColumn(ctx, teacher, "sheet-bio", added.ID, "Lab work", 50)
	require.NoError(t, err)
	assert.Equal(t, models.GradeColumn{ID: added.ID, Name: "Lab work", MaxScore: 50}, view.Columns[2])

	view, err = svc.DeleteColumn(ctx, teacher, "sheet-bio", added.ID)
	require.NoError(t, err)
	assert.Len(t, view.Columns, 2)
	assert.Equal(t, 100, view.Completion)
}

func TestWorkflowSubmitApproveAndResult(t *testing.T) {
	svc, backend, cache := newWorkflowServiceForTest(t, testStore(models.SheetDraft, models.SheetDraft))
	ctx := context.Background()
	head := claimsFor("head-1", models.RoleHead)

	summary, err := svc.Approve(ctx, head, "class-10a")
	assert.Equal(t, appErrors.CodeIncompleteSubmissions, appErrors.ReasonCode(err))
	require.NotNil(t, summary)
	assert.Equal(t, []string{"Mathematics", "Biology"}, summary.MissingSubjects)

	_, err = svc.Submit(ctx, claimsFor("teacher-math", models.RoleTeacher), "sheet-math")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, claimsFor("teacher-bio", models.RoleTeacher), "sheet-bio")
	require.NoError(t, err)

	ok, missing, err := svc.CanApprove(ctx, "class-10a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, missing)

	_, err = svc.Approve(ctx, claimsFor("teacher-math", models.RoleHead), "class-10a")
	assert.Equal(t, appErrors.CodePermissionDenied, appErrors.ReasonCode(err))

	summary, err = svc.Approve(ctx, head, "class-10a")
	require.NoError(t, err)
	require.NotNil(t, summary.FinalResult)
	assert.True(t, summary.FinalResult.Approved)
	assert.Equal(t, []string{"class-10a"}, cache.invalidated)
	for _, sheet := range backend.snapshot().SheetsForClass("class-10a") {
		assert.Equal(t, models.SheetApproved, sheet.Status)
	}

	result, err := svc.StudentResult(ctx, studentClaims("stu-3", "class-10a"), "class-10a", "stu-3")
	require.NoError(t, err)
	assert.True(t, result.Approved)
	assert.Equal(t, 2, result.Rank)
	assert.Equal(t, 120, result.Total)
	assert.Contains(t, cache.stored, "class-10a/stu-3")
}

func TestWorkflowResetApprovedSheetWithdrawsApproval(t *testing.T) {
	svc, backend, cache := newWorkflowServiceForTest(t, testStore(models.SheetSubmitted, models.SheetSubmitted))
	ctx := context.Background()
	_, err := svc.Approve(ctx, claimsFor("head-1", models.RoleHead), "class-10a")
	require.NoError(t, err)
	_, err = svc.StudentResult(ctx, studentClaims("stu-1", "class-10a"), "class-10a", "stu-1")
	require.NoError(t, err)

	view, err := svc.Reset(ctx, claimsFor("teacher-math", models.RoleTeacher), "sheet-math")
	require.NoError(t, err)
	assert.Equal(t, models.SheetDraft, view.Status)
	assert.True(t, view.Editable)

	persisted := backend.snapshot()
	assert.NotContains(t, persisted.FinalResults, "class-10a")
	assert.Equal(t, models.SheetSubmitted, persisted.FindSheet("sheet-bio").Status)
	assert.Empty(t, cache.stored)

	result, err := svc.StudentResult(ctx, studentClaims("stu-1", "class-10a"), "class-10a", "stu-1")
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Zero(t, result.Total)
}

func TestWorkflowStudentResultAccess(t *testing.T) {
	svc, _, _ := newWorkflowServiceForTest(t, testStore(models.SheetDraft, models.SheetDraft))
	ctx := context.Background()

	_, err := svc.StudentResult(ctx, studentClaims("stu-1", "class-10a"), "class-10a", "stu-2")
	assert.Equal(t, appErrors.CodePermissionDenied, appErrors.ReasonCode(err))

	_, err = svc.StudentResult(ctx, claimsFor("head-2", models.RoleHead), "class-10a", "stu-2")
	assert.Equal(t, appErrors.CodePermissionDenied, appErrors.ReasonCode(err))

	_, err = svc.StudentResult(ctx, claimsFor("admin-1", models.RoleAdmin), "class-unknown", "stu-2")
	assert.Equal(t, appErrors.CodeNotFound, appErrors.ReasonCode(err))

	result, err := svc.StudentResult(ctx, claimsFor("head-1", models.RoleHead), "class-10a", "stu-2")
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Len(t, result.SubjectScores, 2)
}

func TestWorkflowClassSummary(t *testing.T) {
	svc, _, _ := newWorkflowServiceForTest(t, testStore(models.SheetSubmitted, models.SheetDraft))
	ctx := context.Background()

	summary, err := svc.ClassSummary(ctx, claimsFor("head-1", models.RoleHead), "class-10a")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.StudentCount)
	assert.False(t, summary.CanApprove)
	require.Len(t, summary.Subjects, 2)
	assert.Equal(t, models.SheetSubmitted, summary.Subjects[0].Status)
	assert.Equal(t, 83, summary.Subjects[0].Completion)
	assert.Nil(t, summary.FinalResult)

	_, err = svc.ClassSummary(ctx, claimsFor("teacher-math", models.RoleTeacher), "class-10a")
	assert.Equal(t, appErrors.CodePermissionDenied, appErrors.ReasonCode(err))
}

func TestWorkflowListTeacherSheets(t *testing.T) {
	svc, _, _ := newWorkflowServiceForTest(t, testStore(models.SheetDraft, models.SheetDraft))
	ctx := context.Background()

	views, err := svc.ListTeacherSheets(ctx, claimsFor("teacher-bio", models.RoleTeacher))
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "sheet-bio", views[0].SheetID)
	assert.Equal(t, "Bu Rina", views[0].TeacherName)

	views, err = svc.ListTeacherSheets(ctx, claimsFor("admin-1", models.RoleAdmin))
	require.NoError(t, err)
	assert.Len(t, views, 2)

	_, err = svc.ListTeacherSheets(ctx, studentClaims("stu-1", "class-10a"))
	assert.Equal(t, appErrors.CodePermissionDenied, appErrors.ReasonCode(err))
}

func TestWorkflowUpsertRoster(t *testing.T) {
	svc, backend, _ := newWorkflowServiceForTest(t, testStore(models.SheetDraft, models.SheetDraft))
	ctx := context.Background()
	class := testClass()
	class.Students = append(class.Students, models.StudentRecord{ID: "stu-4", Name: "Dewi", RollNo: "04"})
	class.Subjects = append(class.Subjects, models.SubjectDefinition{ID: "chem", Name: "Chemistry", TeacherID: "teacher-chem"})

	_, err := svc.UpsertRoster(ctx, claimsFor("head-1", models.RoleHead), class)
	assert.Equal(t, appErrors.CodePermissionDenied, appErrors.ReasonCode(err))

	result, err := svc.UpsertRoster(ctx, claimsFor("admin-1", models.RoleAdmin), class)
	require.NoError(t, err)
	assert.Equal(t, []string{"generated-a"}, result.CreatedSheets)
	assert.Equal(t, 3, result.TotalSheets)

	persisted := backend.snapshot()
	chem := persisted.FindSheet("generated-a")
	require.NotNil(t, chem)
	assert.Equal(t, models.SheetDraft, chem.Status)
	assert.Equal(t, "teacher-chem", chem.TeacherID)
	math := persisted.FindSheet("sheet-math")
	assert.Contains(t, math.Scores, "stu-4")
	assert.Nil(t, math.Scores["stu-4"]["sheet-math-c1"])
	assert.Equal(t, 90, *math.Scores["stu-1"]["sheet-math-c1"])

	invalid := class
	invalid.Name = ""
	_, err = svc.UpsertRoster(ctx, claimsFor("admin-1", models.RoleAdmin), invalid)
	assert.Equal(t, appErrors.CodeValidationFailed, appErrors.ReasonCode(err))
}

func TestWorkflowRosterLockedAfterApproval(t *testing.T) {
	svc, backend, cache := newWorkflowServiceForTest(t, testStore(models.SheetSubmitted, models.SheetSubmitted))
	ctx := context.Background()
	admin := claimsFor("admin-1", models.RoleAdmin)
	_, err := svc.Approve(ctx, claimsFor("head-1", models.RoleHead), "class-10a")
	require.NoError(t, err)
	before := append([]byte(nil), backend.raw...)
	saves := backend.saves
	invalidated := len(cache.invalidated)

	changed := testClass()
	changed.Students = append(changed.Students, models.StudentRecord{ID: "stu-4", Name: "Dewi", RollNo: "04"})
	changed.Subjects = append(changed.Subjects, models.SubjectDefinition{ID: "chem", Name: "Chemistry", TeacherID: "teacher-chem"})
	_, err = svc.UpsertRoster(ctx, admin, changed)
	assert.Equal(t, appErrors.CodeWrongStatus, appErrors.ReasonCode(err))
	assert.Equal(t, before, backend.raw)
	assert.Equal(t, saves, backend.saves)
	assert.Len(t, cache.invalidated, invalidated)

	persisted := backend.snapshot()
	require.Contains(t, persisted.FinalResults, "class-10a")
	assert.NotContains(t, persisted.FindSheet("sheet-math").Scores, "stu-4")
	ok, missing, err := svc.CanApprove(ctx, "class-10a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, missing)

	result, err := svc.UpsertRoster(ctx, admin, testClass())
	require.NoError(t, err)
	assert.Empty(t, result.CreatedSheets)
	assert.Equal(t, 2, result.TotalSheets)

	_, err = svc.Reset(ctx, claimsFor("teacher-math", models.RoleTeacher), "sheet-math")
	require.NoError(t, err)
	_, err = svc.UpsertRoster(ctx, admin, changed)
	require.NoError(t, err)
	persisted = backend.snapshot()
	assert.Contains(t, persisted.FindSheet("sheet-math").Scores, "stu-4")
	assert.NotContains(t, persisted.FindSheet("sheet-bio").Scores, "stu-4")
	assert.Equal(t, models.SheetSubmitted, persisted.FindSheet("sheet-bio").Status)
}

func TestWorkflowRankingExportReadsOneSnapshot(t *testing.T) {
	svc, backend, _ := newWorkflowServiceForTest(t, testStore(models.SheetSubmitted, models.SheetDraft))
	loads := backend.loads

	class, rankings, approved, err := svc.RankingExport(context.Background(), claimsFor("head-1", models.RoleHead), "class-10a")
	require.NoError(t, err)
	assert.Equal(t, loads+1, backend.loads)
	assert.False(t, approved)
	assert.Equal(t, "Class 10A", class.Name)
	require.Len(t, rankings, 3)
	assert.Equal(t, "Ayu", rankings[0].StudentName)

	_, _, _, err = svc.RankingExport(context.Background(), claimsFor("teacher-math", models.RoleHead), "class-10a")
	assert.Equal(t, appErrors.CodePermissionDenied, appErrors.ReasonCode(err))
	_, _, _, err = svc.RankingExport(context.Background(), claimsFor("admin-1", models.RoleAdmin), "class-unknown")
	assert.Equal(t, appErrors.CodeNotFound, appErrors.ReasonCode(err))
}

func TestWorkflowStoreFailures(t *testing.T) {
	svc, backend, _ := newWorkflowServiceForTest(t, testStore(models.SheetDraft, models.SheetDraft))
	ctx := context.Background()
	teacher := claimsFor("teacher-math", models.RoleTeacher)

	backend.saveErr = errors.New("disk full")
	_, err := svc.Submit(ctx, teacher, "sheet-math")
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.ReasonCode(err))

	backend.saveErr = nil
	backend.loadErr = errors.New("unreachable")
	_, err = svc.GetSheet(ctx, teacher, "sheet-math")
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.ReasonCode(err))
}

func TestWorkflowSaveConflictIsReported(t *testing.T) {
	svc, backend, _ := newWorkflowServiceForTest(t, testStore(models.SheetDraft, models.SheetDraft))
	backend.saveErr = fmt.Errorf("update at revision 3: %w", appErrors.ErrStoreConflict)

	_, err := svc.SetScore(context.Background(), claimsFor("teacher-math", models.RoleTeacher), "sheet-math", "stu-1", "sheet-math-c1", floatPtr(50))
	assert.Equal(t, appErrors.ErrStoreConflict.Code, appErrors.ReasonCode(err))
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Equal(t, 90, *backend.snapshot().FindSheet("sheet-math").Scores["stu-1"]["sheet-math-c1"])
}
