package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-grade-workflow/internal/dto"
	"github.com/noah-isme/sma-grade-workflow/internal/models"
	appErrors "github.com/noah-isme/sma-grade-workflow/pkg/errors"
)

// WorkflowStore persists the whole workflow state as one snapshot.
type WorkflowStore interface {
	Load(ctx context.Context) (*models.WorkflowStore, error)
	Save(ctx context.Context, store *models.WorkflowStore) error
}

type studentResultCache interface {
	GetStudentResult(ctx context.Context, classID, studentID string) (*dto.StudentResult, bool)
	SetStudentResult(ctx context.Context, result *dto.StudentResult)
	InvalidateClass(ctx context.Context, classID string)
}

type workflowMetrics interface {
	ObserveWorkflowOperation(operation, outcome string)
	ObserveStoreAccess(action string, duration time.Duration)
}

// WorkflowOptions overrides clock and id generation, mainly for tests.
type WorkflowOptions struct {
	Now   func() time.Time
	NewID func() string
}

// GradeWorkflowService owns the gradesheet lifecycle, class approval and result projection.
// Every operation loads the store, applies one transformation to a copy and saves the copy only
// when the transformation succeeds; the mutex makes that sequence single-writer.
type GradeWorkflowService struct {
	mu        sync.Mutex
	store     WorkflowStore
	cache     studentResultCache
	metrics   workflowMetrics
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// NewGradeWorkflowService wires the service. cache and metrics may be nil.
func NewGradeWorkflowService(store WorkflowStore, cache studentResultCache, metrics workflowMetrics, validate *validator.Validate, logger *zap.Logger, opts WorkflowOptions) *GradeWorkflowService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &GradeWorkflowService{
		store:     store,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       opts.Now,
		newID:     opts.NewID,
	}
}

// GetSheet returns the read view of one gradesheet.
func (s *GradeWorkflowService) GetSheet(ctx context.Context, actor *models.JWTClaims, sheetID string) (*dto.TeacherSheetView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	store, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	sheet := store.FindSheet(sheetID)
	if sheet == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "gradesheet not found")
	}
	if err := authorizeSheet(actor, sheet); err != nil {
		return nil, err
	}
	return buildSheetView(store, sheet), nil
}

// ListTeacherSheets returns the sheets assigned to the caller, or every sheet for admins.
func (s *GradeWorkflowService) ListTeacherSheets(ctx context.Context, actor *models.JWTClaims) ([]dto.TeacherSheetView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() && !actor.Role.TeachesSubjects() {
		return nil, appErrors.ErrPermissionDenied
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	store, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]dto.TeacherSheetView, 0)
	for i := range store.GradeSheets {
		sheet := &store.GradeSheets[i]
		if !actor.IsAdmin() && sheet.TeacherID != actor.UserID {
			continue
		}
		views = append(views, *buildSheetView(store, sheet))
	}
	return views, nil
}

// SetScore writes one score cell; a nil value clears it.
func (s *GradeWorkflowService) SetScore(ctx context.Context, actor *models.JWTClaims, sheetID, studentID, columnID string, value *float64) (*dto.TeacherSheetView, error) {
	return s.sheetOperation(ctx, actor, sheetID, "set_score", func(store *models.WorkflowStore, sheet *models.Gradesheet, class *models.ClassDefinition) error {
		return setScore(sheet, class, studentID, columnID, value, s.now())
	})
}

// AddColumn appends an assessment column to a draft sheet.
func (s *GradeWorkflowService) AddColumn(ctx context.Context, actor *models.JWTClaims, sheetID, name string, maxScore int) (*dto.TeacherSheetView, error) {
	columnID := s.newID()
	return s.sheetOperation(ctx, actor, sheetID, "add_column", func(store *models.WorkflowStore, sheet *models.Gradesheet, class *models.ClassDefinition) error {
		return addColumn(sheet, class, columnID, name, maxScore, s.now())
	})
}

// EditColumn renames or rescales a column of a draft sheet.
func (s *GradeWorkflowService) EditColumn(ctx context.Context, actor *models.JWTClaims, sheetID, columnID, name string, maxScore int) (*dto.TeacherSheetView, error) {
	return s.sheetOperation(ctx, actor, sheetID, "edit_column", func(store *models.WorkflowStore, sheet *models.Gradesheet, class *models.ClassDefinition) error {
		return editColumn(sheet, columnID, name, maxScore, s.now())
	})
}

// DeleteColumn removes a column and its scores from a draft sheet.
func (s *GradeWorkflowService) DeleteColumn(ctx context.Context, actor *models.JWTClaims, sheetID, columnID string) (*dto.TeacherSheetView, error) {
	return s.sheetOperation(ctx, actor, sheetID, "delete_column", func(store *models.WorkflowStore, sheet *models.Gradesheet, class *models.ClassDefinition) error {
		return deleteColumn(sheet, columnID, s.now())
	})
}

// Submit hands a draft sheet over to the head of class.
func (s *GradeWorkflowService) Submit(ctx context.Context, actor *models.JWTClaims, sheetID string) (*dto.TeacherSheetView, error) {
	return s.sheetOperation(ctx, actor, sheetID, "submit", func(store *models.WorkflowStore, sheet *models.Gradesheet, class *models.ClassDefinition) error {
		return submitSheet(sheet, s.now())
	})
}

// Reset returns a sheet to draft. Resetting an approved sheet withdraws the class approval.
func (s *GradeWorkflowService) Reset(ctx context.Context, actor *models.JWTClaims, sheetID string) (*dto.TeacherSheetView, error) {
	var classID string
	withdrawn := false
	view, err := s.sheetOperation(ctx, actor, sheetID, "reset", func(store *models.WorkflowStore, sheet *models.Gradesheet, class *models.ClassDefinition) error {
		classID = sheet.ClassID
		withdrawn = resetSheet(store, sheet, s.now())
		return nil
	})
	if err == nil && withdrawn {
		s.logger.Info("class approval withdrawn by sheet reset", zap.String("class_id", classID), zap.String("sheet_id", sheetID), zap.String("actor", actor.UserID))
		if s.cache != nil {
			s.cache.InvalidateClass(ctx, classID)
		}
	}
	return view, err
}

// ClassRanking aggregates the live ranking of a class from its current sheets.
func (s *GradeWorkflowService) ClassRanking(ctx context.Context, classID string) ([]models.RankingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	store, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	class := store.FindClass(classID)
	if class == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	return BuildClassRanking(class, store.SheetsForClass(classID)), nil
}

// CanApprove reports the approval gate of a class and the subjects still missing.
func (s *GradeWorkflowService) CanApprove(ctx context.Context, classID string) (bool, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	store, err := s.load(ctx)
	if err != nil {
		return false, nil, err
	}
	class := store.FindClass(classID)
	if class == nil {
		return false, nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	ok, missing := CanApprove(store, class)
	return ok, missing, nil
}

// ClassSummary returns the head-of-class dashboard.
func (s *GradeWorkflowService) ClassSummary(ctx context.Context, actor *models.JWTClaims, classID string) (*dto.HeadClassSummary, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	store, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	class := store.FindClass(classID)
	if class == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	if !actor.IsAdmin() && actor.UserID != class.HeadTeacherID {
		return nil, appErrors.ErrPermissionDenied
	}
	return buildClassSummary(store, class), nil
}

// Approve freezes the class ranking. A refused approval returns the unchanged summary and the reason.
func (s *GradeWorkflowService) Approve(ctx context.Context, actor *models.JWTClaims, classID string) (*dto.HeadClassSummary, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	store, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	class := store.FindClass(classID)
	if class == nil {
		s.observe("approve", appErrors.ErrNotFound)
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}

	work := store.Clone()
	if err := approveClass(work, work.FindClass(classID), actor.UserID, s.now()); err != nil {
		s.reject("approve", classID, actor, err)
		return buildClassSummary(store, class), err
	}
	if err := s.save(ctx, work); err != nil {
		return nil, err
	}
	s.observe("approve", nil)
	s.logger.Info("class results approved", zap.String("class_id", classID), zap.String("actor", actor.UserID))
	if s.cache != nil {
		s.cache.InvalidateClass(ctx, classID)
	}
	return buildClassSummary(work, work.FindClass(classID)), nil
}

// StudentResult projects a student's result. Students may only read their own result; heads read
// their class and admins read any.
func (s *GradeWorkflowService) StudentResult(ctx context.Context, actor *models.JWTClaims, classID, studentID string) (*dto.StudentResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStudent && (actor.UserID != studentID || actor.ClassID != classID) {
		return nil, appErrors.ErrPermissionDenied
	}
	if s.cache != nil {
		if cached, ok := s.cache.GetStudentResult(ctx, classID, studentID); ok && s.canReadClass(actor, cached.ClassID, "") {
			return cached, nil
		}
	}

	s.mu.Lock()
	store, err := s.load(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	class := store.FindClass(classID)
	if class == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	if !s.canReadClass(actor, classID, class.HeadTeacherID) {
		return nil, appErrors.ErrPermissionDenied
	}
	var final *models.ClassFinalResult
	if frozen, ok := store.FinalResults[classID]; ok {
		final = &frozen
	}
	result := ProjectStudentResult(class, final, studentID)
	if result == nil {
		s.logger.Warn("student missing from frozen rankings", zap.String("class_id", classID), zap.String("student_id", studentID))
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found in class results")
	}
	if s.cache != nil {
		s.cache.SetStudentResult(ctx, result)
	}
	return result, nil
}

// RankingExport returns the class with its frozen ranking when approved, otherwise the live one.
func (s *GradeWorkflowService) RankingExport(ctx context.Context, actor *models.JWTClaims, classID string) (*models.ClassDefinition, []models.RankingEntry, bool, error) {
	if actor == nil {
		return nil, nil, false, appErrors.ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	store, err := s.load(ctx)
	if err != nil {
		return nil, nil, false, err
	}
	class := store.FindClass(classID)
	if class == nil {
		return nil, nil, false, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	if !actor.IsAdmin() && actor.UserID != class.HeadTeacherID {
		return nil, nil, false, appErrors.ErrPermissionDenied
	}
	if final, ok := store.FinalResults[classID]; ok && final.Approved {
		return class, final.Rankings, true, nil
	}
	return class, BuildClassRanking(class, store.SheetsForClass(classID)), false, nil
}

// UpsertRoster registers a class roster and creates the missing gradesheets. Admin only.
func (s *GradeWorkflowService) UpsertRoster(ctx context.Context, actor *models.JWTClaims, class models.ClassDefinition) (*dto.RosterResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return nil, appErrors.ErrPermissionDenied
	}
	results, err := s.SeedRoster(ctx, []models.ClassDefinition{class})
	if err != nil {
		return nil, err
	}
	return &results[0], nil
}

// SeedRoster upserts class rosters without an actor; used at startup.
func (s *GradeWorkflowService) SeedRoster(ctx context.Context, classes []models.ClassDefinition) ([]dto.RosterResult, error) {
	for i := range classes {
		if err := s.validator.Struct(classes[i]); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class roster")
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	store, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	work := store.Clone()
	results := make([]dto.RosterResult, 0, len(classes))
	for _, class := range classes {
		result, err := upsertRoster(work, class, s.newID, s.now())
		if err != nil {
			s.observe("roster.upsert", err)
			s.logger.Debug("roster upsert rejected", zap.String("class_id", class.ID), zap.Error(err))
			return nil, err
		}
		results = append(results, result)
	}
	if err := s.save(ctx, work); err != nil {
		return nil, err
	}
	for _, result := range results {
		s.logger.Info("class roster upserted", zap.String("class_id", result.ClassID), zap.Int("created_sheets", len(result.CreatedSheets)))
		if s.cache != nil {
			s.cache.InvalidateClass(ctx, result.ClassID)
		}
	}
	return results, nil
}

type sheetMutation func(store *models.WorkflowStore, sheet *models.Gradesheet, class *models.ClassDefinition) error

func (s *GradeWorkflowService) sheetOperation(ctx context.Context, actor *models.JWTClaims, sheetID, op string, fn sheetMutation) (*dto.TeacherSheetView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	store, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	sheet := store.FindSheet(sheetID)
	if sheet == nil {
		s.observe(op, appErrors.ErrNotFound)
		return nil, appErrors.Clone(appErrors.ErrNotFound, "gradesheet not found")
	}
	if err := authorizeSheet(actor, sheet); err != nil {
		s.observe(op, err)
		return nil, err
	}

	work := store.Clone()
	target := work.FindSheet(sheetID)
	if err := fn(work, target, classOrPlaceholder(work, target.ClassID)); err != nil {
		s.reject(op, sheetID, actor, err)
		return buildSheetView(store, sheet), err
	}
	if err := s.save(ctx, work); err != nil {
		return nil, err
	}
	s.observe(op, nil)
	if op == "submit" || op == "reset" {
		s.logger.Info("gradesheet status changed", zap.String("sheet_id", sheetID), zap.String("status", string(target.Status)), zap.String("actor", actor.UserID))
	}
	return buildSheetView(work, target), nil
}

func authorizeSheet(actor *models.JWTClaims, sheet *models.Gradesheet) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.Role.TeachesSubjects() && sheet.TeacherID == actor.UserID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrPermissionDenied, "gradesheet belongs to another teacher")
}

func (s *GradeWorkflowService) canReadClass(actor *models.JWTClaims, classID, headTeacherID string) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleStudent:
		return actor.ClassID == classID
	case models.RoleHead:
		return headTeacherID != "" && actor.UserID == headTeacherID
	default:
		return false
	}
}

func (s *GradeWorkflowService) load(ctx context.Context) (*models.WorkflowStore, error) {
	start := time.Now()
	store, err := s.store.Load(ctx)
	if s.metrics != nil {
		s.metrics.ObserveStoreAccess("load", time.Since(start))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workflow store")
	}
	if store == nil {
		store = models.NewWorkflowStore()
	}
	store.Normalize()
	return store, nil
}

func (s *GradeWorkflowService) save(ctx context.Context, store *models.WorkflowStore) error {
	start := time.Now()
	err := s.store.Save(ctx, store)
	if s.metrics != nil {
		s.metrics.ObserveStoreAccess("save", time.Since(start))
	}
	if errors.Is(err, appErrors.ErrStoreConflict) {
		s.logger.Warn("workflow store save lost a revision race", zap.Int64("revision", store.Revision), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrStoreConflict.Code, appErrors.ErrStoreConflict.Status, appErrors.ErrStoreConflict.Message)
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save workflow store")
	}
	return nil
}

func (s *GradeWorkflowService) observe(op string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = appErrors.ReasonCode(err)
	}
	s.metrics.ObserveWorkflowOperation(op, outcome)
}

func (s *GradeWorkflowService) reject(op, target string, actor *models.JWTClaims, err error) {
	s.observe(op, err)
	s.logger.Debug("workflow operation rejected",
		zap.String("operation", op),
		zap.String("target", target),
		zap.String("actor", actor.UserID),
		zap.String("reason", appErrors.ReasonCode(err)),
		zap.Error(err))
}
