package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-grade-workflow/internal/models"
	appErrors "github.com/noah-isme/sma-grade-workflow/pkg/errors"
	"github.com/noah-isme/sma-grade-workflow/pkg/export"
)

type rankingSource interface {
	RankingExport(ctx context.Context, actor *models.JWTClaims, classID string) (*models.ClassDefinition, []models.RankingEntry, bool, error)
}

// ExportResult is a rendered ranking ready to be served as an attachment.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
	Approved    bool
}

// ExportService renders class rankings into downloadable files.
type ExportService struct {
	source    rankingSource
	renderers map[export.Format]export.Renderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService with the CSV, PDF and XLSX renderers.
func NewExportService(source rankingSource, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		source: source,
		renderers: map[export.Format]export.Renderer{
			export.FormatCSV:  export.NewCSVExporter(),
			export.FormatPDF:  export.NewPDFExporter(),
			export.FormatXLSX: export.NewXLSXExporter(),
		},
		logger: logger,
		now:    time.Now,
	}
}

// ExportRanking renders the ranking of a class. Approved classes export the frozen ranking.
func (s *ExportService) ExportRanking(ctx context.Context, actor *models.JWTClaims, classID string, format export.Format) (*ExportResult, error) {
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	class, rankings, approved, err := s.source.RankingExport(ctx, actor, classID)
	if err != nil {
		return nil, err
	}

	dataset := BuildRankingDataset(class, rankings, approved)
	payload, err := renderer.Render(dataset)
	if err != nil {
		s.logger.Error("ranking export failed", zap.String("class_id", classID), zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportResult{
		Filename:    s.filename(class, format),
		ContentType: format.ContentType(),
		Payload:     payload,
		Approved:    approved,
	}, nil
}

// BuildRankingDataset lays a ranking out as one row per student and one column per subject.
func BuildRankingDataset(class *models.ClassDefinition, rankings []models.RankingEntry, approved bool) export.Dataset {
	state := "provisional"
	if approved {
		state = "approved"
	}
	dataset := export.Dataset{
		Title: fmt.Sprintf("%s ranking (%s)", class.Name, state),
		Columns: []export.Column{
			{Key: "position", Label: "Position", Numeric: true},
			{Key: "rollNo", Label: "Roll No"},
			{Key: "student", Label: "Student"},
		},
		Rows: make([]map[string]string, 0, len(rankings)),
	}
	for _, subject := range class.Subjects {
		dataset.Columns = append(dataset.Columns, export.Column{Key: "subject:" + subject.ID, Label: subject.Name, Numeric: true})
	}
	dataset.Columns = append(dataset.Columns,
		export.Column{Key: "total", Label: "Total", Numeric: true},
		export.Column{Key: "average", Label: "Average", Numeric: true},
	)

	for _, entry := range rankings {
		row := map[string]string{
			"position": strconv.Itoa(entry.Position),
			"rollNo":   entry.RollNo,
			"student":  entry.StudentName,
			"total":    strconv.Itoa(entry.Total),
			"average":  strconv.FormatFloat(entry.Average, 'f', 2, 64),
		}
		for _, subject := range class.Subjects {
			if score, ok := entry.SubjectScores[subject.ID]; ok {
				row["subject:"+subject.ID] = strconv.Itoa(score.Score)
			}
		}
		dataset.Rows = append(dataset.Rows, row)
	}
	return dataset
}

func (s *ExportService) filename(class *models.ClassDefinition, format export.Format) string {
	slug := strings.ToLower(strings.Join(strings.Fields(class.Name), "-"))
	if slug == "" {
		slug = class.ID
	}
	return fmt.Sprintf("ranking-%s-%s.%s", slug, s.now().UTC().Format("20060102"), format)
}
