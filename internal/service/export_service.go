package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/examdash/exam-dash-api/internal/models"
	appErrors "github.com/examdash/exam-dash-api/pkg/errors"
	"github.com/examdash/exam-dash-api/pkg/export"
	"github.com/examdash/exam-dash-api/pkg/jobs"
	"github.com/examdash/exam-dash-api/pkg/storage"
)

// ExportRepository describes the persistence layer required by ExportService.
type ExportRepository interface {
	Create(ctx context.Context, job *models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.ExportJob, error)
	MarkRunning(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id, filePath string) error
	MarkFailed(ctx context.Context, id, reason string) error
}

type rosterProvider interface {
	Roster(ctx context.Context, courseID string) (*models.CourseRoster, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Path(filename string) string
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// CreateExportRequest enqueues a roster export.
type CreateExportRequest struct {
	Format models.ExportFormat `json:"format" validate:"required,oneof=CSV PDF"`
}

// ExportService renders instructor roster exports asynchronously. Jobs are
// queued in memory, rendered by a worker pool and downloaded through
// short-lived signed tokens.
type ExportService struct {
	repo      ExportRepository
	rosters   rosterProvider
	storage   fileStorage
	csv       csvRenderer
	pdf       pdfRenderer
	signer    *storage.SignedURLSigner
	queue     *jobs.Queue
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExportService constructs an export service. Start must be called
// before jobs are accepted.
func NewExportService(repo ExportRepository, rosters rosterProvider, store fileStorage, signer *storage.SignedURLSigner, queueCfg jobs.QueueConfig, validate *validator.Validate, logger *zap.Logger) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ExportService{
		repo:      repo,
		rosters:   rosters,
		storage:   store,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		signer:    signer,
		validator: validate,
		logger:    logger,
	}
	s.queue = jobs.NewQueue("roster-exports", s.process, queueCfg)
	return s
}

// Start launches the export worker pool.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains and stops the worker pool.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Enqueue creates an export job record and schedules rendering.
func (s *ExportService) Enqueue(ctx context.Context, courseID, requestedBy string, req CreateExportRequest) (*models.ExportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	job := &models.ExportJob{
		CourseID:    courseID,
		Format:      req.Format,
		Status:      models.ExportStatusQueued,
		RequestedBy: requestedBy,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}
	if err := s.queue.Enqueue("roster-export", job.ID); err != nil {
		if markErr := s.repo.MarkFailed(ctx, job.ID, "queue unavailable"); markErr != nil {
			s.logger.Error("mark export failed", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	return job, nil
}

// Get returns an export job with a signed download token when completed.
func (s *ExportService) Get(ctx context.Context, id string) (*models.SignedExport, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	signed := &models.SignedExport{Job: *job}
	if job.Status == models.ExportStatusCompleted && job.FilePath != nil && s.signer != nil {
		token, expiresAt, err := s.signer.Generate(job.ID, *job.FilePath)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export download")
		}
		signed.Token = token
		signed.ExpiresAt = expiresAt
	}
	return signed, nil
}

// ListByCourse returns export jobs for a course, newest first.
func (s *ExportService) ListByCourse(ctx context.Context, courseID string) ([]models.ExportJob, error) {
	jobsList, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list export jobs")
	}
	return jobsList, nil
}

// ResolveDownload verifies a signed token and returns the on-disk path of
// the rendered file.
func (s *ExportService) ResolveDownload(ctx context.Context, token string) (string, error) {
	if s.signer == nil {
		return "", appErrors.Clone(appErrors.ErrPreconditionFailed, "exports are disabled")
	}
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.Status != models.ExportStatusCompleted || job.FilePath == nil || *job.FilePath != relPath {
		return "", appErrors.Clone(appErrors.ErrPreconditionFailed, "export is not ready")
	}
	return s.storage.Path(relPath), nil
}

// process renders one queued export. It runs on the worker pool.
func (s *ExportService) process(ctx context.Context, task jobs.Task) error {
	job, err := s.repo.FindByID(ctx, task.Ref)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", task.Ref, err)
	}
	if err := s.repo.MarkRunning(ctx, job.ID); err != nil {
		return fmt.Errorf("mark export running: %w", err)
	}

	roster, err := s.rosters.Roster(ctx, job.CourseID)
	if err != nil {
		s.fail(ctx, job.ID, err)
		return err
	}
	dataset := rosterDataset(roster)

	var payload []byte
	var ext string
	switch job.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
		ext = "csv"
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, "Course Roster "+job.CourseID)
		ext = "pdf"
	default:
		err = fmt.Errorf("unsupported export format %s", job.Format)
	}
	if err != nil {
		s.fail(ctx, job.ID, err)
		return err
	}

	filename := fmt.Sprintf("roster-%s-%s.%s", job.CourseID, job.ID, ext)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		s.fail(ctx, job.ID, err)
		return err
	}
	if err := s.repo.MarkCompleted(ctx, job.ID, relPath); err != nil {
		return fmt.Errorf("mark export completed: %w", err)
	}
	s.logger.Info("export rendered",
		zap.String("job_id", job.ID),
		zap.String("course_id", job.CourseID),
		zap.String("format", string(job.Format)),
		zap.Int("bytes", len(payload)))
	return nil
}

func (s *ExportService) fail(ctx context.Context, jobID string, cause error) {
	if err := s.repo.MarkFailed(ctx, jobID, cause.Error()); err != nil {
		s.logger.Error("mark export failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func rosterDataset(roster *models.CourseRoster) export.Dataset {
	rows := make([]map[string]string, 0, len(roster.Rows))
	for _, row := range roster.Rows {
		rows = append(rows, map[string]string{
			"Student":   row.StudentName,
			"Grade":     string(row.Grade),
			"Category":  string(row.Category),
			"Completed": strconv.Itoa(row.Completed),
			"Pending":   strconv.Itoa(row.Pending),
		})
	}
	return export.Dataset{
		Headers: []string{"Student", "Grade", "Category", "Completed", "Pending"},
		Rows:    rows,
	}
}
