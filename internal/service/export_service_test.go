package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/examdash/exam-dash-api/internal/models"
	"github.com/examdash/exam-dash-api/pkg/jobs"
	"github.com/examdash/exam-dash-api/pkg/storage"
)

type mockExportRepo struct {
	jobs map[string]*models.ExportJob
}

func newMockExportRepo() *mockExportRepo {
	return &mockExportRepo{jobs: map[string]*models.ExportJob{}}
}

func (m *mockExportRepo) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = "job-1"
	}
	m.jobs[job.ID] = job
	return nil
}

func (m *mockExportRepo) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *job
	return &copy, nil
}

func (m *mockExportRepo) ListByCourse(ctx context.Context, courseID string) ([]models.ExportJob, error) {
	var out []models.ExportJob
	for _, job := range m.jobs {
		if job.CourseID == courseID {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (m *mockExportRepo) MarkRunning(ctx context.Context, id string) error {
	m.jobs[id].Status = models.ExportStatusRunning
	return nil
}

func (m *mockExportRepo) MarkCompleted(ctx context.Context, id, filePath string) error {
	m.jobs[id].Status = models.ExportStatusCompleted
	m.jobs[id].FilePath = &filePath
	return nil
}

func (m *mockExportRepo) MarkFailed(ctx context.Context, id, reason string) error {
	m.jobs[id].Status = models.ExportStatusFailed
	m.jobs[id].FailReason = &reason
	return nil
}

type mockRosterProvider struct {
	roster *models.CourseRoster
}

func (m *mockRosterProvider) Roster(ctx context.Context, courseID string) (*models.CourseRoster, error) {
	return m.roster, nil
}

type memoryStorage struct {
	files map[string][]byte
}

func (m *memoryStorage) Save(filename string, data []byte) (string, error) {
	if m.files == nil {
		m.files = map[string][]byte{}
	}
	m.files[filename] = data
	return filename, nil
}

func (m *memoryStorage) Path(filename string) string {
	return "/exports/" + filename
}

func exportFixture(t *testing.T) (*ExportService, *mockExportRepo, *memoryStorage) {
	repo := newMockExportRepo()
	store := &memoryStorage{}
	roster := &mockRosterProvider{roster: &models.CourseRoster{
		CourseID: "course-1",
		Rows: []models.RosterRow{
			{StudentID: "s1", StudentName: "Ada", Grade: models.GradeA, Category: models.CategoryPassing, Completed: 4},
			{StudentID: "s2", StudentName: "Ben", Grade: models.GradeF, Category: models.CategoryFailing, Pending: 4},
		},
	}}
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewExportService(repo, roster, store, signer, jobs.QueueConfig{Workers: 1}, nil, nil)
	return svc, repo, store
}

func TestExportServiceRendersCSV(t *testing.T) {
	svc, repo, store := exportFixture(t)
	job := &models.ExportJob{CourseID: "course-1", Format: models.ExportFormatCSV, Status: models.ExportStatusQueued}
	require.NoError(t, repo.Create(context.Background(), job))

	require.NoError(t, svc.process(context.Background(), jobs.Task{Ref: job.ID}))

	stored := repo.jobs[job.ID]
	require.Equal(t, models.ExportStatusCompleted, stored.Status)
	require.NotNil(t, stored.FilePath)

	payload := string(store.files[*stored.FilePath])
	require.True(t, strings.HasPrefix(payload, "Student,Grade,Category,Completed,Pending"))
	require.Contains(t, payload, "Ada,A,PASSING,4,0")
}

func TestExportServiceSignedDownloadRoundTrip(t *testing.T) {
	svc, repo, _ := exportFixture(t)
	job := &models.ExportJob{CourseID: "course-1", Format: models.ExportFormatPDF, Status: models.ExportStatusQueued}
	require.NoError(t, repo.Create(context.Background(), job))
	require.NoError(t, svc.process(context.Background(), jobs.Task{Ref: job.ID}))

	signed, err := svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotEmpty(t, signed.Token)

	path, err := svc.ResolveDownload(context.Background(), signed.Token)
	require.NoError(t, err)
	require.Contains(t, path, "/exports/")
}

func TestExportServiceRejectsTamperedToken(t *testing.T) {
	svc, repo, _ := exportFixture(t)
	job := &models.ExportJob{CourseID: "course-1", Format: models.ExportFormatCSV, Status: models.ExportStatusQueued}
	require.NoError(t, repo.Create(context.Background(), job))
	require.NoError(t, svc.process(context.Background(), jobs.Task{Ref: job.ID}))

	signed, err := svc.Get(context.Background(), job.ID)
	require.NoError(t, err)

	_, err = svc.ResolveDownload(context.Background(), signed.Token+"x")
	require.Error(t, err)
}
