package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procurematch/attestation-pipeline/internal/models"
)

// PostgresStore is the durable Store backed by pgx, following the
// parameterized-query style of repositories.SpecRepository.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, job *models.Job) (string, error) {
	query := `
		INSERT INTO jobs (user_id, type, file_path, original_filename, status, max_attempts)
		VALUES ($1, $2, $3, $4, 'pending', $5)
		RETURNING id, created_at
	`
	maxAttempts := job.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 3
	}
	err := s.pool.QueryRow(ctx, query, job.UserID, job.Type, job.FilePath, job.OriginalFilename, maxAttempts).
		Scan(&job.ID, &job.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	job.Status = models.JobStatusPending
	job.MaxAttempts = maxAttempts
	return job.ID, nil
}

// ClaimNext atomically claims the oldest eligible pending job using
// SELECT ... FOR UPDATE SKIP LOCKED so concurrent workers never double
// dispatch the same row.
func (s *PostgresStore) ClaimNext(ctx context.Context, now time.Time, workerID string) (*models.Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("claim next: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const selectQuery = `
		SELECT id, user_id, type, file_path, original_filename, status,
		       created_at, attempts, max_attempts
		FROM jobs
		WHERE status = 'pending' AND attempts < max_attempts
		ORDER BY created_at ASC, id ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`

	job := &models.Job{}
	err = tx.QueryRow(ctx, selectQuery).Scan(
		&job.ID, &job.UserID, &job.Type, &job.FilePath, &job.OriginalFilename,
		&job.Status, &job.CreatedAt, &job.Attempts, &job.MaxAttempts,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next: select: %w", err)
	}

	const updateQuery = `
		UPDATE jobs
		SET status = 'processing', started_at = $2, worker_id = $3, attempts = attempts + 1
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, updateQuery, job.ID, now, workerID); err != nil {
		return nil, fmt.Errorf("claim next: update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("claim next: commit: %w", err)
	}

	job.Status = models.JobStatusProcessing
	job.StartedAt = &now
	job.WorkerID = workerID
	job.Attempts++
	return job, nil
}

func (s *PostgresStore) UpdateProgress(ctx context.Context, id string, progress models.Progress) error {
	query := `
		UPDATE jobs
		SET progress_current = $2, progress_total = $3, progress_stage = $4,
		    progress_message = $5, progress_pipeline = $6
		WHERE id = $1
	`
	_, err := s.pool.Exec(ctx, query, id, progress.Current, progress.Total, progress.Stage, progress.Message, progress.Pipeline)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

func (s *PostgresStore) Complete(ctx context.Context, id string, attestationID, analysisID *string) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'completed', completed_at = now(), result_attestation_id = $2, result_analysis_id = $3
		WHERE id = $1 AND status = 'processing'
	`, id, attestationID, analysisID)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrIllegalTransition
	}
	return nil
}

func (s *PostgresStore) Fail(ctx context.Context, id string, errMsg, errCode string) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'failed', completed_at = now(), error = $2, error_code = $3
		WHERE id = $1 AND status = 'processing'
	`, id, errMsg, errCode)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrIllegalTransition
	}
	return nil
}

func (s *PostgresStore) Cancel(ctx context.Context, id string) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'cancelled', canceled_at = now()
		WHERE id = $1 AND status IN ('pending', 'processing')
	`, id)
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrIllegalTransition
	}
	return nil
}

func (s *PostgresStore) RequestCancel(ctx context.Context, id string) error {
	cancelled, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'cancelled', canceled_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	if cancelled.RowsAffected() > 0 {
		return nil
	}

	flagged, err := s.pool.Exec(ctx, `
		UPDATE jobs SET cancel_requested = true
		WHERE id = $1 AND status = 'processing'
	`, id)
	if err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	if flagged.RowsAffected() == 0 {
		return models.ErrIllegalTransition
	}
	return nil
}

func (s *PostgresStore) Retry(ctx context.Context, id string) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'pending', started_at = NULL, completed_at = NULL, canceled_at = NULL,
		    cancel_requested = false, error = '', error_code = '',
		    progress_current = 0, progress_total = 0, progress_stage = '', progress_message = ''
		WHERE id = $1 AND status IN ('failed', 'cancelled') AND attempts < max_attempts
	`, id)
	if err != nil {
		return fmt.Errorf("retry job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrIllegalTransition
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Job, error) {
	job := &models.Job{}
	var resultAttestID, resultAnalysisID sql.NullString
	query := `
		SELECT id, user_id, type, file_path, original_filename, status, created_at,
		       started_at, completed_at, canceled_at, result_attestation_id, result_analysis_id,
		       error, error_code, attempts, max_attempts,
		       progress_current, progress_total, progress_stage, progress_message, progress_pipeline,
		       cancel_requested, worker_id
		FROM jobs WHERE id = $1
	`
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.UserID, &job.Type, &job.FilePath, &job.OriginalFilename, &job.Status, &job.CreatedAt,
		&job.StartedAt, &job.CompletedAt, &job.CancelledAt, &resultAttestID, &resultAnalysisID,
		&job.Error, &job.ErrorCode, &job.Attempts, &job.MaxAttempts,
		&job.Progress.Current, &job.Progress.Total, &job.Progress.Stage, &job.Progress.Message, &job.Progress.Pipeline,
		&job.CancelRequested, &job.WorkerID,
	)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if resultAttestID.Valid {
		job.ResultAttestID = &resultAttestID.String
	}
	if resultAnalysisID.Valid {
		job.ResultAnalysisID = &resultAnalysisID.String
	}
	return job, nil
}

func (s *PostgresStore) List(ctx context.Context, ownerID string, filter ListFilter, limit int) ([]*models.Job, error) {
	query := `
		SELECT id, user_id, type, file_path, original_filename, status, created_at, attempts, max_attempts
		FROM jobs
		WHERE user_id = $1
	`
	args := []any{ownerID}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job := &models.Job{}
		if err := rows.Scan(&job.ID, &job.UserID, &job.Type, &job.FilePath, &job.OriginalFilename, &job.Status, &job.CreatedAt, &job.Attempts, &job.MaxAttempts); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := s.pool.Exec(ctx, `
		DELETE FROM jobs WHERE id = $1 AND status IN ('completed', 'failed', 'cancelled')
	`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("job not found or not in a terminal status")
	}
	return nil
}

func (s *PostgresStore) CreateAttestation(ctx context.Context, a *models.Attestation) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("create attestation: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO attestations (user_id, issuer, issue_date, file_path, ocr_text)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	var issueDate *time.Time
	if !a.IssueDate.IsZero() {
		issueDate = &a.IssueDate
	}
	if err := tx.QueryRow(ctx, query, a.UserID, a.Issuer, issueDate, a.FilePath, a.OCRText).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return "", fmt.Errorf("create attestation: %w", err)
	}

	if err := insertAttestationServices(ctx, tx, a.ID, a.Services); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("create attestation: commit: %w", err)
	}
	return a.ID, nil
}

func insertAttestationServices(ctx context.Context, tx pgx.Tx, attestationID string, services []models.Service) error {
	if _, err := tx.Exec(ctx, `DELETE FROM attestation_services WHERE attestation_id = $1`, attestationID); err != nil {
		return fmt.Errorf("replace attestation services: delete: %w", err)
	}
	for i, svc := range services {
		_, err := tx.Exec(ctx, `
			INSERT INTO attestation_services (attestation_id, position, item_code, description, quantity, unit)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, attestationID, i, svc.ItemCode, svc.Description, svc.Quantity, svc.Unit)
		if err != nil {
			return fmt.Errorf("replace attestation services: insert row %d: %w", i, err)
		}
	}
	return nil
}

func (s *PostgresStore) GetAttestation(ctx context.Context, id string) (*models.Attestation, error) {
	a := &models.Attestation{}
	var issueDate sql.NullTime
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, issuer, issue_date, file_path, ocr_text, created_at, updated_at
		FROM attestations WHERE id = $1
	`, id).Scan(&a.ID, &a.UserID, &a.Issuer, &issueDate, &a.FilePath, &a.OCRText, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get attestation: %w", err)
	}
	if issueDate.Valid {
		a.IssueDate = issueDate.Time
	}

	services, err := loadAttestationServices(ctx, s.pool, id)
	if err != nil {
		return nil, err
	}
	a.Services = services
	return a, nil
}

func loadAttestationServices(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, attestationID string) ([]models.Service, error) {
	rows, err := q.Query(ctx, `
		SELECT item_code, description, quantity, unit
		FROM attestation_services WHERE attestation_id = $1 ORDER BY position ASC
	`, attestationID)
	if err != nil {
		return nil, fmt.Errorf("load attestation services: %w", err)
	}
	defer rows.Close()

	var services []models.Service
	for rows.Next() {
		var svc models.Service
		if err := rows.Scan(&svc.ItemCode, &svc.Description, &svc.Quantity, &svc.Unit); err != nil {
			return nil, fmt.Errorf("scan attestation service: %w", err)
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

func (s *PostgresStore) ListAttestations(ctx context.Context, ownerID string, limit int) ([]*models.Attestation, error) {
	query := `
		SELECT id, user_id, issuer, issue_date, file_path, ocr_text, created_at, updated_at
		FROM attestations WHERE user_id = $1 ORDER BY created_at DESC
	`
	args := []any{ownerID}
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $2"
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attestations: %w", err)
	}
	defer rows.Close()

	var out []*models.Attestation
	for rows.Next() {
		a := &models.Attestation{}
		var issueDate sql.NullTime
		if err := rows.Scan(&a.ID, &a.UserID, &a.Issuer, &issueDate, &a.FilePath, &a.OCRText, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan attestation: %w", err)
		}
		if issueDate.Valid {
			a.IssueDate = issueDate.Time
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, a := range out {
		services, err := loadAttestationServices(ctx, s.pool, a.ID)
		if err != nil {
			return nil, err
		}
		a.Services = services
	}
	return out, nil
}

func (s *PostgresStore) UpdateAttestationServices(ctx context.Context, id string, services []models.Service) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("update attestation services: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertAttestationServices(ctx, tx, id, services); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE attestations SET updated_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("update attestation services: touch: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) DeleteAttestation(ctx context.Context, id string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM attestations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete attestation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("attestation %s not found", id)
	}
	return nil
}

func (s *PostgresStore) CreateAnalysis(ctx context.Context, a *models.Analysis) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("create analysis: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.QueryRow(ctx, `
		INSERT INTO analyses (user_id, name, file_path)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, a.UserID, a.Name, a.FilePath).Scan(&a.ID, &a.CreatedAt); err != nil {
		return "", fmt.Errorf("create analysis: %w", err)
	}

	if err := insertRequirements(ctx, tx, a.ID, a.Requirements); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("create analysis: commit: %w", err)
	}
	return a.ID, nil
}

func insertRequirements(ctx context.Context, tx pgx.Tx, analysisID string, reqs []models.Requirement) error {
	if _, err := tx.Exec(ctx, `DELETE FROM requirements WHERE analysis_id = $1`, analysisID); err != nil {
		return fmt.Errorf("replace requirements: delete: %w", err)
	}
	for i, r := range reqs {
		_, err := tx.Exec(ctx, `
			INSERT INTO requirements (analysis_id, position, code, description, required_quantity, unit, allow_sum, activity_tag, mandatory_terms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, analysisID, i, nullIfEmpty(r.Code), r.Description, r.RequiredQty, r.Unit, r.AllowSum, r.ActivityTag, r.MandatoryTerms)
		if err != nil {
			return fmt.Errorf("replace requirements: insert row %d: %w", i, err)
		}
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func loadRequirements(ctx context.Context, pool *pgxpool.Pool, analysisID string) ([]models.Requirement, error) {
	rows, err := pool.Query(ctx, `
		SELECT code, description, required_quantity, unit, allow_sum, activity_tag, mandatory_terms
		FROM requirements WHERE analysis_id = $1 ORDER BY position ASC
	`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("load requirements: %w", err)
	}
	defer rows.Close()

	var reqs []models.Requirement
	for rows.Next() {
		var r models.Requirement
		var code sql.NullString
		if err := rows.Scan(&code, &r.Description, &r.RequiredQty, &r.Unit, &r.AllowSum, &r.ActivityTag, &r.MandatoryTerms); err != nil {
			return nil, fmt.Errorf("scan requirement: %w", err)
		}
		if code.Valid {
			r.Code = code.String
		}
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, id string) (*models.Analysis, error) {
	a := &models.Analysis{}
	var resultJSON []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, name, file_path, result, created_at
		FROM analyses WHERE id = $1
	`, id).Scan(&a.ID, &a.UserID, &a.Name, &a.FilePath, &resultJSON, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	if len(resultJSON) > 0 {
		var result models.AnalysisResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("get analysis: decode result: %w", err)
		}
		a.Result = &result
	}

	reqs, err := loadRequirements(ctx, s.pool, id)
	if err != nil {
		return nil, err
	}
	a.Requirements = reqs
	return a, nil
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, ownerID string, limit int) ([]*models.Analysis, error) {
	query := `
		SELECT id, user_id, name, file_path, result, created_at
		FROM analyses WHERE user_id = $1 ORDER BY created_at DESC
	`
	args := []any{ownerID}
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $2"
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var out []*models.Analysis
	for rows.Next() {
		a := &models.Analysis{}
		var resultJSON []byte
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.FilePath, &resultJSON, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		if len(resultJSON) > 0 {
			var result models.AnalysisResult
			if err := json.Unmarshal(resultJSON, &result); err != nil {
				return nil, fmt.Errorf("scan analysis: decode result: %w", err)
			}
			a.Result = &result
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, a := range out {
		reqs, err := loadRequirements(ctx, s.pool, a.ID)
		if err != nil {
			return nil, err
		}
		a.Requirements = reqs
	}
	return out, nil
}

func (s *PostgresStore) SaveAnalysisResult(ctx context.Context, id string, result *models.AnalysisResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("save analysis result: encode: %w", err)
	}
	res, err := s.pool.Exec(ctx, `UPDATE analyses SET result = $2 WHERE id = $1`, id, payload)
	if err != nil {
		return fmt.Errorf("save analysis result: %w", err)
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("analysis %s not found", id)
	}
	return nil
}

func (s *PostgresStore) DeleteAnalysis(ctx context.Context, id string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM analyses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("analysis %s not found", id)
	}
	return nil
}
