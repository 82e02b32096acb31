package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func New(dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("database connected")
	return pool, nil
}

// RunMigrations applies the schema in order. Every statement is
// idempotent (IF NOT EXISTS / ADD COLUMN IF NOT EXISTS) so this is safe to
// run on every startup.
func RunMigrations(pool *pgxpool.Pool) error {
	ctx := context.Background()

	migrations := []struct {
		name string
		sql  string
	}{
		{
			name: "create_users",
			sql: `CREATE TABLE IF NOT EXISTS users (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				email VARCHAR(255) UNIQUE NOT NULL,
				password_hash VARCHAR(255) NOT NULL,
				display_name VARCHAR(255) NOT NULL DEFAULT '',
				is_admin BOOLEAN NOT NULL DEFAULT FALSE,
				is_approved BOOLEAN NOT NULL DEFAULT FALSE,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				approved_by UUID REFERENCES users(id),
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			);
			CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);`,
		},
		{
			name: "create_jobs",
			sql: `CREATE TABLE IF NOT EXISTS jobs (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				type VARCHAR(32) NOT NULL,
				file_path TEXT NOT NULL,
				original_filename VARCHAR(255) NOT NULL,
				status VARCHAR(16) NOT NULL DEFAULT 'pending',
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				started_at TIMESTAMPTZ,
				completed_at TIMESTAMPTZ,
				canceled_at TIMESTAMPTZ,
				result_attestation_id UUID,
				result_analysis_id UUID,
				error TEXT NOT NULL DEFAULT '',
				error_code VARCHAR(64) NOT NULL DEFAULT '',
				attempts INTEGER NOT NULL DEFAULT 0,
				max_attempts INTEGER NOT NULL DEFAULT 3,
				progress_current INTEGER NOT NULL DEFAULT 0,
				progress_total INTEGER NOT NULL DEFAULT 0,
				progress_stage VARCHAR(32) NOT NULL DEFAULT '',
				progress_message TEXT NOT NULL DEFAULT '',
				progress_pipeline VARCHAR(32) NOT NULL DEFAULT '',
				cancel_requested BOOLEAN NOT NULL DEFAULT FALSE,
				worker_id VARCHAR(64) NOT NULL DEFAULT ''
			);
			CREATE INDEX IF NOT EXISTS idx_jobs_user_id ON jobs(user_id);
			CREATE INDEX IF NOT EXISTS idx_jobs_claim ON jobs(status, created_at, id) WHERE status = 'pending';`,
		},
		{
			name: "create_attestations",
			sql: `CREATE TABLE IF NOT EXISTS attestations (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				issuer VARCHAR(255) NOT NULL DEFAULT '',
				issue_date TIMESTAMPTZ,
				file_path TEXT NOT NULL,
				ocr_text TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			);
			CREATE INDEX IF NOT EXISTS idx_attestations_user_id ON attestations(user_id);`,
		},
		{
			name: "create_attestation_services",
			sql: `CREATE TABLE IF NOT EXISTS attestation_services (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				attestation_id UUID NOT NULL REFERENCES attestations(id) ON DELETE CASCADE,
				position INTEGER NOT NULL,
				item_code VARCHAR(64),
				description TEXT NOT NULL,
				quantity DOUBLE PRECISION,
				unit VARCHAR(32) NOT NULL DEFAULT ''
			);
			CREATE INDEX IF NOT EXISTS idx_attestation_services_attestation_id ON attestation_services(attestation_id);`,
		},
		{
			name: "create_analyses",
			sql: `CREATE TABLE IF NOT EXISTS analyses (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				name VARCHAR(255) NOT NULL DEFAULT '',
				file_path TEXT NOT NULL,
				result JSONB,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			);
			CREATE INDEX IF NOT EXISTS idx_analyses_user_id ON analyses(user_id);`,
		},
		{
			name: "create_requirements",
			sql: `CREATE TABLE IF NOT EXISTS requirements (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				analysis_id UUID NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
				position INTEGER NOT NULL,
				code VARCHAR(64),
				description TEXT NOT NULL,
				required_quantity DOUBLE PRECISION NOT NULL,
				unit VARCHAR(32) NOT NULL,
				allow_sum BOOLEAN,
				activity_tag VARCHAR(64) NOT NULL DEFAULT '',
				mandatory_terms TEXT[] NOT NULL DEFAULT '{}'
			);
			CREATE INDEX IF NOT EXISTS idx_requirements_analysis_id ON requirements(analysis_id);`,
		},
	}

	for _, m := range migrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.name, err)
		}
		slog.Info("migration applied", "name", m.name)
	}

	return nil
}
