package jobstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/rezkam/inference-engine/internal/domain"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// terminalStatuses is the set of statuses a non-cancel write must not
// overwrite, enforced with a conditional WHERE clause.
var terminalStatuses = []domain.JobStatus{
	domain.JobSucceeded, domain.JobFailed, domain.JobCancelled, domain.JobTimeout,
}

// DBConfig holds PostgreSQL connection pool configuration, mirroring the
// teacher's sqlstorage.DBConfig shape.
type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// PostgresStore is the Store implementation backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool against cfg.DSN, verifies it,
// runs pending goose migrations, and returns a ready PostgresStore.
func NewPostgresStore(ctx context.Context, cfg DBConfig) (*PostgresStore, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("jobstore: opening database: %w", err)
	}

	maxOpenConns := cfg.MaxOpenConns
	if maxOpenConns <= 0 {
		maxOpenConns = 25
	}
	maxIdleConns := cfg.MaxIdleConns
	if maxIdleConns <= 0 {
		maxIdleConns = 5
	}
	connMaxLifetime := cfg.ConnMaxLifetime
	if connMaxLifetime <= 0 {
		connMaxLifetime = 5 * time.Minute
	}
	connMaxIdleTime := cfg.ConnMaxIdleTime
	if connMaxIdleTime <= 0 {
		connMaxIdleTime = time.Minute
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("jobstore: pinging database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("jobstore: running migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	goose.SetBaseFS(embedMigrations)
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

// Ready pings the database, used by the /ready handler to distinguish a
// live-but-unready process from one that can actually serve traffic.
func (s *PostgresStore) Ready(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("jobstore: readiness ping failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, job *domain.Job) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (
			id, model_name, model_version, payload, device, status, created_at,
			started_at, finished_at, result, error_type, error_message,
			attempt_count, max_attempts, last_attempt_at, last_retry_reason,
			max_runtime_s, max_total_runtime_s, cancellable
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		job.ID, job.ModelName, job.ModelVersion, job.Payload, job.Device, job.Status, job.CreatedAt,
		job.StartedAt, job.FinishedAt, nullableJSON(job.Result), nullableStr(job.ErrorType), nullableStr(job.ErrorMessage),
		job.AttemptCount, job.MaxAttempts, job.LastAttemptAt, nullableStr(job.LastRetryReason),
		job.MaxRuntimeS, job.MaxTotalRuntimeS, job.Cancellable,
	)
	if err != nil {
		return fmt.Errorf("jobstore: inserting job %s: %w", job.ID, wrapPQError(err))
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, model_name, model_version, payload, device, status, created_at,
		       started_at, finished_at, result, error_type, error_message,
		       attempt_count, max_attempts, last_attempt_at, last_retry_reason,
		       max_runtime_s, max_total_runtime_s, cancellable
		FROM jobs WHERE id = $1`, id)

	var job domain.Job
	var errType, errMsg, retryReason sql.NullString
	var result []byte
	if err := row.Scan(
		&job.ID, &job.ModelName, &job.ModelVersion, &job.Payload, &job.Device, &job.Status, &job.CreatedAt,
		&job.StartedAt, &job.FinishedAt, &result, &errType, &errMsg,
		&job.AttemptCount, &job.MaxAttempts, &job.LastAttemptAt, &retryReason,
		&job.MaxRuntimeS, &job.MaxTotalRuntimeS, &job.Cancellable,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("jobstore: fetching job %s: %w", id, err)
	}
	job.Result = result
	job.ErrorType = errType.String
	job.ErrorMessage = errMsg.String
	job.LastRetryReason = retryReason.String
	return &job, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status domain.JobStatus, startedAt, finishedAt *time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1,
		    started_at = COALESCE($2, started_at),
		    finished_at = COALESCE($3, finished_at)
		WHERE id = $4 AND status NOT IN (`+terminalPlaceholders(5)+`)`,
		status, startedAt, finishedAt, id,
	)
	if err != nil {
		return fmt.Errorf("jobstore: updating status for %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) UpdateResult(ctx context.Context, id string, result []byte, finishedAt time.Time) error {
	return s.terminalUpdate(ctx, id, `
		UPDATE jobs SET result = $1, finished_at = $2, status = $3
		WHERE id = $4 AND status NOT IN (`+terminalPlaceholders(4)+`)`,
		result, finishedAt, domain.JobSucceeded, id)
}

func (s *PostgresStore) UpdateError(ctx context.Context, id string, errType, errMsg string, finishedAt time.Time) error {
	return s.terminalUpdate(ctx, id, `
		UPDATE jobs SET error_type = $1, error_message = $2, finished_at = $3, status = $4
		WHERE id = $5 AND status NOT IN (`+terminalPlaceholders(5)+`)`,
		errType, errMsg, finishedAt, domain.JobFailed, id)
}

func (s *PostgresStore) UpdateTimeout(ctx context.Context, id string, errType, errMsg string, finishedAt time.Time) error {
	return s.terminalUpdate(ctx, id, `
		UPDATE jobs SET error_type = $1, error_message = $2, finished_at = $3, status = $4
		WHERE id = $5 AND status NOT IN (`+terminalPlaceholders(5)+`)`,
		errType, errMsg, finishedAt, domain.JobTimeout, id)
}

func (s *PostgresStore) UpdateRetryMetadata(ctx context.Context, id string, attemptCount int, lastAttemptAt time.Time, lastRetryReason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET attempt_count = $1, last_attempt_at = $2, last_retry_reason = $3
		WHERE id = $4`,
		attemptCount, lastAttemptAt, nullableStr(lastRetryReason), id,
	)
	if err != nil {
		return fmt.Errorf("jobstore: updating retry metadata for %s: %w", id, err)
	}
	return nil
}

// Cancel uses a dedicated unconditional path that forces CANCELLED even
// over another terminal state, per the store contract's cancel exception.
func (s *PostgresStore) Cancel(ctx context.Context, id string, errType, errMsg string, finishedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET error_type = $1, error_message = $2, finished_at = $3, status = $4
		WHERE id = $5`,
		errType, errMsg, finishedAt, domain.JobCancelled, id,
	)
	if err != nil {
		return fmt.Errorf("jobstore: cancelling %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) terminalUpdate(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("jobstore: updating %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Either the job doesn't exist or it already reached a terminal
		// state; a prior read is required to tell these apart, so the
		// caller re-fetches rather than treating this as an error here.
		return nil
	}
	return nil
}

func terminalPlaceholders(startIndex int) string {
	out := ""
	for i, s := range terminalStatuses {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("'%s'", string(s))
	}
	_ = startIndex
	return out
}

func nullableStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// wrapPQError surfaces the Postgres error code for callers that want to
// distinguish constraint violations (e.g. duplicate job id) from other
// failures, mirroring the teacher's pq.Error-code inspection.
func wrapPQError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%s (code %s)", pqErr.Message, pqErr.Code)
	}
	return err
}
