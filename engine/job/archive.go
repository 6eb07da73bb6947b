package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/docuflow/engine/common/db"
	"github.com/docuflow/engine/common/logger"
)

// PostgresArchive writes terminal jobs through to Postgres. It is a
// persistence adapter only; the Manager's in-memory table remains the
// authority and the engine never reads jobs back from here.
type PostgresArchive struct {
	db  *db.DB
	log *logger.Logger
}

// NewPostgresArchive creates a Postgres-backed job archive
func NewPostgresArchive(database *db.DB, log *logger.Logger) *PostgresArchive {
	return &PostgresArchive{
		db:  database,
		log: log,
	}
}

// ArchiveJob upserts a terminal job
func (a *PostgresArchive) ArchiveJob(ctx context.Context, j *Job) error {
	var resultJSON []byte
	if j.Result != nil {
		var err error
		resultJSON, err = json.Marshal(j.Result)
		if err != nil {
			return fmt.Errorf("marshal job result: %w", err)
		}
	}

	_, err := a.db.Exec(ctx, `
		INSERT INTO job_archive (
			job_id, workflow_id, workflow_type, status, priority, owner_tag,
			result, error, created_at, started_at, completed_at, execution_time_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (job_id) DO UPDATE SET
			status = EXCLUDED.status,
			result = EXCLUDED.result,
			error = EXCLUDED.error,
			completed_at = EXCLUDED.completed_at,
			execution_time_ms = EXCLUDED.execution_time_ms
	`,
		j.ID, j.WorkflowID, string(j.WorkflowType), string(j.Status), string(j.Priority),
		j.Owner, resultJSON, j.Error, j.CreatedAt, j.StartedAt, j.CompletedAt, j.ExecutionTimeMS,
	)
	if err != nil {
		return fmt.Errorf("archive job %s: %w", j.ID, err)
	}

	a.log.Debug("job archived", "job_id", j.ID, "status", j.Status)
	return nil
}
