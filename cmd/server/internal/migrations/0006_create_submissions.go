package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0006, Down0006)
}

func Up0006(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `
CREATE TABLE submissions (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    team_id UUID NOT NULL REFERENCES teams (id),
    task_id UUID NOT NULL REFERENCES tasks (id),
    status TEXT NOT NULL,
    evidence_url TEXT,
    artifact_ref TEXT,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp
);
`},
		statement{
			query: `CREATE UNIQUE INDEX idx_submissions_team_task ON submissions (team_id, task_id);`,
		},
		statement{query: `CREATE INDEX idx_submissions_status ON submissions (status);`},
		statement{query: `
CREATE TRIGGER touch_submissions_updated_at
BEFORE UPDATE ON submissions
FOR EACH ROW EXECUTE FUNCTION touch_updated_at();
`},
	)
}

func Down0006(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE submissions;`)
	return err
}
