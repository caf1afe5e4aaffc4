package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0003, Down0003)
}

func Up0003(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `
CREATE TABLE auth (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    token TEXT NOT NULL,
    note TEXT NOT NULL,
    permissions JSONB NOT NULL DEFAULT '{}'::jsonb,
    active BOOLEAN,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp
);
`},
		statement{query: `
CREATE TRIGGER touch_auth_updated_at
BEFORE UPDATE ON auth
FOR EACH ROW EXECUTE FUNCTION touch_updated_at();
`},
	)
}

func Down0003(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE auth;`)
	return err
}
