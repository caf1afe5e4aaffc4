package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0007, Down0007)
}

func Up0007(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `
CREATE TABLE game_session (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    active_location INTEGER NOT NULL DEFAULT 0,
    leaderboard_visible BOOLEAN NOT NULL DEFAULT true,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp
);
`},
		statement{query: `
CREATE TRIGGER touch_game_session_updated_at
BEFORE UPDATE ON game_session
FOR EACH ROW EXECUTE FUNCTION touch_updated_at();
`},
		// seed the singleton row so first boot has state to read
		statement{query: `INSERT INTO game_session DEFAULT VALUES;`},
	)
}

func Down0007(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE game_session;`)
	return err
}
