package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0004, Down0004)
}

func Up0004(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `
CREATE TABLE teams (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    name TEXT NOT NULL UNIQUE,
    points INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp
);
`},
		statement{query: `
CREATE TRIGGER touch_teams_updated_at
BEFORE UPDATE ON teams
FOR EACH ROW EXECUTE FUNCTION touch_updated_at();
`},
		statement{query: `
CREATE TABLE members (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    platform_user_id TEXT NOT NULL UNIQUE,
    team_id UUID NOT NULL REFERENCES teams (id),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp
);
`},
		statement{query: `CREATE INDEX idx_members_team_id ON members (team_id);`},
		statement{query: `
CREATE TRIGGER touch_members_updated_at
BEFORE UPDATE ON members
FOR EACH ROW EXECUTE FUNCTION touch_updated_at();
`},
	)
}

func Down0004(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `DROP TABLE members;`},
		statement{query: `DROP TABLE teams;`},
	)
}
