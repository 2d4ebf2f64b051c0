package store

type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations are applied in order; never edit one that has shipped.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create session bindings",
		SQL: `
			CREATE TABLE session_bindings (
				key         TEXT PRIMARY KEY,
				handle      TEXT NOT NULL,
				expires_at  INTEGER NOT NULL,
				created_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_session_bindings_expiry ON session_bindings (expires_at);
		`,
	},
}

func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
