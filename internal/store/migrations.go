package store

type migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "create installs",
		SQL: `
			CREATE TABLE installs (
				id            TEXT PRIMARY KEY,
				name          TEXT NOT NULL,
				version       TEXT NOT NULL DEFAULT '',
				protocol      INTEGER NOT NULL DEFAULT 0,
				source_kind   TEXT NOT NULL,
				source        TEXT NOT NULL,
				revision      TEXT NOT NULL DEFAULT '',
				library_path  TEXT NOT NULL,
				installed_at  TEXT NOT NULL,
				updated_at    TEXT NOT NULL
			);

			CREATE UNIQUE INDEX idx_installs_name ON installs (name);
			CREATE INDEX idx_installs_path ON installs (library_path);
		`,
	},
	{
		Version: 2,
		Name:    "create install events",
		SQL: `
			CREATE TABLE install_events (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				name        TEXT NOT NULL,
				action      TEXT NOT NULL,
				detail      TEXT NOT NULL DEFAULT '',
				at          TEXT NOT NULL
			);

			CREATE INDEX idx_install_events_name ON install_events (name, id);
		`,
	},
}
