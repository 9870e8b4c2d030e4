package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
//
// uid is deliberately NOT a primary key: ingestion dedups on the full
// (uid, thread, date, sender, body) tuple, so a message re-fetched with
// changed content inserts a second row for the same uid.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS mails (
	uid       INTEGER NOT NULL,
	thread    TEXT NOT NULL DEFAULT '',
	date      TEXT NOT NULL DEFAULT '',
	sender    TEXT NOT NULL DEFAULT '',
	body      TEXT NOT NULL,
	delivered INTEGER NOT NULL DEFAULT 0 CHECK(delivered IN (0, 1))
);

CREATE INDEX IF NOT EXISTS idx_mails_uid ON mails(uid);
CREATE INDEX IF NOT EXISTS idx_mails_delivered ON mails(delivered);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
