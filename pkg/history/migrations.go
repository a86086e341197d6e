package history

// migrations is the ordered list of SQL migration statements.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS scans (
		barcode TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		product TEXT NOT NULL,
		analysis TEXT,
		scanned_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scans_seq ON scans(seq)`,
	`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	)`,
	`INSERT OR IGNORE INTO schema_version (version) VALUES (1)`,
}
