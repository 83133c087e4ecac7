package repository

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		handle     TEXT    NOT NULL UNIQUE,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id          INTEGER PRIMARY KEY,
		kind        TEXT    NOT NULL,
		title       TEXT    NOT NULL DEFAULT '',
		repo_url    TEXT    NOT NULL,
		rubric_json TEXT,
		time_limit  INTEGER NOT NULL DEFAULT 0,
		description TEXT    NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS attempts (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id     INTEGER NOT NULL REFERENCES users(id),
		ticket_id   INTEGER NOT NULL REFERENCES tickets(id),
		started_at  INTEGER NOT NULL,
		finished_at INTEGER,
		status      TEXT    NOT NULL,
		repo_path   TEXT    NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attempts_user_status ON attempts(user_id, status)`,
	`CREATE TABLE IF NOT EXISTS metrics (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		attempt_id INTEGER NOT NULL REFERENCES attempts(id),
		key        TEXT    NOT NULL,
		value      REAL    NOT NULL,
		extra      TEXT,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_metrics_attempt ON metrics(attempt_id)`,
	`CREATE TABLE IF NOT EXISTS artifacts (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		attempt_id INTEGER NOT NULL REFERENCES attempts(id),
		kind       TEXT    NOT NULL,
		url        TEXT    NOT NULL DEFAULT '',
		note       TEXT    NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS signals (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id       INTEGER NOT NULL REFERENCES users(id),
		snapshot_json TEXT    NOT NULL,
		created_at    INTEGER NOT NULL
	)`,
}
