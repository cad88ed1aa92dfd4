package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Users table - profile data keyed by the identity provider's user id
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'user',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		// Sessions table - seq keeps insertion order for equal start times
		`CREATE TABLE IF NOT EXISTS sessions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			start_time INTEGER NOT NULL,
			end_time INTEGER,
			is_active INTEGER NOT NULL DEFAULT 1,
			gesture_count INTEGER NOT NULL DEFAULT 0,
			duration_seconds REAL
		)`,

		// Predictions table - append-only log, session_id is a weak reference
		`CREATE TABLE IF NOT EXISTS predictions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL DEFAULT '',
			label TEXT NOT NULL,
			confidence REAL NOT NULL,
			class_id INTEGER,
			degraded INTEGER NOT NULL DEFAULT 0,
			timestamp INTEGER NOT NULL,
			landmarks TEXT,
			metadata TEXT
		)`,

		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_user ON predictions(user_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_timestamp ON predictions(timestamp)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
