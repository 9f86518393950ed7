package repo

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

func Open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS preloaded_texts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		story_id TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		ctime INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS preloaded_paragraphs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		text_id INTEGER NOT NULL,
		content TEXT NOT NULL,
		position INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_preloaded_paragraphs_text ON preloaded_paragraphs (text_id, position)`,
}

func ApplyMigrations(db *sql.DB) error {
	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
