package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DB is the global database connection
var DB *sqlx.DB

// Connect establishes a connection to the database. DB_TYPE selects the
// driver: "postgres" connects with DATABASE_URL, anything else uses a local
// sqlite file under data/.
func Connect() error {
	dbType := os.Getenv("DB_TYPE")

	if dbType == "postgres" {
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			return fmt.Errorf("DATABASE_URL is not set")
		}
		db, err := sqlx.Connect("postgres", dsn)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %v", err)
		}
		DB = db
		// Postgres schema is managed by external migrations
		return nil
	}

	// Create data directory if it doesn't exist
	dataDir := "data"
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %v", err)
	}

	dbPath := filepath.Join(dataDir, "phonobot.db")
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %v", err)
	}

	// SQLite doesn't support multiple writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	DB = db

	return initializeSchema()
}

// Close closes the database connection
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema() error {
	statements := []struct {
		name  string
		query string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				username TEXT,
				first_name TEXT,
				last_name TEXT,
				telegram_chat_id INTEGER DEFAULT 0,
				notification_enabled BOOLEAN DEFAULT true,
				notification_hour INTEGER DEFAULT 9,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)
		`},
		{"knowledge_components", `
			CREATE TABLE IF NOT EXISTS knowledge_components (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				code TEXT NOT NULL UNIQUE,
				category TEXT NOT NULL,
				stage TEXT NOT NULL,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)
		`},
		{"candidate_items", `
			CREATE TABLE IF NOT EXISTS candidate_items (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				kc_id INTEGER NOT NULL,
				position INTEGER NOT NULL,
				display TEXT NOT NULL,
				audio_url TEXT DEFAULT '',
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (kc_id) REFERENCES knowledge_components(id),
				UNIQUE(kc_id, position)
			)
		`},
		{"mastery_records", `
			CREATE TABLE IF NOT EXISTS mastery_records (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				kc_id INTEGER NOT NULL,
				p_learn REAL NOT NULL,
				p_transit REAL NOT NULL,
				p_guess REAL NOT NULL,
				p_slip REAL NOT NULL,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (user_id) REFERENCES users(id),
				FOREIGN KEY (kc_id) REFERENCES knowledge_components(id)
			)
		`},
		{"candidate_masks", `
			CREATE TABLE IF NOT EXISTS candidate_masks (
				user_id INTEGER NOT NULL,
				kc_id INTEGER NOT NULL,
				mask INTEGER NOT NULL DEFAULT 0,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (user_id, kc_id),
				FOREIGN KEY (user_id) REFERENCES users(id),
				FOREIGN KEY (kc_id) REFERENCES knowledge_components(id)
			)
		`},
		{"stage_sessions", `
			CREATE TABLE IF NOT EXISTS stage_sessions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				stage TEXT NOT NULL,
				total_problems INTEGER NOT NULL,
				correct_count INTEGER DEFAULT 0,
				try_count INTEGER DEFAULT 0,
				started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (user_id) REFERENCES users(id)
			)
		`},
		{"stage_attempts", `
			CREATE TABLE IF NOT EXISTS stage_attempts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				stage_session_id INTEGER NOT NULL,
				problem_number INTEGER NOT NULL,
				problem_content TEXT NOT NULL,
				answer TEXT,
				attempt_number INTEGER DEFAULT 1,
				is_correct BOOLEAN DEFAULT false,
				is_reply_correct BOOLEAN DEFAULT false,
				audio_url TEXT DEFAULT '',
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (stage_session_id) REFERENCES stage_sessions(id)
			)
		`},
	}

	for _, s := range statements {
		if _, err := DB.Exec(s.query); err != nil {
			return fmt.Errorf("failed to create %s table: %v", s.name, err)
		}
	}

	return nil
}
