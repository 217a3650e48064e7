package dashboard

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// snapshotSchemaVersion is bumped when the table layout changes; older
// snapshots are discarded.
const snapshotSchemaVersion = 1

// snapshotTimeLayout is fixed width so last_updated sorts lexically.
const snapshotTimeLayout = "2006-01-02T15:04:05.000000000Z"

// Snapshot persists the last known dashboard state in SQLite.
type Snapshot struct {
	db   *sql.DB
	path string
}

// OpenSnapshot opens or creates the snapshot database at path.
func OpenSnapshot(path string) (*Snapshot, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := createSnapshotSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Snapshot{db: db, path: path}, nil
}

func createSnapshotSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS metadata (key TEXT PRIMARY KEY, value TEXT)`)
	if err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'")
	if err := row.Scan(&currentVersion); err != nil {
		currentVersion = 0
	}

	if currentVersion < snapshotSchemaVersion {
		log.Info().
			Int("old_version", currentVersion).
			Int("new_version", snapshotSchemaVersion).
			Msg("snapshot schema changed, discarding stored conversations")
		_, _ = db.Exec("DROP TABLE IF EXISTS conversations")
	}

	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			messages TEXT,
			last_updated TEXT,
			unread_count INTEGER,
			active INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_conversations_last_updated ON conversations(last_updated DESC);
	`
	if _, err := db.Exec(schema); err != nil {
		return err
	}

	_, err = db.Exec("INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)", snapshotSchemaVersion)
	return err
}

// Path returns the database file path.
func (s *Snapshot) Path() string {
	return s.path
}

// Save replaces the stored state with convs and status.
func (s *Snapshot) Save(convs []Conversation, status SystemStatus) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM conversations"); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO conversations
		(id, user_id, messages, last_updated, unread_count, active)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, c := range convs {
		msgs, err := json.Marshal(c.Messages)
		if err != nil {
			return fmt.Errorf("encode messages for %s: %w", c.ID, err)
		}
		active := 0
		if c.Active {
			active = 1
		}
		if _, err := stmt.Exec(c.ID, c.UserID, string(msgs), c.LastUpdated.UTC().Format(snapshotTimeLayout), c.UnreadCount, active); err != nil {
			return err
		}
	}

	statusJSON, err := json.Marshal(status)
	if err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT OR REPLACE INTO metadata (key, value) VALUES ('system_status', ?)", string(statusJSON)); err != nil {
		return err
	}

	return tx.Commit()
}

// SaveStore writes the current contents of store.
func (s *Snapshot) SaveStore(store *Store) error {
	return s.Save(store.Conversations(), store.Status())
}

// Load returns the stored conversations, newest first, and system status.
func (s *Snapshot) Load() ([]Conversation, SystemStatus, error) {
	var status SystemStatus

	rows, err := s.db.Query(`SELECT id, user_id, messages, last_updated, unread_count, active
		FROM conversations ORDER BY last_updated DESC`)
	if err != nil {
		return nil, status, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		var (
			c        Conversation
			msgs, ts string
			active   int
		)
		if err := rows.Scan(&c.ID, &c.UserID, &msgs, &ts, &c.UnreadCount, &active); err != nil {
			return nil, status, err
		}
		if err := json.Unmarshal([]byte(msgs), &c.Messages); err != nil {
			return nil, status, fmt.Errorf("decode messages for %s: %w", c.ID, err)
		}
		if c.LastUpdated, err = time.Parse(snapshotTimeLayout, ts); err != nil {
			return nil, status, fmt.Errorf("parse last_updated for %s: %w", c.ID, err)
		}
		c.Active = active != 0
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, status, err
	}

	var statusJSON string
	row := s.db.QueryRow("SELECT value FROM metadata WHERE key = 'system_status'")
	if err := row.Scan(&statusJSON); err == nil {
		if err := json.Unmarshal([]byte(statusJSON), &status); err != nil {
			return nil, status, fmt.Errorf("decode system status: %w", err)
		}
	} else if err != sql.ErrNoRows {
		return nil, status, err
	}

	return convs, status, nil
}

// Close closes the database.
func (s *Snapshot) Close() error {
	return s.db.Close()
}
