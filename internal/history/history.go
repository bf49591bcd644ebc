// Package history persists completed DownloadSummary rows for later
// querying. It is not a resume mechanism (resume-across-restart beyond a
// size-equality check is an explicit spec non-goal) — just a queryable
// log, grounded on the teacher's store.PersistentStore minus its
// Newznab/release-specific tables.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one completed (or failed) NZB job.
type Record struct {
	ID                  string
	Nzb                 string
	OutputDir           string
	Success             bool
	TotalSize           int64
	DownloadTimeSeconds float64
	AverageSpeedMbps    float64
	Par2Repaired        bool
	RarExtracted        bool
	FilesRenamed        int
	CreatedAt           time.Time
}

// Store wraps a CGo-free pure-Go sqlite database.
type Store struct {
	db *sql.DB
}

// Open connects to (and migrates) the sqlite database at path.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS downloads (
			id TEXT PRIMARY KEY,
			nzb TEXT NOT NULL,
			output_dir TEXT NOT NULL,
			success INTEGER NOT NULL,
			total_size INTEGER NOT NULL,
			download_time_seconds REAL NOT NULL,
			average_speed_mbps REAL NOT NULL,
			par2_repaired INTEGER NOT NULL,
			rar_extracted INTEGER NOT NULL,
			files_renamed INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		)
	`)
	return err
}

// Save inserts or replaces a completed job's record.
func (s *Store) Save(r Record) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO downloads
			(id, nzb, output_dir, success, total_size, download_time_seconds, average_speed_mbps, par2_repaired, rar_extracted, files_renamed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Nzb, r.OutputDir, r.Success, r.TotalSize, r.DownloadTimeSeconds, r.AverageSpeedMbps, r.Par2Repaired, r.RarExtracted, r.FilesRenamed, r.CreatedAt)
	return err
}

// List returns the most recent records, newest first.
func (s *Store) List(limit int) ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT id, nzb, output_dir, success, total_size, download_time_seconds, average_speed_mbps, par2_repaired, rar_extracted, files_renamed, created_at
		FROM downloads ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Nzb, &r.OutputDir, &r.Success, &r.TotalSize, &r.DownloadTimeSeconds, &r.AverageSpeedMbps, &r.Par2Repaired, &r.RarExtracted, &r.FilesRenamed, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }
