package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vigil-dev/vigil/internal/models"
)

// ErrStorageUnavailable is returned when a history partition cannot be
// opened or created
var ErrStorageUnavailable = errors.New("history partition unavailable")

const schema = `
CREATE TABLE IF NOT EXISTS checks (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  checked_at TEXT NOT NULL,
  minute INTEGER NOT NULL UNIQUE ON CONFLICT REPLACE,
  status INTEGER NOT NULL,
  response_ms INTEGER,
  http_status INTEGER,
  message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_checks_checked_at ON checks(checked_at);
CREATE INDEX IF NOT EXISTS idx_checks_status ON checks(status);
`

// Store manages one SQLite history partition per monitor. Partitioning by
// monitor bounds the size of any single scan and lets retention run per
// monitor. The minute-bucket UNIQUE constraint keeps the latest result
// per minute when overlapping schedules fire more than once.
type Store struct {
	dir string

	mu  sync.Mutex
	dbs map[int]*sql.DB
}

// Filter narrows a history query
type Filter struct {
	Limit    int
	Offset   int
	Status   *int
	DateFrom *time.Time
	DateTo   *time.Time
}

// NewStore creates a store rooted at dir, creating it if needed
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return &Store{
		dir: dir,
		dbs: make(map[int]*sql.DB),
	}, nil
}

func (s *Store) partitionPath(monitorID int) string {
	return filepath.Join(s.dir, fmt.Sprintf("monitor_%d.db", monitorID))
}

// open returns the partition handle for a monitor. With create false it
// returns (nil, nil) when the partition file does not exist.
func (s *Store) open(monitorID int, create bool) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.dbs[monitorID]; ok {
		return db, nil
	}

	path := s.partitionPath(monitorID)
	if !create {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, nil
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	s.dbs[monitorID] = db
	return db, nil
}

// EnsurePartition creates the partition for a monitor if it does not
// exist. Idempotent.
func (s *Store) EnsurePartition(monitorID int) error {
	_, err := s.open(monitorID, true)
	return err
}

// Append inserts a check result into the monitor's partition, creating
// the partition on first use. A result in the same minute bucket replaces
// the existing row so overlapping probe schedules cannot accumulate
// duplicates.
func (s *Store) Append(monitorID int, r *models.CheckResult) error {
	db, err := s.open(monitorID, true)
	if err != nil {
		return err
	}

	_, err = db.Exec(
		`INSERT INTO checks (checked_at, minute, status, response_ms, http_status, message) VALUES (?, ?, ?, ?, ?, ?)`,
		formatTime(r.CheckedAt), r.MinuteBucket(), r.Status, nullableInt(r.ResponseTime), nullableInt(r.HTTPStatus), r.Message,
	)
	if err != nil {
		return fmt.Errorf("append check for monitor %d: %w", monitorID, err)
	}
	return nil
}

// Query returns a page of check results ordered newest-first. A missing
// partition yields an empty result, not an error.
func (s *Store) Query(monitorID int, f Filter) ([]models.CheckResult, error) {
	db, err := s.open(monitorID, false)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, nil
	}

	query := `SELECT checked_at, status, response_ms, http_status, message FROM checks WHERE 1=1`
	args := []interface{}{}

	if f.Status != nil {
		query += ` AND status = ?`
		args = append(args, *f.Status)
	}
	if f.DateFrom != nil {
		query += ` AND checked_at >= ?`
		args = append(args, formatTime(*f.DateFrom))
	}
	if f.DateTo != nil {
		query += ` AND checked_at <= ?`
		args = append(args, formatTime(*f.DateTo))
	}

	query += ` ORDER BY checked_at DESC`

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, f.Offset)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history for monitor %d: %w", monitorID, err)
	}
	defer rows.Close()

	var results []models.CheckResult
	for rows.Next() {
		r, err := scanCheck(rows, monitorID)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}

// Latest returns the most recent check result, or nil when the partition
// is missing or empty
func (s *Store) Latest(monitorID int) (*models.CheckResult, error) {
	results, err := s.Query(monitorID, Filter{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}

// Cleanup deletes check results older than daysToKeep days and returns
// the number of rows removed. Safe to run alongside Append; the exact
// boundary row may race, which is acceptable.
func (s *Store) Cleanup(monitorID int, daysToKeep int) (int64, error) {
	db, err := s.open(monitorID, false)
	if err != nil {
		return 0, err
	}
	if db == nil {
		return 0, nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -daysToKeep)
	res, err := db.Exec(`DELETE FROM checks WHERE checked_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("cleanup history for monitor %d: %w", monitorID, err)
	}
	return res.RowsAffected()
}

// CountsSince returns the number of up and total check results since the
// given time. Missing partition counts as zero data.
func (s *Store) CountsSince(monitorID int, since time.Time) (up, total int, err error) {
	db, err := s.open(monitorID, false)
	if err != nil {
		return 0, 0, err
	}
	if db == nil {
		return 0, 0, nil
	}

	err = db.QueryRow(
		`SELECT COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0), COUNT(*) FROM checks WHERE checked_at >= ?`,
		models.StatusUp, formatTime(since),
	).Scan(&up, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("count history for monitor %d: %w", monitorID, err)
	}
	return up, total, nil
}

// ResponseTimesSince returns all non-null response times since the given
// time, sorted ascending
func (s *Store) ResponseTimesSince(monitorID int, since time.Time) ([]int, error) {
	db, err := s.open(monitorID, false)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, nil
	}

	rows, err := db.Query(
		`SELECT response_ms FROM checks WHERE checked_at >= ? AND response_ms IS NOT NULL ORDER BY response_ms ASC`,
		formatTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("response times for monitor %d: %w", monitorID, err)
	}
	defer rows.Close()

	var times []int
	for rows.Next() {
		var ms int
		if err := rows.Scan(&ms); err != nil {
			return nil, err
		}
		times = append(times, ms)
	}
	return times, rows.Err()
}

// Drop closes and removes a monitor's partition, used when the monitor
// itself is deleted
func (s *Store) Drop(monitorID int) error {
	s.mu.Lock()
	if db, ok := s.dbs[monitorID]; ok {
		db.Close()
		delete(s.dbs, monitorID)
	}
	s.mu.Unlock()

	path := s.partitionPath(monitorID)
	for _, f := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("drop partition for monitor %d: %w", monitorID, err)
		}
	}
	return nil
}

// Vacuum compacts a monitor's partition after large deletes
func (s *Store) Vacuum(monitorID int) error {
	db, err := s.open(monitorID, false)
	if err != nil || db == nil {
		return err
	}
	_, err = db.Exec("VACUUM")
	return err
}

// Close closes all open partition handles
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, db := range s.dbs {
		db.Close()
		delete(s.dbs, id)
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCheck(row rowScanner, monitorID int) (*models.CheckResult, error) {
	var (
		checkedAt  string
		status     int
		responseMs sql.NullInt64
		httpStatus sql.NullInt64
		message    string
	)
	if err := row.Scan(&checkedAt, &status, &responseMs, &httpStatus, &message); err != nil {
		return nil, err
	}

	t, err := time.Parse(time.RFC3339, checkedAt)
	if err != nil {
		return nil, fmt.Errorf("bad timestamp %q in partition %d: %w", checkedAt, monitorID, err)
	}

	r := &models.CheckResult{
		MonitorID: monitorID,
		Status:    status,
		Message:   message,
		CheckedAt: t,
	}
	if responseMs.Valid {
		v := int(responseMs.Int64)
		r.ResponseTime = &v
	}
	if httpStatus.Valid {
		v := int(httpStatus.Int64)
		r.HTTPStatus = &v
	}
	return r, nil
}

// formatTime renders a UTC RFC3339 timestamp; fixed-width so string
// comparison in SQL matches time ordering
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
