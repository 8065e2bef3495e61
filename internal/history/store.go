// Package history provides SQLite-backed storage for iteration records
// and learnings, with an in-memory ring of recent records for
// low-latency access. The database lives at .overseer/history.db by
// default (project-local) or under XDG data for the global store.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/overseer-dev/overseer/pkg/models"

	_ "modernc.org/sqlite"
)

// DefaultRingSize is how many recent records are kept in memory.
const DefaultRingSize = 100

// GlobalDBPath returns the path to the global overseer database.
func GlobalDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "overseer", "history.db")
}

// ProjectDBPath returns the path to the project-local database.
func ProjectDBPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".overseer", "history.db")
}

// Store persists iteration records and learnings.
type Store struct {
	conn *sql.DB
	path string

	// recent is a bounded ring of the newest records, newest last.
	recent   []*models.IterationRecord
	ringSize int
	// nextID is the next iteration id to hand out.
	nextID int64

	mu sync.RWMutex
}

// Open opens the store at the given path, creating parent directories
// and applying schema migrations. WAL mode is enabled for concurrent
// reads. The in-memory ring is warmed from the newest persisted rows.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{
		conn:     conn,
		path:     path,
		ringSize: DefaultRingSize,
	}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	if err := s.warm(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Path returns the path to the database file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, `
			CREATE TABLE IF NOT EXISTS iterations (
				id INTEGER PRIMARY KEY,
				phase TEXT NOT NULL,
				pre_processing TEXT,
				decision TEXT,
				execution TEXT,
				next_prep TEXT,
				error_phase TEXT,
				error_message TEXT,
				error_at DATETIME,
				created_at DATETIME NOT NULL
			)
		`},
		{2, `
			CREATE TABLE IF NOT EXISTS learnings (
				id TEXT PRIMARY KEY,
				kind TEXT NOT NULL,
				content TEXT NOT NULL,
				iteration_id INTEGER NOT NULL,
				created_at DATETIME NOT NULL
			)
		`},
		{3, `
			CREATE TABLE IF NOT EXISTS metrics (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				value REAL NOT NULL,
				recorded_at DATETIME NOT NULL
			)
		`},
		{4, `
			CREATE INDEX IF NOT EXISTS idx_learnings_iteration
			ON learnings(iteration_id)
		`},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.conn.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := s.conn.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

// warm loads the newest persisted records into the ring and seeds the
// id counter past the highest stored id.
func (s *Store) warm() error {
	var maxID sql.NullInt64
	row := s.conn.QueryRow("SELECT MAX(id) FROM iterations")
	if err := row.Scan(&maxID); err != nil {
		return fmt.Errorf("read max iteration id: %w", err)
	}
	if maxID.Valid {
		s.nextID = maxID.Int64 + 1
	} else {
		s.nextID = 1
	}

	rows, err := s.conn.Query(`
		SELECT id, phase, pre_processing, decision, execution, next_prep,
		       error_phase, error_message, error_at, created_at
		FROM iterations ORDER BY id DESC LIMIT ?
	`, s.ringSize)
	if err != nil {
		return fmt.Errorf("load recent iterations: %w", err)
	}
	defer rows.Close()

	var recs []*models.IterationRecord
	for rows.Next() {
		rec, err := scanIteration(rows)
		if err != nil {
			return err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate recent iterations: %w", err)
	}

	// Query returned newest first; the ring keeps newest last.
	for i := len(recs) - 1; i >= 0; i-- {
		s.recent = append(s.recent, recs[i])
	}
	return nil
}

// NextID hands out the next iteration id. Ids increase monotonically
// and are never reused, even across restarts.
func (s *Store) NextID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	return id
}

// Append persists a finalized iteration record and pushes it into the
// in-memory ring. A persistence failure is returned for logging but the
// ring is updated regardless, so in-memory queries keep working.
func (s *Store) Append(rec *models.IterationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recent = append(s.recent, rec)
	if len(s.recent) > s.ringSize {
		s.recent = s.recent[len(s.recent)-s.ringSize:]
	}
	if rec.ID >= s.nextID {
		s.nextID = rec.ID + 1
	}

	pre, err := marshalPayload(rec.PreProcessing)
	if err != nil {
		return err
	}
	dec, err := marshalPayload(rec.Decision)
	if err != nil {
		return err
	}
	exe, err := marshalPayload(rec.Execution)
	if err != nil {
		return err
	}
	prep, err := marshalPayload(rec.NextPrep)
	if err != nil {
		return err
	}

	var errPhase, errMsg sql.NullString
	var errAt sql.NullTime
	if rec.ErrorInfo != nil {
		errPhase = sql.NullString{String: string(rec.ErrorInfo.Phase), Valid: true}
		errMsg = sql.NullString{String: rec.ErrorInfo.Message, Valid: true}
		errAt = sql.NullTime{Time: rec.ErrorInfo.Timestamp, Valid: true}
	}

	_, err = s.conn.Exec(`
		INSERT INTO iterations
			(id, phase, pre_processing, decision, execution, next_prep,
			 error_phase, error_message, error_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, string(rec.Phase), pre, dec, exe, prep, errPhase, errMsg, errAt, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("persist iteration %d: %w", rec.ID, err)
	}
	return nil
}

// Recent returns up to n of the newest records, newest first, from the
// in-memory ring.
func (s *Store) Recent(n int) []*models.IterationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > len(s.recent) {
		n = len(s.recent)
	}
	out := make([]*models.IterationRecord, 0, n)
	for i := len(s.recent) - 1; i >= len(s.recent)-n; i-- {
		out = append(out, s.recent[i])
	}
	return out
}

// ByID retrieves one persisted record. Returns nil without error when
// the id is unknown.
func (s *Store) ByID(id int64) (*models.IterationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.conn.QueryRow(`
		SELECT id, phase, pre_processing, decision, execution, next_prep,
		       error_phase, error_message, error_at, created_at
		FROM iterations WHERE id = ?
	`, id)
	rec, err := scanIteration(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// SuccessRate returns the fraction of the last k iterations that
// completed without error. Returns 1.0 when there is no history.
func (s *Store) SuccessRate(k int) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 || k > len(s.recent) {
		k = len(s.recent)
	}
	if k == 0 {
		return 1.0
	}
	ok := 0
	for i := len(s.recent) - k; i < len(s.recent); i++ {
		if s.recent[i].Succeeded() {
			ok++
		}
	}
	return float64(ok) / float64(k)
}

// CategoryCount pairs a pattern category with its occurrence count.
type CategoryCount struct {
	// Category is the pattern label (error phase, decision summary, ...).
	Category string `json:"category"`
	// Count is how many recent iterations matched.
	Count int `json:"count"`
}

// ErrorsByPhase tallies which phases recent errors occurred in,
// over the last k records, most frequent first.
func (s *Store) ErrorsByPhase(k int) []CategoryCount {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 || k > len(s.recent) {
		k = len(s.recent)
	}
	counts := make(map[string]int)
	for i := len(s.recent) - k; i < len(s.recent); i++ {
		if info := s.recent[i].ErrorInfo; info != nil {
			counts[string(info.Phase)]++
		}
	}
	return sortedCounts(counts)
}

// DecisionSummaries tallies the decision_summary values of the last k
// iterations, most frequent first. Iterations without a decision
// payload are skipped.
func (s *Store) DecisionSummaries(k int) []CategoryCount {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 || k > len(s.recent) {
		k = len(s.recent)
	}
	counts := make(map[string]int)
	for i := len(s.recent) - k; i < len(s.recent); i++ {
		if d := s.recent[i].Decision; d != nil {
			if summary, ok := d["decision_summary"].(string); ok && summary != "" {
				counts[summary]++
			}
		}
	}
	return sortedCounts(counts)
}

// ExecutionOutcomes reports the aggregated assignment success and
// failure tallies recorded in the last k execution payloads.
func (s *Store) ExecutionOutcomes(k int) (succeeded, failed int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 || k > len(s.recent) {
		k = len(s.recent)
	}
	for i := len(s.recent) - k; i < len(s.recent); i++ {
		exe := s.recent[i].Execution
		if exe == nil {
			continue
		}
		succeeded += payloadInt(exe, "succeeded")
		failed += payloadInt(exe, "failed")
	}
	return succeeded, failed
}

// AddLearning appends a learning entry linked to an iteration.
// Entries are never updated or deleted.
func (s *Store) AddLearning(kind string, content models.PhasePayload, iterationID int64) (*models.LearningEntry, error) {
	entry := &models.LearningEntry{
		ID:          uuid.New().String(),
		Kind:        kind,
		Content:     content,
		IterationID: iterationID,
		CreatedAt:   time.Now(),
	}

	blob, err := marshalPayload(content)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.conn.Exec(`
		INSERT INTO learnings (id, kind, content, iteration_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, entry.ID, entry.Kind, blob, entry.IterationID, entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("persist learning: %w", err)
	}
	return entry, nil
}

// Learnings returns up to limit entries, newest first.
func (s *Store) Learnings(limit int) ([]*models.LearningEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryLearnings(`
		SELECT id, kind, content, iteration_id, created_at
		FROM learnings ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
}

// LearningsForIteration returns the entries linked to one iteration.
func (s *Store) LearningsForIteration(iterationID int64) ([]*models.LearningEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryLearnings(`
		SELECT id, kind, content, iteration_id, created_at
		FROM learnings WHERE iteration_id = ? ORDER BY created_at
	`, iterationID)
}

func (s *Store) queryLearnings(query string, arg any) ([]*models.LearningEntry, error) {
	rows, err := s.conn.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("query learnings: %w", err)
	}
	defer rows.Close()

	var out []*models.LearningEntry
	for rows.Next() {
		var entry models.LearningEntry
		var blob string
		if err := rows.Scan(&entry.ID, &entry.Kind, &blob, &entry.IterationID, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan learning: %w", err)
		}
		if blob != "" {
			if err := json.Unmarshal([]byte(blob), &entry.Content); err != nil {
				return nil, fmt.Errorf("decode learning content: %w", err)
			}
		}
		out = append(out, &entry)
	}
	return out, rows.Err()
}

// RecordMetric appends one time-series sample.
func (s *Store) RecordMetric(name string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn.Exec(`
		INSERT INTO metrics (name, value, recorded_at) VALUES (?, ?, ?)
	`, name, value, time.Now())
	if err != nil {
		return fmt.Errorf("record metric %s: %w", name, err)
	}
	return nil
}

// MetricSample is one recorded time-series point.
type MetricSample struct {
	// Value is the recorded sample.
	Value float64 `json:"value"`
	// RecordedAt is when the sample was taken.
	RecordedAt time.Time `json:"recorded_at"`
}

// Metrics returns up to limit samples for a metric, newest first.
func (s *Store) Metrics(name string, limit int) ([]MetricSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.Query(`
		SELECT value, recorded_at FROM metrics
		WHERE name = ? ORDER BY id DESC LIMIT ?
	`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	var out []MetricSample
	for rows.Next() {
		var sample MetricSample
		if err := rows.Scan(&sample.Value, &sample.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		out = append(out, sample)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIteration(row rowScanner) (*models.IterationRecord, error) {
	var rec models.IterationRecord
	var phase string
	var pre, dec, exe, prep sql.NullString
	var errPhase, errMsg sql.NullString
	var errAt sql.NullTime

	err := row.Scan(&rec.ID, &phase, &pre, &dec, &exe, &prep,
		&errPhase, &errMsg, &errAt, &rec.Timestamp)
	if err != nil {
		return nil, err
	}
	rec.Phase = models.IterationPhase(phase)

	if rec.PreProcessing, err = unmarshalPayload(pre); err != nil {
		return nil, err
	}
	if rec.Decision, err = unmarshalPayload(dec); err != nil {
		return nil, err
	}
	if rec.Execution, err = unmarshalPayload(exe); err != nil {
		return nil, err
	}
	if rec.NextPrep, err = unmarshalPayload(prep); err != nil {
		return nil, err
	}

	if errPhase.Valid || errMsg.Valid {
		rec.ErrorInfo = &models.ErrorInfo{
			Phase:   models.IterationPhase(errPhase.String),
			Message: errMsg.String,
		}
		if errAt.Valid {
			rec.ErrorInfo.Timestamp = errAt.Time
		}
	}
	return &rec, nil
}

func marshalPayload(p models.PhasePayload) (sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, nil
	}
	blob, err := json.Marshal(p)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode payload: %w", err)
	}
	return sql.NullString{String: string(blob), Valid: true}, nil
}

func unmarshalPayload(blob sql.NullString) (models.PhasePayload, error) {
	if !blob.Valid || blob.String == "" {
		return nil, nil
	}
	var p models.PhasePayload
	if err := json.Unmarshal([]byte(blob.String), &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}

func payloadInt(p models.PhasePayload, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func sortedCounts(counts map[string]int) []CategoryCount {
	out := make([]CategoryCount, 0, len(counts))
	for category, count := range counts {
		out = append(out, CategoryCount{Category: category, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}
