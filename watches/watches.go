package watches

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pevans/pagewatch/intent"
	"github.com/pevans/pagewatch/strategy"
)

// Custom errors for watch operations
var (
	ErrWatchNotFound   = errors.New("watch not found")
	ErrDuplicateWatch  = errors.New("watch for this URL and intent already exists")
	ErrInvalidInterval = errors.New("invalid interval")
	ErrInvalidIntent   = errors.New("invalid intent")
)

// Bounds applied to user supplied check intervals.
const (
	MinInterval = 5 * time.Minute
	MaxInterval = 30 * 24 * time.Hour
)

// WatchStore persists monitoring plans using SQLite.
type WatchStore struct {
	db *sql.DB
}

// Watch is a saved monitoring plan: a URL, the intent behind it and the
// strategy chosen to check it.
type Watch struct {
	ID            uuid.UUID     `json:"id"`
	URL           string        `json:"url"`
	Description   string        `json:"description"`
	Intent        intent.Intent `json:"intent"`
	Platform      *string       `json:"platform,omitempty"`
	Engine        string        `json:"engine"`
	Extraction    string        `json:"extraction"`
	Confidence    float64       `json:"confidence"`
	Interval      *string       `json:"interval,omitempty"`
	EnabledAt     *time.Time    `json:"enabled_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	LastCheckedAt *time.Time    `json:"last_checked_at,omitempty"`
	LastError     *string       `json:"last_error,omitempty"`
}

// IsEnabled returns true if the watch is currently enabled.
func (w *Watch) IsEnabled() bool {
	return w.EnabledAt != nil
}

// Strategy rebuilds the stored strategy from its engine and extraction
// strings.
func (w *Watch) Strategy() (strategy.Strategy, error) {
	engine, err := strategy.ParseEngine(w.Engine)
	if err != nil {
		return strategy.Strategy{}, err
	}
	extraction, err := strategy.ParseExtraction(w.Extraction)
	if err != nil {
		return strategy.Strategy{}, err
	}
	return strategy.Strategy{
		Engine:     engine,
		Extraction: extraction,
		Confidence: w.Confidence,
	}, nil
}

// EffectiveInterval returns the configured interval, or the intent's
// default when none is set or the stored value no longer parses.
func (w *Watch) EffectiveInterval() time.Duration {
	if w.Interval != nil {
		if d, err := ParseInterval(*w.Interval); err == nil {
			return d
		}
	}
	return intent.DefaultInterval(w.Intent)
}

// NewWatch describes a watch to be created.
type NewWatch struct {
	URL         string
	Description string
	Intent      intent.Intent
	Platform    *string
	Strategy    strategy.Strategy
	Interval    *string
	EnabledAt   *time.Time
}

// WatchUpdate represents fields that can be updated on a watch.
type WatchUpdate struct {
	Description    *string
	Strategy       *strategy.Strategy
	Interval       *string
	EnabledAt      *time.Time
	ClearEnabledAt bool // Set to true to set enabled_at to NULL
	LastCheckedAt  *time.Time
	LastError      *string // An empty string clears the stored error
}

// WatchFilter represents filtering options for listing watches.
type WatchFilter struct {
	Intent  *intent.Intent
	Enabled *bool
	Limit   int
	Offset  int
}

// ParseInterval parses a check interval. Besides Go durations it accepts
// whole days ("3d") and weeks ("2w"). The result must fall within
// [MinInterval, MaxInterval].
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidInterval)
	}

	var d time.Duration
	switch unit := s[len(s)-1]; unit {
	case 'd', 'w':
		n, err := strconv.Atoi(s[:len(s)-1])
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidInterval, s)
		}
		d = time.Duration(n) * 24 * time.Hour
		if unit == 'w' {
			d *= 7
		}
	default:
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidInterval, s)
		}
		d = parsed
	}

	if d < MinInterval || d > MaxInterval {
		return 0, fmt.Errorf("%w: %s must be between %s and %s",
			ErrInvalidInterval, s, MinInterval, MaxInterval)
	}
	return d, nil
}

// NewWatchStore creates a new watch store with the given database path.
func NewWatchStore(dbPath string) (*WatchStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &WatchStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the watches table if it doesn't exist.
func (s *WatchStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS watches (
		watch_id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		description TEXT NOT NULL,
		intent TEXT NOT NULL,
		platform TEXT,
		engine TEXT NOT NULL,
		extraction TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 0,
		check_interval TEXT,
		enabled_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		last_checked_at TEXT,
		last_error TEXT,
		UNIQUE (url, intent)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *WatchStore) Close() error {
	return s.db.Close()
}

// CreateWatch stores a new watch.
func (s *WatchStore) CreateWatch(nw NewWatch) (*Watch, error) {
	in, err := intent.Parse(string(nw.Intent))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIntent, err)
	}
	if nw.Interval != nil {
		if _, err := ParseInterval(*nw.Interval); err != nil {
			return nil, err
		}
	}

	st := nw.Strategy
	if st.Engine == nil || st.Extraction == nil {
		st = strategy.Fallback()
	}

	now := time.Now()
	watch := &Watch{
		ID:          uuid.New(),
		URL:         nw.URL,
		Description: nw.Description,
		Intent:      in,
		Platform:    nw.Platform,
		Engine:      strategy.FormatEngine(st.Engine),
		Extraction:  strategy.FormatExtraction(st.Extraction),
		Confidence:  st.Confidence,
		Interval:    nw.Interval,
		EnabledAt:   nw.EnabledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	query := `
		INSERT INTO watches (
			watch_id, url, description, intent, platform, engine,
			extraction, confidence, check_interval, enabled_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		watch.ID.String(),
		watch.URL,
		watch.Description,
		string(watch.Intent),
		watch.Platform,
		watch.Engine,
		watch.Extraction,
		watch.Confidence,
		watch.Interval,
		formatTime(watch.EnabledAt),
		formatTime(&watch.CreatedAt),
		formatTime(&watch.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateWatch
		}
		return nil, fmt.Errorf("failed to insert watch: %w", err)
	}

	return watch, nil
}

const selectColumns = `
	SELECT watch_id, url, description, intent, platform, engine,
	       extraction, confidence, check_interval, enabled_at,
	       created_at, updated_at, last_checked_at, last_error
	FROM watches
`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// GetWatch retrieves a watch by ID.
func (s *WatchStore) GetWatch(id uuid.UUID) (*Watch, error) {
	row := s.db.QueryRow(selectColumns+" WHERE watch_id = ?", id.String())

	watch, err := scanWatch(row)
	if err == sql.ErrNoRows {
		return nil, ErrWatchNotFound
	}
	if err != nil {
		return nil, err
	}
	return watch, nil
}

// ListWatches lists watches with optional filtering, newest first.
func (s *WatchStore) ListWatches(filter WatchFilter) ([]Watch, error) {
	query := selectColumns

	var whereClauses []string
	var args []any

	if filter.Intent != nil {
		whereClauses = append(whereClauses, "intent = ?")
		args = append(args, string(*filter.Intent))
	}

	if filter.Enabled != nil {
		if *filter.Enabled {
			whereClauses = append(whereClauses, "enabled_at IS NOT NULL")
		} else {
			whereClauses = append(whereClauses, "enabled_at IS NULL")
		}
	}

	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query watches: %w", err)
	}
	defer rows.Close()

	var watches []Watch
	for rows.Next() {
		watch, err := scanWatch(rows)
		if err != nil {
			return nil, err
		}
		watches = append(watches, *watch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate watches: %w", err)
	}

	return watches, nil
}

// UpdateWatch updates a watch with the provided fields.
func (s *WatchStore) UpdateWatch(id uuid.UUID, update WatchUpdate) error {
	setClauses := []string{"updated_at = ?"}
	now := time.Now()
	args := []any{formatTime(&now)}

	if update.Description != nil {
		setClauses = append(setClauses, "description = ?")
		args = append(args, *update.Description)
	}
	if update.Strategy != nil {
		setClauses = append(setClauses, "engine = ?", "extraction = ?", "confidence = ?")
		args = append(args,
			strategy.FormatEngine(update.Strategy.Engine),
			strategy.FormatExtraction(update.Strategy.Extraction),
			update.Strategy.Confidence,
		)
	}
	if update.Interval != nil {
		if _, err := ParseInterval(*update.Interval); err != nil {
			return err
		}
		setClauses = append(setClauses, "check_interval = ?")
		args = append(args, *update.Interval)
	}
	if update.ClearEnabledAt {
		setClauses = append(setClauses, "enabled_at = ?")
		args = append(args, nil)
	} else if update.EnabledAt != nil {
		setClauses = append(setClauses, "enabled_at = ?")
		args = append(args, formatTime(update.EnabledAt))
	}
	if update.LastCheckedAt != nil {
		setClauses = append(setClauses, "last_checked_at = ?")
		args = append(args, formatTime(update.LastCheckedAt))
	}
	if update.LastError != nil {
		// An empty error clears the column
		setClauses = append(setClauses, "last_error = ?")
		if *update.LastError == "" {
			args = append(args, nil)
		} else {
			args = append(args, *update.LastError)
		}
	}

	args = append(args, id.String())

	query := fmt.Sprintf("UPDATE watches SET %s WHERE watch_id = ?",
		strings.Join(setClauses, ", "))

	result, err := s.db.Exec(query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateWatch
		}
		return fmt.Errorf("failed to update watch: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrWatchNotFound
	}

	return nil
}

// DeleteWatch deletes a watch.
func (s *WatchStore) DeleteWatch(id uuid.UUID) error {
	result, err := s.db.Exec("DELETE FROM watches WHERE watch_id = ?", id.String())
	if err != nil {
		return fmt.Errorf("failed to delete watch: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrWatchNotFound
	}

	return nil
}

func scanWatch(row rowScanner) (*Watch, error) {
	var idStr, url, description, in, engine, extraction, createdAtStr, updatedAtStr string
	var platform, interval, enabledAtStr, lastCheckedAtStr, lastError sql.NullString
	var confidence float64

	err := row.Scan(
		&idStr, &url, &description, &in, &platform, &engine,
		&extraction, &confidence, &interval, &enabledAtStr,
		&createdAtStr, &updatedAtStr, &lastCheckedAtStr, &lastError,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan watch: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse watch ID: %w", err)
	}

	watch := &Watch{
		ID:          id,
		URL:         url,
		Description: description,
		Intent:      intent.Intent(in),
		Engine:      engine,
		Extraction:  extraction,
		Confidence:  confidence,
		CreatedAt:   parseTime(createdAtStr),
		UpdatedAt:   parseTime(updatedAtStr),
	}

	if platform.Valid {
		watch.Platform = &platform.String
	}
	if interval.Valid {
		watch.Interval = &interval.String
	}
	if lastError.Valid {
		watch.LastError = &lastError.String
	}
	if enabledAtStr.Valid {
		t := parseTime(enabledAtStr.String)
		watch.EnabledAt = &t
	}
	if lastCheckedAtStr.Valid {
		t := parseTime(lastCheckedAtStr.String)
		watch.LastCheckedAt = &t
	}

	return watch, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint") ||
		strings.Contains(err.Error(), "unique constraint")
}

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t.Truncate(0)
}
