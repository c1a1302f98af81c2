package store

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/campuspointe/pointage/internal/attend"
	"github.com/campuspointe/pointage/internal/models"
)

type AttendanceStore interface {
	Close() error
	ApplyMigrations(dir string) error

	CreateSessionWindow(w *models.SessionWindow) error
	GetSessionWindow(sessionID, sessionType, date string) (*models.SessionWindow, error)
	ListSessionWindows(date string) ([]models.SessionWindow, error)

	CreateRosterEntry(e *models.RosterEntry) error
	ListRoster(groupID string) ([]models.RosterEntry, error)

	CreateOverride(o models.Override) error
	GetOverride(subjectID, sessionID, sessionType, date string) (*models.Override, error)
	ListOverrides(date string) ([]models.Override, error)
	DeleteOverride(subjectID, sessionID, sessionType, date string) error
}

// BaseStore provides common functionality for different DB implementations
type BaseStore struct {
	DB        *sqlx.DB
	Converter func(string) string
}

func (s *BaseStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// ApplyMigrations applies SQL migrations from a directory, translating dialect if needed
func (s *BaseStore) ApplyMigrations(dir string, translateSQL func(string) string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		content, err := os.ReadFile(fmt.Sprintf("%s/%s", dir, file.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file.Name(), err)
		}

		sql := string(content)
		if translateSQL != nil {
			sql = translateSQL(sql)
		}

		if _, err := s.DB.Exec(sql); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file.Name(), err)
		}
	}

	return nil
}

// sessionRow flattens SessionWindow for sqlx; the device sets are stored
// comma-joined.
type sessionRow struct {
	SessionID      string `db:"session_id"`
	SessionType    string `db:"session_type"`
	Date           string `db:"date"`
	PointageStart  string `db:"pointage_start"`
	NominalStart   string `db:"nominal_start"`
	NominalEnd     string `db:"nominal_end"`
	Tolerance      int    `db:"tolerance_minutes"`
	ExitGrace      int    `db:"exit_window_minutes"`
	Mode           string `db:"mode"`
	RoomConfigured bool   `db:"room_configured"`
	DeviceIDs      string `db:"device_ids"`
	DeviceNames    string `db:"device_names"`
	GroupID        string `db:"group_id"`
}

func toSessionRow(w *models.SessionWindow) sessionRow {
	return sessionRow{
		SessionID:      w.SessionID,
		SessionType:    w.SessionType,
		Date:           w.Date,
		PointageStart:  w.PointageStart,
		NominalStart:   w.NominalStart,
		NominalEnd:     w.NominalEnd,
		Tolerance:      w.Tolerance,
		ExitGrace:      w.ExitGrace,
		Mode:           string(w.Mode),
		RoomConfigured: w.RoomConfigured,
		DeviceIDs:      joinSet(w.DeviceIDs),
		DeviceNames:    joinSet(w.DeviceNames),
		GroupID:        w.GroupID,
	}
}

func (r sessionRow) toWindow() models.SessionWindow {
	return models.SessionWindow{
		SessionID:      r.SessionID,
		SessionType:    r.SessionType,
		Date:           r.Date,
		PointageStart:  r.PointageStart,
		NominalStart:   r.NominalStart,
		NominalEnd:     r.NominalEnd,
		Tolerance:      r.Tolerance,
		ExitGrace:      r.ExitGrace,
		Mode:           models.SessionMode(r.Mode),
		RoomConfigured: r.RoomConfigured,
		DeviceIDs:      splitSet(r.DeviceIDs),
		DeviceNames:    splitSet(r.DeviceNames),
		GroupID:        r.GroupID,
	}
}

func joinSet(vals []string) string {
	return strings.Join(vals, ",")
}

func splitSet(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}

func (s *BaseStore) CreateSessionWindow(w *models.SessionWindow) error {
	_, err := s.DB.NamedExec(`
		INSERT INTO session_windows (
			session_id, session_type, date, pointage_start, nominal_start,
			nominal_end, tolerance_minutes, exit_window_minutes, mode,
			room_configured, device_ids, device_names, group_id
		)
		VALUES (
			:session_id, :session_type, :date, :pointage_start, :nominal_start,
			:nominal_end, :tolerance_minutes, :exit_window_minutes, :mode,
			:room_configured, :device_ids, :device_names, :group_id
		)
		ON CONFLICT(session_id, session_type, date) DO UPDATE SET
		pointage_start = :pointage_start,
		nominal_start = :nominal_start,
		nominal_end = :nominal_end,
		tolerance_minutes = :tolerance_minutes,
		exit_window_minutes = :exit_window_minutes,
		mode = :mode,
		room_configured = :room_configured,
		device_ids = :device_ids,
		device_names = :device_names,
		group_id = :group_id
	`, toSessionRow(w))
	if err != nil {
		return fmt.Errorf("failed to create session window: %w", err)
	}
	return nil
}

func (s *BaseStore) GetSessionWindow(sessionID, sessionType, date string) (*models.SessionWindow, error) {
	var row sessionRow
	query := s.Converter(`
		SELECT session_id, session_type, date, pointage_start, nominal_start,
		       nominal_end, tolerance_minutes, exit_window_minutes, mode,
		       room_configured, device_ids, device_names, group_id
		FROM session_windows
		WHERE session_id = ? AND session_type = ? AND date = ?
	`)

	err := s.DB.Get(&row, query, sessionID, sessionType, date)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session window: %w", err)
	}
	w := row.toWindow()
	return &w, nil
}

func (s *BaseStore) ListSessionWindows(date string) ([]models.SessionWindow, error) {
	var rows []sessionRow
	query := s.Converter(`
		SELECT session_id, session_type, date, pointage_start, nominal_start,
		       nominal_end, tolerance_minutes, exit_window_minutes, mode,
		       room_configured, device_ids, device_names, group_id
		FROM session_windows
		WHERE date = ?
		ORDER BY session_type, session_id
	`)

	if err := s.DB.Select(&rows, query, date); err != nil {
		return nil, fmt.Errorf("failed to list session windows: %w", err)
	}

	windows := make([]models.SessionWindow, 0, len(rows))
	for _, row := range rows {
		windows = append(windows, row.toWindow())
	}
	return windows, nil
}

func (s *BaseStore) CreateRosterEntry(e *models.RosterEntry) error {
	_, err := s.DB.NamedExec(`
		INSERT INTO roster_entries (subject_id, full_name, group_id)
		VALUES (:subject_id, :full_name, :group_id)
		ON CONFLICT(subject_id, group_id) DO UPDATE SET
		full_name = :full_name
	`, e)
	if err != nil {
		return fmt.Errorf("failed to create roster entry: %w", err)
	}
	return nil
}

func (s *BaseStore) ListRoster(groupID string) ([]models.RosterEntry, error) {
	var entries []models.RosterEntry
	query := s.Converter(`
		SELECT subject_id, full_name, group_id
		FROM roster_entries
		WHERE group_id = ?
		ORDER BY full_name, subject_id
	`)

	if err := s.DB.Select(&entries, query, groupID); err != nil {
		return nil, fmt.Errorf("failed to list roster: %w", err)
	}
	return entries, nil
}

// CreateOverride replaces any existing row for the key before inserting,
// keeping at most one override per (subject, session, type, date).
func (s *BaseStore) CreateOverride(o models.Override) error {
	tx, err := s.DB.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin override tx: %w", err)
	}
	defer tx.Rollback()

	del := s.Converter(`
		DELETE FROM attendance_overrides
		WHERE subject_id = ? AND session_id = ? AND session_type = ? AND date = ?
	`)
	if _, err := tx.Exec(del, o.SubjectID, o.SessionID, o.SessionType, o.Date); err != nil {
		return fmt.Errorf("failed to clear previous override: %w", err)
	}

	if _, err := tx.NamedExec(`
		INSERT INTO attendance_overrides (subject_id, session_id, session_type, date, status, reason)
		VALUES (:subject_id, :session_id, :session_type, :date, :status, :reason)
	`, o); err != nil {
		return fmt.Errorf("failed to create override: %w", err)
	}

	return tx.Commit()
}

// GetOverride returns nil when no row matches. Several rows for one key
// is a data-integrity problem and comes back as ErrAmbiguousOverride.
func (s *BaseStore) GetOverride(subjectID, sessionID, sessionType, date string) (*models.Override, error) {
	var overrides []models.Override
	query := s.Converter(`
		SELECT subject_id, session_id, session_type, date, status, reason
		FROM attendance_overrides
		WHERE subject_id = ? AND session_id = ? AND session_type = ? AND date = ?
	`)

	if err := s.DB.Select(&overrides, query, subjectID, sessionID, sessionType, date); err != nil {
		return nil, fmt.Errorf("failed to get override: %w", err)
	}

	switch len(overrides) {
	case 0:
		return nil, nil
	case 1:
		return &overrides[0], nil
	default:
		return nil, fmt.Errorf("%w: %d rows for %s/%s/%s on %s",
			attend.ErrAmbiguousOverride, len(overrides), sessionType, sessionID, subjectID, date)
	}
}

func (s *BaseStore) ListOverrides(date string) ([]models.Override, error) {
	var overrides []models.Override
	query := s.Converter(`
		SELECT subject_id, session_id, session_type, date, status, reason
		FROM attendance_overrides
		WHERE date = ?
		ORDER BY session_type, session_id, subject_id
	`)

	if err := s.DB.Select(&overrides, query, date); err != nil {
		return nil, fmt.Errorf("failed to list overrides: %w", err)
	}
	return overrides, nil
}

func (s *BaseStore) DeleteOverride(subjectID, sessionID, sessionType, date string) error {
	query := s.Converter(`
		DELETE FROM attendance_overrides
		WHERE subject_id = ? AND session_id = ? AND session_type = ? AND date = ?
	`)
	if _, err := s.DB.Exec(query, subjectID, sessionID, sessionType, date); err != nil {
		return fmt.Errorf("failed to delete override: %w", err)
	}
	return nil
}
