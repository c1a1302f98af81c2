package models

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type SessionMode string

const (
	ModeNormal  SessionMode = "normal"
	ModeBiCheck SessionMode = "bicheck"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// SessionWindow is the timing configuration of one course or exam
// occurrence. Clock fields are local wall-clock times on Date.
type SessionWindow struct {
	SessionID     string      `db:"session_id" json:"session_id" validate:"required"`
	SessionType   string      `db:"session_type" json:"session_type" validate:"required,oneof=course exam"`
	Date          string      `db:"date" json:"date" validate:"required,datetime=2006-01-02"`
	PointageStart string      `db:"pointage_start" json:"pointage_start" validate:"omitempty,datetime=15:04"`
	NominalStart  string      `db:"nominal_start" json:"nominal_start" validate:"required,datetime=15:04"`
	NominalEnd    string      `db:"nominal_end" json:"nominal_end" validate:"required,datetime=15:04"`
	Tolerance     int         `db:"tolerance_minutes" json:"tolerance_minutes" validate:"min=0"`
	ExitGrace     int         `db:"exit_window_minutes" json:"exit_window_minutes" validate:"min=0"`
	Mode          SessionMode `db:"mode" json:"mode" validate:"required,oneof=normal bicheck"`

	// RoomConfigured distinguishes "no room, no restriction" from "room
	// exists but has zero devices assigned".
	RoomConfigured bool     `db:"room_configured" json:"room_configured"`
	DeviceIDs      []string `json:"device_ids,omitempty"`
	DeviceNames    []string `json:"device_names,omitempty"`

	GroupID string `db:"group_id" json:"group_id,omitempty"`
}

func (w *SessionWindow) Validate() error {
	validate := validator.New()
	if err := validate.Struct(w); err != nil {
		return err
	}

	start, err := w.clockAt(w.effectivePointageStart())
	if err != nil {
		return err
	}
	nomStart, err := w.clockAt(w.NominalStart)
	if err != nil {
		return err
	}
	nomEnd, err := w.clockAt(w.NominalEnd)
	if err != nil {
		return err
	}

	if start.After(nomStart) || nomStart.After(nomEnd) {
		return fmt.Errorf(
			"session %s/%s: expected pointage_start <= nominal_start <= nominal_end, got %s / %s / %s",
			w.SessionType, w.SessionID,
			w.effectivePointageStart(), w.NominalStart, w.NominalEnd,
		)
	}

	// In bi-check mode the entry window must close before the exit window
	// opens, otherwise a single punch could satisfy both.
	if w.Mode == ModeBiCheck {
		entryEnd := nomStart.Add(time.Duration(w.Tolerance) * time.Minute)
		if entryEnd.After(nomEnd) {
			return fmt.Errorf(
				"session %s/%s: tolerance %dm pushes entry window past nominal_end %s",
				w.SessionType, w.SessionID, w.Tolerance, w.NominalEnd,
			)
		}
	}

	return nil
}

func (w *SessionWindow) effectivePointageStart() string {
	if w.PointageStart == "" {
		return w.NominalStart
	}
	return w.PointageStart
}

func (w *SessionWindow) clockAt(clock string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+ClockLayout, w.Date+" "+clock, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad clock value %q on %s: %w", clock, w.Date, err)
	}
	return t, nil
}

// NominalStartTime resolves the nominal start as a local timestamp.
// Callers must have validated the window first.
func (w *SessionWindow) NominalStartTime() time.Time {
	t, _ := w.clockAt(w.NominalStart)
	return t
}

func (w *SessionWindow) NominalEndTime() time.Time {
	t, _ := w.clockAt(w.NominalEnd)
	return t
}

// EntryWindow is the punch acceptance window: pointage start through
// nominal start plus tolerance. Both bounds are inclusive.
func (w *SessionWindow) EntryWindow() (start, end time.Time) {
	start, _ = w.clockAt(w.effectivePointageStart())
	end = w.NominalStartTime().Add(time.Duration(w.Tolerance) * time.Minute)
	return start, end
}

// ExitWindow is the bi-check exit capture window: nominal end through
// nominal end plus the exit grace. Both bounds are inclusive.
func (w *SessionWindow) ExitWindow() (start, end time.Time) {
	start = w.NominalEndTime()
	end = start.Add(time.Duration(w.ExitGrace) * time.Minute)
	return start, end
}

// Span is the full local time range the reconciler fetches punches for.
func (w *SessionWindow) Span() (start, end time.Time) {
	start, end = w.EntryWindow()
	if w.Mode == ModeBiCheck {
		_, exitEnd := w.ExitWindow()
		if exitEnd.After(end) {
			end = exitEnd
		}
	}
	return start, end
}
