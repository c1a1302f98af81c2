package attend

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/campuspointe/pointage/internal/metrics"
	"github.com/campuspointe/pointage/internal/models"
)

// PunchQuery bounds a fetch against the terminal log. Device slices keep
// the nil-vs-empty distinction: nil means no source-level filtering, an
// empty non-nil slice means reject everything from that set.
type PunchQuery struct {
	Date        string
	StartClock  string
	EndClock    string
	SubjectIDs  []string
	DeviceIDs   []string
	DeviceNames []string
}

// PunchSource fetches raw punches. Implementations surface connectivity
// failures wrapped in ErrSourceUnavailable.
type PunchSource interface {
	FetchPunches(ctx context.Context, q PunchQuery) ([]models.PunchRecord, error)
}

// OverrideReader looks up the manual override for one key. A multi-row
// match comes back wrapped in ErrAmbiguousOverride.
type OverrideReader interface {
	GetOverride(subjectID, sessionID, sessionType, date string) (*models.Override, error)
}

// Reconciler derives per-subject attendance verdicts for sessions by
// matching terminal punches against session windows and overlaying
// manually recorded statuses.
type Reconciler struct {
	source        PunchSource
	overrides     OverrideReader
	offsetMinutes int
	parallelism   int
}

func NewReconciler(source PunchSource, overrides OverrideReader, offsetMinutes, parallelism int) *Reconciler {
	if parallelism <= 0 {
		parallelism = 4
	}
	return &Reconciler{
		source:        source,
		overrides:     overrides,
		offsetMinutes: offsetMinutes,
		parallelism:   parallelism,
	}
}

type SessionInput struct {
	Window models.SessionWindow `json:"window"`
	Roster []models.RosterEntry `json:"roster"`
}

type SessionResult struct {
	SessionID   string                     `json:"session_id"`
	SessionType string                     `json:"session_type"`
	Date        string                     `json:"date"`
	Verdicts    []models.AttendanceVerdict `json:"verdicts"`
	Summary     models.Summary             `json:"summary"`
	Warnings    []string                   `json:"warnings,omitempty"`
}

type SessionError struct {
	SessionID   string `json:"session_id"`
	SessionType string `json:"session_type"`
	Date        string `json:"date"`
	Reason      string `json:"reason"`
}

// BatchResult is a partial-success container: sessions that reconciled
// plus, separately, sessions that were skipped and why.
type BatchResult struct {
	RunID   string          `json:"run_id"`
	Results []SessionResult `json:"results"`
	Errors  []SessionError  `json:"errors,omitempty"`
}

// ReconcileSession runs the full pipeline for one session: fetch, clock
// normalization, device authorization, window matching, classification,
// override overlay.
func (r *Reconciler) ReconcileSession(ctx context.Context, in SessionInput) (*SessionResult, error) {
	w := &in.Window
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWindow, err)
	}

	result := &SessionResult{
		SessionID:   w.SessionID,
		SessionType: w.SessionType,
		Date:        w.Date,
	}

	raw, err := r.fetchSessionPunches(ctx, in)
	if err != nil {
		return nil, err
	}

	bySubject := r.filterAndGroup(raw, w, result)

	for _, entry := range in.Roster {
		verdict := r.judgeSubject(entry, bySubject[entry.SubjectID], w)

		override, err := r.overrides.GetOverride(entry.SubjectID, w.SessionID, w.SessionType, w.Date)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"override lookup for %s: %v", entry.SubjectID, err,
			))
		} else if override != nil {
			if mapped, ok := override.MappedStatus(); ok {
				verdict.Status = mapped
				verdict.ManualOverride = true
				verdict.OverrideReason = override.Reason
			} else {
				result.Warnings = append(result.Warnings, fmt.Sprintf(
					"override for %s carries unknown status %q, keeping derived verdict", entry.SubjectID, override.Status,
				))
			}
		}

		metrics.VerdictsTotal.WithLabelValues(w.SessionType, string(verdict.Status)).Inc()
		result.Summary.Add(verdict)
		result.Verdicts = append(result.Verdicts, verdict)
	}

	return result, nil
}

// ReconcileBatch processes sessions independently, up to the configured
// parallelism. One session's data-source failure or bad configuration
// never aborts the rest.
func (r *Reconciler) ReconcileBatch(ctx context.Context, inputs []SessionInput) *BatchResult {
	batch := &BatchResult{RunID: uuid.NewString()}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, r.parallelism)

	for _, in := range inputs {
		wg.Add(1)
		sem <- struct{}{}
		go func(in SessionInput) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := r.ReconcileSession(ctx, in)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Error.Printf("batch %s: session %s/%s skipped: %v", batch.RunID, in.Window.SessionType, in.Window.SessionID, err)
				metrics.ReconciliationsTotal.WithLabelValues(in.Window.SessionType, "error").Inc()
				batch.Errors = append(batch.Errors, SessionError{
					SessionID:   in.Window.SessionID,
					SessionType: in.Window.SessionType,
					Date:        in.Window.Date,
					Reason:      err.Error(),
				})
				return
			}
			metrics.ReconciliationsTotal.WithLabelValues(in.Window.SessionType, "ok").Inc()
			batch.Results = append(batch.Results, *res)
		}(in)
	}
	wg.Wait()

	return batch
}

func (r *Reconciler) fetchSessionPunches(ctx context.Context, in SessionInput) ([]models.PunchRecord, error) {
	w := &in.Window
	start, end := w.Span()

	subjects := make([]string, 0, len(in.Roster))
	for _, e := range in.Roster {
		subjects = append(subjects, e.SubjectID)
	}

	q := PunchQuery{
		Date:       w.Date,
		StartClock: start.Format(models.ClockLayout),
		EndClock:   end.Format(models.ClockLayout),
		SubjectIDs: subjects,
	}
	// Coarse source-level device pass, volume reduction only; the fine
	// per-punch pass in filterAndGroup decides authorization. A room with
	// zero devices fetches unfiltered so the misconfiguration warning can
	// count what it ignored.
	if w.RoomConfigured && (len(w.DeviceIDs) > 0 || len(w.DeviceNames) > 0) {
		q.DeviceIDs = append([]string{}, w.DeviceIDs...)
		q.DeviceNames = append([]string{}, w.DeviceNames...)
	}

	punches, err := r.source.FetchPunches(ctx, q)
	if err != nil {
		return nil, err
	}
	return punches, nil
}

// filterAndGroup normalizes timestamps, drops unauthorized punches, and
// groups the survivors by subject.
func (r *Reconciler) filterAndGroup(raw []models.PunchRecord, w *models.SessionWindow, result *SessionResult) map[string][]models.PunchRecord {
	bySubject := make(map[string][]models.PunchRecord)

	dropped := 0
	for _, p := range raw {
		norm, ok := NormalizePunchTime(p.Raw, w.Date, r.offsetMinutes)
		if !ok {
			metrics.PunchesDroppedTotal.WithLabelValues("normalization").Inc()
			dropped++
			continue
		}
		p.Normalized = norm

		if !DeviceAuthorized(p, w) {
			metrics.PunchesDroppedTotal.WithLabelValues("device").Inc()
			continue
		}

		bySubject[p.SubjectID] = append(bySubject[p.SubjectID], p)
	}

	if dropped > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d punches dropped during clock normalization", dropped))
	}
	if w.RoomConfigured && len(w.DeviceIDs) == 0 && len(w.DeviceNames) == 0 && len(raw) > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"room for session %s/%s has no devices assigned, %d punches ignored", w.SessionType, w.SessionID, len(raw),
		))
	}

	return bySubject
}

func (r *Reconciler) judgeSubject(entry models.RosterEntry, punches []models.PunchRecord, w *models.SessionWindow) models.AttendanceVerdict {
	verdict := models.AttendanceVerdict{
		SubjectID:   entry.SubjectID,
		SubjectName: entry.FullName,
	}

	switch w.Mode {
	case models.ModeBiCheck:
		in, out := MatchBiCheck(punches, w)
		hasOther := hasPunchOutsideEntry(punches, w)
		verdict.Status = ClassifyBiCheck(in, out, hasOther, w)
		verdict.PunchIn = in
		verdict.PunchOut = out
		if in != nil {
			verdict.DeviceName = in.DeviceName
		} else if out != nil {
			verdict.DeviceName = out.DeviceName
		}
	default:
		matched := MatchNormal(punches, w)
		verdict.Status = ClassifyNormal(matched, w)
		verdict.PunchIn = matched
		if matched != nil {
			verdict.DeviceName = matched.DeviceName
		}
	}

	return verdict
}

func hasPunchOutsideEntry(punches []models.PunchRecord, w *models.SessionWindow) bool {
	start, end := w.EntryWindow()
	for _, p := range punches {
		if !inWindow(p.Normalized, start, end) {
			return true
		}
	}
	return false
}
