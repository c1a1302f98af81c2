package attend

import (
	"time"

	"github.com/campuspointe/pointage/internal/models"
)

func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// MatchNormal picks the punch that decides a single-punch session: the
// most recent one inside [pointage_start, nominal_start+tolerance]. A
// student who badges several times is judged on the final, confirmed
// entry. Returns nil when no punch falls in the window.
func MatchNormal(punches []models.PunchRecord, w *models.SessionWindow) *models.PunchRecord {
	start, end := w.EntryWindow()

	var best *models.PunchRecord
	for i := range punches {
		p := &punches[i]
		if !inWindow(p.Normalized, start, end) {
			continue
		}
		if best == nil || p.Normalized.After(best.Normalized) {
			best = p
		}
	}
	return best
}

// MatchBiCheck evaluates the two independent bi-check windows: the
// earliest punch in the entry window and the latest punch in the exit
// window. Either slot may be nil; that is the normal no-punch case, not
// an error.
func MatchBiCheck(punches []models.PunchRecord, w *models.SessionWindow) (entry, exit *models.PunchRecord) {
	entryStart, entryEnd := w.EntryWindow()
	exitStart, exitEnd := w.ExitWindow()

	for i := range punches {
		p := &punches[i]
		if inWindow(p.Normalized, entryStart, entryEnd) {
			if entry == nil || p.Normalized.Before(entry.Normalized) {
				entry = p
			}
		}
		if inWindow(p.Normalized, exitStart, exitEnd) {
			if exit == nil || p.Normalized.After(exit.Normalized) {
				exit = p
			}
		}
	}
	return entry, exit
}
