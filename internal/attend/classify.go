package attend

import (
	"github.com/campuspointe/pointage/internal/models"
)

// ClassifyNormal turns the matched punch of a single-punch session into a
// verdict. The matcher already excluded punches past the tolerance bound,
// so anything non-nil here is at worst late.
func ClassifyNormal(matched *models.PunchRecord, w *models.SessionWindow) models.Status {
	if matched == nil {
		return models.StatusAbsent
	}
	if !matched.Normalized.After(w.NominalStartTime()) {
		return models.StatusPresent
	}
	return models.StatusLate
}

// ClassifyBiCheck turns the entry/exit pair into a verdict. hasOtherPunch
// reports whether the subject produced any authorized punch in the
// session span outside the entry window; it distinguishes pending_entry
// (badged, but not when it counted) from a plain absence. The pending
// states exist as diagnostics for administrators and count as absent in
// aggregates.
func ClassifyBiCheck(entry, exit *models.PunchRecord, hasOtherPunch bool, w *models.SessionWindow) models.Status {
	switch {
	case entry != nil && exit != nil:
		if !entry.Normalized.After(w.NominalStartTime()) {
			return models.StatusPresent
		}
		return models.StatusLate
	case entry != nil:
		return models.StatusPendingExit
	case hasOtherPunch:
		return models.StatusPendingEntry
	default:
		return models.StatusAbsent
	}
}
