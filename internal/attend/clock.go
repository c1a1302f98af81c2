package attend

import (
	"regexp"
	"strings"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/campuspointe/pointage/internal/models"
)

// exactLayout is what the terminals are supposed to emit. They mostly do.
const exactLayout = "2006-01-02 15:04:05"

// fallbackLayouts cover the variants observed in exported Biostar logs.
var fallbackLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04:05",
}

var subSecondSuffix = regexp.MustCompile(`\.\d+$`)

// NormalizePunchTime converts a raw terminal timestamp into an unambiguous
// local time: strip sub-second precision, parse, apply the known offset
// between the terminal server clock and ours. A result that lands on a
// different calendar day than the session is rejected rather than matched
// against the wrong day's windows.
func NormalizePunchTime(raw, sessionDate string, offsetMinutes int) (time.Time, bool) {
	trimmed := subSecondSuffix.ReplaceAllString(strings.TrimSpace(raw), "")
	if trimmed == "" {
		return time.Time{}, false
	}

	t, err := time.ParseInLocation(exactLayout, trimmed, time.Local)
	if err != nil {
		for _, layout := range fallbackLayouts {
			if t, err = time.ParseInLocation(layout, trimmed, time.Local); err == nil {
				logger.Debug.Printf("punch timestamp %q parsed with fallback layout %q", raw, layout)
				break
			}
		}
	}
	if err != nil {
		logger.Debug.Printf("unparseable punch timestamp %q", raw)
		return time.Time{}, false
	}

	t = t.Add(time.Duration(offsetMinutes) * time.Minute)

	if t.Format(models.DateLayout) != sessionDate {
		logger.Debug.Printf("punch %q normalizes to %s, outside session date %s, dropping", raw, t.Format(models.DateLayout), sessionDate)
		return time.Time{}, false
	}

	return t, true
}
