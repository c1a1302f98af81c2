package attend

import "errors"

var (
	// ErrSourceUnavailable wraps any connectivity or driver failure from
	// the punch-log source. Batch callers skip the session and go on.
	ErrSourceUnavailable = errors.New("punch source unavailable")

	// ErrMalformedWindow marks a session whose timing configuration
	// violates pointage_start <= nominal_start <= nominal_end, or whose
	// bi-check windows would overlap.
	ErrMalformedWindow = errors.New("malformed session window")

	// ErrAmbiguousOverride means more than one manual override row matched
	// one (subject, session, type, date) key. Upstream double entry; never
	// resolved silently.
	ErrAmbiguousOverride = errors.New("ambiguous manual override")
)
