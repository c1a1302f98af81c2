package handlers

import (
	"errors"
	"time"

	"encoding/json"
	"net/http"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/campuspointe/pointage/internal/app"
	"github.com/campuspointe/pointage/internal/attend"
	"github.com/campuspointe/pointage/internal/metrics"
	"github.com/campuspointe/pointage/internal/models"
)

type AttendanceHandler struct {
	service *app.Service
}

func NewAttendanceHandler(service *app.Service) *AttendanceHandler {
	return &AttendanceHandler{
		service: service,
	}
}

// authorize checks the per-operator bearer token. The operator id comes
// from a header, the campus from the query string; both feed the redis
// key lookup. A no-op when auth is disabled in config.
func (h *AttendanceHandler) authorize(w http.ResponseWriter, r *http.Request) bool {
	operator := r.Header.Get(h.service.Config.API.OperatorIDHeader)
	campus := r.URL.Query().Get("campus")

	if err := h.service.ValidateAuthAndOperator(r, campus, operator); err != nil {
		logger.Error.Printf("Auth failed for operator %q: %v", operator, err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func (h *AttendanceHandler) observe(r *http.Request, start time.Time, status string) {
	metrics.APIRequestDuration.WithLabelValues(
		r.URL.Path,
		r.Method,
		status,
	).Observe(time.Since(start).Seconds())
}

// HandleReconcile runs one session supplied in the request body and
// returns the verdict list plus summary. The session never has to be
// registered; callers that keep scheduling elsewhere post it inline.
func (h *AttendanceHandler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer h.observe(r, start, "200")

	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusForbidden)
		return
	}
	if !h.authorize(w, r) {
		return
	}

	var input attend.SessionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.Engine.ReconcileSession(r.Context(), input)
	if err != nil {
		h.writeEngineError(w, input.Window, err)
		return
	}

	writeJSON(w, result)
}

// HandleReconcileBatch accepts a list of sessions and always answers 200
// with a partial-success body: reconciled sessions plus per-session
// errors.
func (h *AttendanceHandler) HandleReconcileBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer h.observe(r, start, "200")

	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusForbidden)
		return
	}
	if !h.authorize(w, r) {
		return
	}

	var inputs []attend.SessionInput
	if err := json.NewDecoder(r.Body).Decode(&inputs); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	writeJSON(w, h.service.Engine.ReconcileBatch(r.Context(), inputs))
}

// HandleReconcileDaily reconciles every registered session for a date.
func (h *AttendanceHandler) HandleReconcileDaily(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer h.observe(r, start, "200")

	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusNotFound)
		return
	}
	if !h.authorize(w, r) {
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format(models.DateLayout)
	}

	batch, err := h.service.ReconcileDate(r.Context(), date)
	if err != nil {
		logger.Error.Printf("Failed to reconcile %s: %v", date, err)
		http.Error(w, "Failed to reconcile", http.StatusInternalServerError)
		return
	}

	writeJSON(w, batch)
}

func (h *AttendanceHandler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusNotFound)
		return
	}

	if r.Method != http.MethodGet && !h.authorize(w, r) {
		return
	}

	switch r.Method {
	case http.MethodGet:
		date := r.URL.Query().Get("date")
		if date == "" {
			http.Error(w, "date query parameter required", http.StatusBadRequest)
			return
		}
		windows, err := h.service.Store.ListSessionWindows(date)
		if err != nil {
			logger.Error.Printf("Failed to list sessions: %v", err)
			http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]interface{}{"sessions": windows})

	case http.MethodPost:
		var window models.SessionWindow
		if err := json.NewDecoder(r.Body).Decode(&window); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := window.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		if err := h.service.Store.CreateSessionWindow(&window); err != nil {
			logger.Error.Printf("Failed to save session window: %v", err)
			http.Error(w, "Failed to save session window", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleRoster registers the subjects expected in a group and lists
// them. Rosters usually arrive as a bulk import at term start.
func (h *AttendanceHandler) HandleRoster(w http.ResponseWriter, r *http.Request) {
	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusNotFound)
		return
	}

	if r.Method != http.MethodGet && !h.authorize(w, r) {
		return
	}

	switch r.Method {
	case http.MethodGet:
		groupID := r.URL.Query().Get("group_id")
		if groupID == "" {
			http.Error(w, "group_id query parameter required", http.StatusBadRequest)
			return
		}
		entries, err := h.service.Store.ListRoster(groupID)
		if err != nil {
			logger.Error.Printf("Failed to list roster: %v", err)
			http.Error(w, "Failed to list roster", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]interface{}{"roster": entries})

	case http.MethodPost:
		var entries []models.RosterEntry
		if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		for i := range entries {
			if err := entries[i].Validate(); err != nil {
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
				return
			}
		}
		for i := range entries {
			if err := h.service.Store.CreateRosterEntry(&entries[i]); err != nil {
				logger.Error.Printf("Failed to save roster entry: %v", err)
				http.Error(w, "Failed to save roster entry", http.StatusInternalServerError)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AttendanceHandler) HandleOverrides(w http.ResponseWriter, r *http.Request) {
	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusNotFound)
		return
	}

	if r.Method != http.MethodGet && !h.authorize(w, r) {
		return
	}

	switch r.Method {
	case http.MethodGet:
		date := r.URL.Query().Get("date")
		if date == "" {
			http.Error(w, "date query parameter required", http.StatusBadRequest)
			return
		}
		overrides, err := h.service.Store.ListOverrides(date)
		if err != nil {
			logger.Error.Printf("Failed to list overrides: %v", err)
			http.Error(w, "Failed to list overrides", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]interface{}{"overrides": overrides})

	case http.MethodPost:
		var override models.Override
		if err := json.NewDecoder(r.Body).Decode(&override); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := override.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		if err := h.service.Store.CreateOverride(override); err != nil {
			logger.Error.Printf("Failed to save override: %v", err)
			http.Error(w, "Failed to save override", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))

	case http.MethodDelete:
		q := r.URL.Query()
		if err := h.service.Store.DeleteOverride(
			q.Get("subject_id"), q.Get("session_id"), q.Get("session_type"), q.Get("date"),
		); err != nil {
			logger.Error.Printf("Failed to delete override: %v", err)
			http.Error(w, "Failed to delete override", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandlePunchPeek exposes the raw fetch+normalize stage so an admin can
// see what a room's terminals actually recorded before blaming the
// matcher.
func (h *AttendanceHandler) HandlePunchPeek(w http.ResponseWriter, r *http.Request) {
	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	date := q.Get("date")
	startClock := q.Get("start")
	endClock := q.Get("end")
	if date == "" || startClock == "" || endClock == "" {
		http.Error(w, "date, start and end query parameters required", http.StatusBadRequest)
		return
	}

	punches, err := h.service.Source.FetchPunches(r.Context(), attend.PunchQuery{
		Date:       date,
		StartClock: startClock,
		EndClock:   endClock,
	})
	if err != nil {
		logger.Error.Printf("Punch peek failed: %v", err)
		http.Error(w, "Punch source unavailable", http.StatusBadGateway)
		return
	}

	offset := h.service.Config.Biostar.ClockOffsetMinutes
	type peekRow struct {
		models.PunchRecord
		Normalized string `json:"normalized,omitempty"`
	}
	rows := make([]peekRow, 0, len(punches))
	for _, p := range punches {
		row := peekRow{PunchRecord: p}
		if t, ok := attend.NormalizePunchTime(p.Raw, date, offset); ok {
			row.Normalized = t.Format(h.service.Config.Display.TimestampFormat)
		}
		rows = append(rows, row)
	}

	writeJSON(w, map[string]interface{}{"punches": rows})
}

func (h *AttendanceHandler) writeEngineError(w http.ResponseWriter, window models.SessionWindow, err error) {
	logger.Error.Printf("Reconciliation failed for %s/%s: %v", window.SessionType, window.SessionID, err)

	switch {
	case errors.Is(err, attend.ErrMalformedWindow):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, attend.ErrSourceUnavailable):
		http.Error(w, "Punch source unavailable", http.StatusBadGateway)
	default:
		http.Error(w, "Failed to reconcile", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error.Printf("Failed to encode response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
