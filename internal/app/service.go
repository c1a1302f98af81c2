package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/campuspointe/pointage/internal/attend"
	"github.com/campuspointe/pointage/internal/biostar"
	"github.com/campuspointe/pointage/internal/store"
)

type Service struct {
	Config *Config
	Store  store.AttendanceStore
	Source *biostar.SQLSource
	Engine *attend.Reconciler
	Auth   *Auth
}

func NewService(configPath string) (*Service, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	st, err := NewStore(config.Database.DSN, "")
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	source, err := biostar.NewSQLSource(biostar.Config{
		Driver:           config.Biostar.Driver,
		DSN:              config.Biostar.DSN,
		Table:            config.Biostar.Table,
		QueryTimeout:     time.Duration(config.Biostar.QueryTimeoutSeconds) * time.Second,
		OffsetMinutes:    config.Biostar.ClockOffsetMinutes,
		ExcludedPrefixes: config.Biostar.ExcludedDevicePrefixes,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to init punch source: %w", err)
	}

	auth, err := NewAuth(config)
	if err != nil {
		st.Close()
		source.Close()
		return nil, fmt.Errorf("failed to init auth: %w", err)
	}

	engine := attend.NewReconciler(
		source,
		st,
		config.Biostar.ClockOffsetMinutes,
		config.Attendance.BatchParallelism,
	)

	return &Service{
		Config: config,
		Store:  st,
		Source: source,
		Engine: engine,
		Auth:   auth,
	}, nil
}

func (s *Service) ValidateAuthAndOperator(r *http.Request, campus, operator string) error {
	if !s.Config.Server.EnableAuth {
		return nil
	}

	authHeader := r.Header.Get(s.Auth.tokenHeader)
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return fmt.Errorf("Invalid authorization header format")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")

	return s.Auth.ValidateToken(r.Context(), campus, operator, token)
}

func (s *Service) ValidateHeaders(headers map[string][]string) bool {
	for _, required := range s.Config.API.RequiredHeaders {
		value := headers[http.CanonicalHeaderKey(required.Name)]
		if len(value) == 0 || !strings.EqualFold(value[0], required.Value) {
			return false
		}
	}
	return true
}

// ReconcileStoredSession loads one registered session window and its
// group roster from the store and runs the engine on it.
func (s *Service) ReconcileStoredSession(ctx context.Context, sessionID, sessionType, date string) (*attend.SessionResult, error) {
	window, err := s.Store.GetSessionWindow(sessionID, sessionType, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load session window: %w", err)
	}
	if window == nil {
		return nil, fmt.Errorf("no session window registered for %s/%s on %s", sessionType, sessionID, date)
	}

	roster, err := s.Store.ListRoster(window.GroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster for group %s: %w", window.GroupID, err)
	}

	return s.Engine.ReconcileSession(ctx, attend.SessionInput{
		Window: *window,
		Roster: roster,
	})
}

// ReconcileDate runs the engine over every session window registered for
// the date. Per-session failures land in the batch error list.
func (s *Service) ReconcileDate(ctx context.Context, date string) (*attend.BatchResult, error) {
	windows, err := s.Store.ListSessionWindows(date)
	if err != nil {
		return nil, fmt.Errorf("failed to list session windows for %s: %w", date, err)
	}

	inputs := make([]attend.SessionInput, 0, len(windows))
	for _, w := range windows {
		roster, err := s.Store.ListRoster(w.GroupID)
		if err != nil {
			return nil, fmt.Errorf("failed to load roster for group %s: %w", w.GroupID, err)
		}
		inputs = append(inputs, attend.SessionInput{Window: w, Roster: roster})
	}

	return s.Engine.ReconcileBatch(ctx, inputs), nil
}

func (s *Service) Close() error {
	var errs []error

	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := s.Source.Close(); err != nil {
		errs = append(errs, fmt.Errorf("punch source: %w", err))
	}
	if err := s.Auth.Close(); err != nil {
		errs = append(errs, fmt.Errorf("auth: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing: %v", errs)
	}
	return nil
}
