package attend

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/campuspointe/pointage/internal/models"
)

type MockSource struct {
	mock.Mock
}

func (m *MockSource) FetchPunches(ctx context.Context, q PunchQuery) ([]models.PunchRecord, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PunchRecord), args.Error(1)
}

type MockOverrides struct {
	mock.Mock
}

func (m *MockOverrides) GetOverride(subjectID, sessionID, sessionType, date string) (*models.Override, error) {
	args := m.Called(subjectID, sessionID, sessionType, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Override), args.Error(1)
}

func rawPunch(subject, clock string) models.PunchRecord {
	return models.PunchRecord{
		SubjectID:  subject,
		Raw:        "2025-11-26 " + clock,
		DeviceID:   "42",
		DeviceName: "LECTEUR-B12",
	}
}

func roster(ids ...string) []models.RosterEntry {
	entries := make([]models.RosterEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, models.RosterEntry{SubjectID: id, GroupID: "L2-INFO"})
	}
	return entries
}

func TestReconcileSession_Normal(t *testing.T) {
	source := new(MockSource)
	overrides := new(MockOverrides)
	engine := NewReconciler(source, overrides, 0, 1)

	input := SessionInput{
		Window: *normalWindow(),
		Roster: roster("ET04512", "ET04513", "ET04514"),
	}

	source.On("FetchPunches", mock.Anything, mock.Anything).Return([]models.PunchRecord{
		rawPunch("ET04512", "08:10:00"),
		rawPunch("ET04513", "08:05:00"),
		rawPunch("ET04513", "08:40:00"),
	}, nil).Once()
	overrides.On("GetOverride", mock.Anything, "INF201", "course", "2025-11-26").
		Return(nil, nil).Times(3)

	result, err := engine.ReconcileSession(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, result.Verdicts, 3)

	byID := map[string]models.AttendanceVerdict{}
	for _, v := range result.Verdicts {
		byID[v.SubjectID] = v
	}

	assert.Equal(t, models.StatusPresent, byID["ET04512"].Status)
	// the final badge decides, and it was inside tolerance
	assert.Equal(t, models.StatusLate, byID["ET04513"].Status)
	assert.Equal(t, models.StatusAbsent, byID["ET04514"].Status)

	assert.Equal(t, "LECTEUR-B12", byID["ET04512"].DeviceName)
	assert.Equal(t, 1, result.Summary.Present)
	assert.Equal(t, 1, result.Summary.Late)
	assert.Equal(t, 1, result.Summary.Absent)

	source.AssertExpectations(t)
	overrides.AssertExpectations(t)
}

func TestReconcileSession_ClockOffset(t *testing.T) {
	source := new(MockSource)
	overrides := new(MockOverrides)
	engine := NewReconciler(source, overrides, 60, 1)

	input := SessionInput{
		Window: *normalWindow(),
		Roster: roster("ET04512"),
	}

	// stored in terminal-server time, one hour behind
	source.On("FetchPunches", mock.Anything, mock.Anything).Return([]models.PunchRecord{
		rawPunch("ET04512", "07:10:00"),
	}, nil).Once()
	overrides.On("GetOverride", "ET04512", "INF201", "course", "2025-11-26").
		Return(nil, nil).Once()

	result, err := engine.ReconcileSession(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, result.Verdicts, 1)
	assert.Equal(t, models.StatusPresent, result.Verdicts[0].Status)
}

func TestReconcileSession_OverridePrecedence(t *testing.T) {
	source := new(MockSource)
	overrides := new(MockOverrides)
	engine := NewReconciler(source, overrides, 0, 1)

	input := SessionInput{
		Window: *normalWindow(),
		Roster: roster("ET04512"),
	}

	source.On("FetchPunches", mock.Anything, mock.Anything).Return([]models.PunchRecord{
		rawPunch("ET04512", "08:40:00"), // derived would be late
	}, nil).Once()
	overrides.On("GetOverride", "ET04512", "INF201", "course", "2025-11-26").
		Return(&models.Override{
			SubjectID:   "ET04512",
			SessionID:   "INF201",
			SessionType: "course",
			Date:        "2025-11-26",
			Status:      "present",
			Reason:      "badge défectueux",
		}, nil).Once()

	result, err := engine.ReconcileSession(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, result.Verdicts, 1)

	v := result.Verdicts[0]
	assert.Equal(t, models.StatusPresent, v.Status)
	assert.True(t, v.ManualOverride)
	assert.Equal(t, "badge défectueux", v.OverrideReason)
	// punch metadata survives the override
	require.NotNil(t, v.PunchIn)
	assert.Equal(t, "LECTEUR-B12", v.DeviceName)
	assert.Equal(t, 1, result.Summary.Overridden)
}

func TestReconcileSession_AmbiguousOverrideIsWarnedNotResolved(t *testing.T) {
	source := new(MockSource)
	overrides := new(MockOverrides)
	engine := NewReconciler(source, overrides, 0, 1)

	input := SessionInput{
		Window: *normalWindow(),
		Roster: roster("ET04512"),
	}

	source.On("FetchPunches", mock.Anything, mock.Anything).Return([]models.PunchRecord{
		rawPunch("ET04512", "08:10:00"),
	}, nil).Once()
	overrides.On("GetOverride", "ET04512", "INF201", "course", "2025-11-26").
		Return(nil, fmt.Errorf("%w: 2 rows", ErrAmbiguousOverride)).Once()

	result, err := engine.ReconcileSession(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, result.Verdicts, 1)
	assert.Equal(t, models.StatusPresent, result.Verdicts[0].Status)
	assert.False(t, result.Verdicts[0].ManualOverride)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "override lookup")
}

func TestReconcileSession_UnknownOverrideLabelKeepsDerived(t *testing.T) {
	source := new(MockSource)
	overrides := new(MockOverrides)
	engine := NewReconciler(source, overrides, 0, 1)

	input := SessionInput{
		Window: *normalWindow(),
		Roster: roster("ET04512"),
	}

	source.On("FetchPunches", mock.Anything, mock.Anything).Return([]models.PunchRecord{
		rawPunch("ET04512", "08:10:00"),
	}, nil).Once()
	overrides.On("GetOverride", "ET04512", "INF201", "course", "2025-11-26").
		Return(&models.Override{Status: "excuse"}, nil).Once()

	result, err := engine.ReconcileSession(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPresent, result.Verdicts[0].Status)
	assert.False(t, result.Verdicts[0].ManualOverride)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "unknown status")
}

func TestReconcileSession_BiCheckPartialCompliance(t *testing.T) {
	source := new(MockSource)
	overrides := new(MockOverrides)
	engine := NewReconciler(source, overrides, 0, 1)

	input := SessionInput{
		Window: *bicheckWindow(),
		Roster: roster("ET04512", "ET04513", "ET04514"),
	}

	source.On("FetchPunches", mock.Anything, mock.Anything).Return([]models.PunchRecord{
		rawPunch("ET04512", "09:10:00"), // entry only
		rawPunch("ET04513", "10:15:00"), // between windows
	}, nil).Once()
	overrides.On("GetOverride", mock.Anything, "EXM07", "exam", "2025-11-26").
		Return(nil, nil).Times(3)

	result, err := engine.ReconcileSession(context.Background(), input)
	require.NoError(t, err)

	byID := map[string]models.AttendanceVerdict{}
	for _, v := range result.Verdicts {
		byID[v.SubjectID] = v
	}

	assert.Equal(t, models.StatusPendingExit, byID["ET04512"].Status)
	assert.Equal(t, models.StatusPendingEntry, byID["ET04513"].Status)
	assert.Equal(t, models.StatusAbsent, byID["ET04514"].Status)

	// partial compliance never earns presence credit
	assert.Equal(t, 3, result.Summary.Absents(true))
	assert.Equal(t, 0, result.Summary.Presents(true))
}

func TestReconcileSession_UnequippedRoomRejectsAll(t *testing.T) {
	source := new(MockSource)
	overrides := new(MockOverrides)
	engine := NewReconciler(source, overrides, 0, 1)

	window := *normalWindow()
	window.RoomConfigured = true // salle assigned, zero devices

	input := SessionInput{
		Window: window,
		Roster: roster("ET04512"),
	}

	source.On("FetchPunches", mock.Anything, mock.MatchedBy(func(q PunchQuery) bool {
		// coarse filter must stay off so the warning can count ignored punches
		return q.DeviceIDs == nil && q.DeviceNames == nil
	})).Return([]models.PunchRecord{
		rawPunch("ET04512", "08:10:00"),
		rawPunch("ET04512", "08:12:00"),
	}, nil).Once()
	overrides.On("GetOverride", "ET04512", "INF201", "course", "2025-11-26").
		Return(nil, nil).Once()

	result, err := engine.ReconcileSession(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAbsent, result.Verdicts[0].Status)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "no devices assigned")
}

func TestReconcileSession_MalformedWindow(t *testing.T) {
	engine := NewReconciler(new(MockSource), new(MockOverrides), 0, 1)

	window := *normalWindow()
	window.NominalEnd = "07:00" // ends before it starts

	_, err := engine.ReconcileSession(context.Background(), SessionInput{Window: window})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedWindow))
}

func TestReconcileSession_OverlappingBiCheckWindowsRejected(t *testing.T) {
	engine := NewReconciler(new(MockSource), new(MockOverrides), 0, 1)

	window := *bicheckWindow()
	window.Tolerance = 150 // entry window would swallow the exit window

	_, err := engine.ReconcileSession(context.Background(), SessionInput{Window: window})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedWindow))
}

func TestReconcileBatch_IsolatesSessionFailures(t *testing.T) {
	source := new(MockSource)
	overrides := new(MockOverrides)
	// parallelism 1 keeps the mock call order deterministic
	engine := NewReconciler(source, overrides, 0, 1)

	good := *normalWindow()
	bad := *normalWindow()
	bad.SessionID = "INF202"

	inputs := []SessionInput{
		{Window: good, Roster: roster("ET04512")},
		{Window: bad, Roster: roster("ET04512")},
	}

	source.On("FetchPunches", mock.Anything, mock.Anything).
		Return([]models.PunchRecord{rawPunch("ET04512", "08:10:00")}, nil).Once()
	source.On("FetchPunches", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: connection refused", ErrSourceUnavailable)).Once()
	overrides.On("GetOverride", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, nil).Maybe()

	batch := engine.ReconcileBatch(context.Background(), inputs)

	assert.NotEmpty(t, batch.RunID)
	assert.Len(t, batch.Results, 1)
	require.Len(t, batch.Errors, 1)
	assert.Contains(t, batch.Errors[0].Reason, "punch source unavailable")
}

func TestReconcileSession_Idempotent(t *testing.T) {
	source := new(MockSource)
	overrides := new(MockOverrides)
	engine := NewReconciler(source, overrides, 0, 1)

	input := SessionInput{
		Window: *normalWindow(),
		Roster: roster("ET04512", "ET04513"),
	}

	source.On("FetchPunches", mock.Anything, mock.Anything).Return([]models.PunchRecord{
		rawPunch("ET04512", "08:10:00"),
	}, nil).Twice()
	overrides.On("GetOverride", mock.Anything, "INF201", "course", "2025-11-26").
		Return(nil, nil).Times(4)

	first, err := engine.ReconcileSession(context.Background(), input)
	require.NoError(t, err)
	second, err := engine.ReconcileSession(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, first.Verdicts, second.Verdicts)
	assert.Equal(t, first.Summary, second.Summary)
}
