package attend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuspointe/pointage/internal/models"
)

func punchAt(t *testing.T, clock string) models.PunchRecord {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", "2025-11-26 "+clock, time.Local)
	require.NoError(t, err)
	return models.PunchRecord{
		SubjectID:  "ET04512",
		Raw:        "2025-11-26 " + clock,
		Normalized: ts,
		DeviceName: "LECTEUR-B12",
	}
}

func normalWindow() *models.SessionWindow {
	return &models.SessionWindow{
		SessionID:     "INF201",
		SessionType:   "course",
		Date:          "2025-11-26",
		PointageStart: "08:00",
		NominalStart:  "08:30",
		NominalEnd:    "10:30",
		Tolerance:     15,
		Mode:          models.ModeNormal,
	}
}

func bicheckWindow() *models.SessionWindow {
	return &models.SessionWindow{
		SessionID:     "EXM07",
		SessionType:   "exam",
		Date:          "2025-11-26",
		PointageStart: "08:30",
		NominalStart:  "09:00",
		NominalEnd:    "11:00",
		Tolerance:     15,
		ExitGrace:     10,
		Mode:          models.ModeBiCheck,
	}
}

func TestMatchNormal(t *testing.T) {
	w := normalWindow()

	t.Run("no punches means no match", func(t *testing.T) {
		assert.Nil(t, MatchNormal(nil, w))
	})

	t.Run("single punch in window", func(t *testing.T) {
		got := MatchNormal([]models.PunchRecord{punchAt(t, "08:10:00")}, w)
		require.NotNil(t, got)
		assert.Equal(t, "2025-11-26 08:10:00", got.Raw)
	})

	t.Run("most recent punch wins, not the first", func(t *testing.T) {
		punches := []models.PunchRecord{
			punchAt(t, "08:05:00"),
			punchAt(t, "08:40:00"),
			punchAt(t, "08:20:00"),
		}
		got := MatchNormal(punches, w)
		require.NotNil(t, got)
		assert.Equal(t, "2025-11-26 08:40:00", got.Raw)
	})

	t.Run("punch past tolerance bound is outside the window", func(t *testing.T) {
		assert.Nil(t, MatchNormal([]models.PunchRecord{punchAt(t, "08:50:00")}, w))
	})

	t.Run("bounds are inclusive", func(t *testing.T) {
		assert.NotNil(t, MatchNormal([]models.PunchRecord{punchAt(t, "08:00:00")}, w))
		assert.NotNil(t, MatchNormal([]models.PunchRecord{punchAt(t, "08:45:00")}, w))
		assert.Nil(t, MatchNormal([]models.PunchRecord{punchAt(t, "07:59:59")}, w))
		assert.Nil(t, MatchNormal([]models.PunchRecord{punchAt(t, "08:45:01")}, w))
	})
}

func TestMatchBiCheck(t *testing.T) {
	w := bicheckWindow()

	t.Run("entry takes the earliest punch, exit the latest", func(t *testing.T) {
		punches := []models.PunchRecord{
			punchAt(t, "08:55:00"),
			punchAt(t, "09:05:00"),
			punchAt(t, "11:02:00"),
			punchAt(t, "11:08:00"),
		}
		entry, exit := MatchBiCheck(punches, w)
		require.NotNil(t, entry)
		require.NotNil(t, exit)
		assert.Equal(t, "2025-11-26 08:55:00", entry.Raw)
		assert.Equal(t, "2025-11-26 11:08:00", exit.Raw)
	})

	t.Run("entry only", func(t *testing.T) {
		entry, exit := MatchBiCheck([]models.PunchRecord{punchAt(t, "09:10:00")}, w)
		require.NotNil(t, entry)
		assert.Nil(t, exit)
	})

	t.Run("exit only", func(t *testing.T) {
		entry, exit := MatchBiCheck([]models.PunchRecord{punchAt(t, "11:05:00")}, w)
		assert.Nil(t, entry)
		require.NotNil(t, exit)
	})

	t.Run("punch between windows matches neither", func(t *testing.T) {
		entry, exit := MatchBiCheck([]models.PunchRecord{punchAt(t, "10:00:00")}, w)
		assert.Nil(t, entry)
		assert.Nil(t, exit)
	})

	t.Run("no punches", func(t *testing.T) {
		entry, exit := MatchBiCheck(nil, w)
		assert.Nil(t, entry)
		assert.Nil(t, exit)
	})
}
