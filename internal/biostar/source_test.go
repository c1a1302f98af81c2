package biostar

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuspointe/pointage/internal/attend"
)

const punchLogSchema = `
CREATE TABLE punch_log (
	devuid TEXT,
	user_id TEXT,
	devdt TEXT,
	devid TEXT,
	devnm TEXT,
	bsevtdt TEXT,
	usernm TEXT
)`

type logRow struct {
	devuid, userID, devdt, devid, devnm, bsevtdt, usernm string
}

func newTestSource(t *testing.T, cfg Config, rows []logRow) *SQLSource {
	t.Helper()

	cfg.Driver = "sqlite3"
	cfg.DSN = ":memory:"

	source, err := NewSQLSource(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { source.Close() })

	_, err = source.db.Exec(punchLogSchema)
	require.NoError(t, err)

	for _, r := range rows {
		_, err := source.db.Exec(
			"INSERT INTO punch_log (devuid, user_id, devdt, devid, devnm, bsevtdt, usernm) VALUES (?, ?, ?, ?, ?, ?, ?)",
			r.devuid, r.userID, r.devdt, r.devid, r.devnm, r.bsevtdt, r.usernm,
		)
		require.NoError(t, err)
	}

	return source
}

func baseQuery() attend.PunchQuery {
	return attend.PunchQuery{
		Date:       "2025-11-26",
		StartClock: "08:00",
		EndClock:   "08:45",
	}
}

func TestFetchPunches_TimeBounds(t *testing.T) {
	source := newTestSource(t, Config{}, []logRow{
		{devuid: "ET04512", devdt: "2025-11-26 07:59:59", devnm: "LECTEUR-B12"},
		{devuid: "ET04512", devdt: "2025-11-26 08:00:00", devnm: "LECTEUR-B12"},
		{devuid: "ET04512", devdt: "2025-11-26 08:45:30", devnm: "LECTEUR-B12"},
		{devuid: "ET04512", devdt: "2025-11-26 08:46:00", devnm: "LECTEUR-B12"},
	})

	punches, err := source.FetchPunches(context.Background(), baseQuery())
	require.NoError(t, err)
	require.Len(t, punches, 2)
	// the end bound covers the whole closing minute
	assert.Equal(t, "2025-11-26 08:00:00", punches[0].Raw)
	assert.Equal(t, "2025-11-26 08:45:30", punches[1].Raw)
}

func TestFetchPunches_OffsetShiftsServerBounds(t *testing.T) {
	source := newTestSource(t, Config{OffsetMinutes: 60}, []logRow{
		{devuid: "ET04512", devdt: "2025-11-26 07:10:00", devnm: "LECTEUR-B12"},
		{devuid: "ET04512", devdt: "2025-11-26 08:10:00", devnm: "LECTEUR-B12"},
	})

	punches, err := source.FetchPunches(context.Background(), baseQuery())
	require.NoError(t, err)
	require.Len(t, punches, 1)
	// 07:10 server time is 08:10 local, inside the window
	assert.Equal(t, "2025-11-26 07:10:00", punches[0].Raw)
}

func TestFetchPunches_ExcludedPrefixes(t *testing.T) {
	source := newTestSource(t, Config{ExcludedPrefixes: []string{"TOURNIQUET", "Parking"}}, []logRow{
		{devuid: "ET04512", devdt: "2025-11-26 08:10:00", devnm: "TOURNIQUET-NORD"},
		{devuid: "ET04512", devdt: "2025-11-26 08:11:00", devnm: "tourniquet-sud"},
		{devuid: "ET04512", devdt: "2025-11-26 08:12:00", devnm: "PARKING-P2"},
		{devuid: "ET04512", devdt: "2025-11-26 08:13:00", devnm: "LECTEUR-B12"},
	})

	punches, err := source.FetchPunches(context.Background(), baseQuery())
	require.NoError(t, err)
	require.Len(t, punches, 1)
	assert.Equal(t, "LECTEUR-B12", punches[0].DeviceName)
}

func TestFetchPunches_SubjectFilterUsesBothColumns(t *testing.T) {
	source := newTestSource(t, Config{}, []logRow{
		{devuid: "ET04512", devdt: "2025-11-26 08:10:00", devnm: "LECTEUR-B12"},
		{userID: "ET04513", devdt: "2025-11-26 08:11:00", devnm: "LECTEUR-B12"},
		{devuid: "ET09999", devdt: "2025-11-26 08:12:00", devnm: "LECTEUR-B12"},
	})

	q := baseQuery()
	q.SubjectIDs = []string{"ET04512", "ET04513"}

	punches, err := source.FetchPunches(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, punches, 2)
	assert.Equal(t, "ET04512", punches[0].SubjectID)
	assert.Equal(t, "ET04513", punches[1].SubjectID)
}

func TestFetchPunches_DeviceSetSemantics(t *testing.T) {
	rows := []logRow{
		{devuid: "ET04512", devdt: "2025-11-26 08:10:00", devid: "42", devnm: "LECTEUR-B12"},
		{devuid: "ET04512", devdt: "2025-11-26 08:11:00", devid: "57", devnm: "LECTEUR-C03"},
	}

	t.Run("nil sets pass everything", func(t *testing.T) {
		source := newTestSource(t, Config{}, rows)
		punches, err := source.FetchPunches(context.Background(), baseQuery())
		require.NoError(t, err)
		assert.Len(t, punches, 2)
	})

	t.Run("empty non-nil sets reject everything", func(t *testing.T) {
		source := newTestSource(t, Config{}, rows)
		q := baseQuery()
		q.DeviceIDs = []string{}
		q.DeviceNames = []string{}
		punches, err := source.FetchPunches(context.Background(), q)
		require.NoError(t, err)
		assert.Empty(t, punches)
	})

	t.Run("id match", func(t *testing.T) {
		source := newTestSource(t, Config{}, rows)
		q := baseQuery()
		q.DeviceIDs = []string{"42"}
		q.DeviceNames = []string{}
		punches, err := source.FetchPunches(context.Background(), q)
		require.NoError(t, err)
		require.Len(t, punches, 1)
		assert.Equal(t, "42", punches[0].DeviceID)
	})

	t.Run("name match is case and whitespace insensitive", func(t *testing.T) {
		source := newTestSource(t, Config{}, rows)
		q := baseQuery()
		q.DeviceIDs = []string{}
		q.DeviceNames = []string{"  lecteur-c03 "}
		punches, err := source.FetchPunches(context.Background(), q)
		require.NoError(t, err)
		require.Len(t, punches, 1)
		assert.Equal(t, "LECTEUR-C03", punches[0].DeviceName)
	})
}

func TestFetchPunches_ColumnFallbacks(t *testing.T) {
	source := newTestSource(t, Config{}, []logRow{
		{userID: "ET04513", devdt: "2025-11-26 08:10:00", devnm: "LECTEUR-B12", usernm: "DURAND Sophie"},
	})

	punches, err := source.FetchPunches(context.Background(), baseQuery())
	require.NoError(t, err)
	require.Len(t, punches, 1)
	assert.Equal(t, "ET04513", punches[0].SubjectID)
	assert.Equal(t, "DURAND Sophie", punches[0].SubjectName)
}

func TestFetchPunches_CustomTable(t *testing.T) {
	source := newTestSource(t, Config{Table: "archive_log"}, nil)
	_, err := source.db.Exec(`CREATE TABLE archive_log (
		devuid TEXT, user_id TEXT, devdt TEXT, devid TEXT, devnm TEXT, bsevtdt TEXT, usernm TEXT
	)`)
	require.NoError(t, err)
	_, err = source.db.Exec(
		"INSERT INTO archive_log (devuid, devdt, devnm) VALUES (?, ?, ?)",
		"ET04512", "2025-11-26 08:10:00", "LECTEUR-B12",
	)
	require.NoError(t, err)

	punches, err := source.FetchPunches(context.Background(), baseQuery())
	require.NoError(t, err)
	assert.Len(t, punches, 1)
}
