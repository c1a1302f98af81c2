// internal/biostar/source.go
package biostar

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/campuspointe/pointage/internal/attend"
	"github.com/campuspointe/pointage/internal/models"
)

// The terminal log table stores the subject matricule redundantly in two
// columns and the scan time as a string in server-local time. We depend
// on these seven logical fields and nothing else of the Biostar schema.
type punchRow struct {
	DevUID  sql.NullString `db:"devuid"`
	UserID  sql.NullString `db:"user_id"`
	DevDT   sql.NullString `db:"devdt"`
	DevID   sql.NullString `db:"devid"`
	DevNM   sql.NullString `db:"devnm"`
	BsEvtDT sql.NullString `db:"bsevtdt"`
	UserNM  sql.NullString `db:"usernm"`
}

type Config struct {
	Driver           string
	DSN              string
	Table            string
	QueryTimeout     time.Duration
	OffsetMinutes    int
	ExcludedPrefixes []string
}

// SQLSource reads the terminal punch log over a plain SQL connection.
// Read-only; all failures surface wrapped in attend.ErrSourceUnavailable.
type SQLSource struct {
	db      *sqlx.DB
	convert func(string) string
	cfg     Config
}

func NewSQLSource(cfg Config) (*SQLSource, error) {
	if cfg.Table == "" {
		cfg.Table = "punch_log"
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 10 * time.Second
	}

	db, err := sqlx.Connect(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to punch log: %w", err)
	}

	convert := func(q string) string { return q }
	if cfg.Driver == "postgres" {
		convert = func(query string) string {
			out := query
			for i := 1; strings.Contains(out, "?"); i++ {
				out = strings.Replace(out, "?", fmt.Sprintf("$%d", i), 1)
			}
			return out
		}
	}

	return &SQLSource{db: db, convert: convert, cfg: cfg}, nil
}

func (s *SQLSource) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// FetchPunches queries the device log for one local date and clock range.
// The bounds are shifted to terminal-server time before querying, since
// the server clock runs offset from ours. Turnstile-style terminals are
// excluded by name prefix server-side; subject restriction uses both
// redundant matricule columns.
func (s *SQLSource) FetchPunches(ctx context.Context, q attend.PunchQuery) ([]models.PunchRecord, error) {
	startBound, endBound, err := s.serverBounds(q)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", attend.ErrSourceUnavailable, err)
	}

	query := fmt.Sprintf(`
		SELECT devuid, user_id, devdt, devid, devnm, bsevtdt, usernm
		FROM %s
		WHERE devdt >= ? AND devdt <= ?
	`, s.cfg.Table)
	args := []interface{}{startBound, endBound}

	for _, prefix := range s.cfg.ExcludedPrefixes {
		query += " AND UPPER(devnm) NOT LIKE ?"
		args = append(args, strings.ToUpper(prefix)+"%")
	}

	if len(q.SubjectIDs) > 0 {
		inQuery, inArgs, err := sqlx.In(
			" AND (devuid IN (?) OR user_id IN (?))",
			q.SubjectIDs, q.SubjectIDs,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: building subject filter: %v", attend.ErrSourceUnavailable, err)
		}
		query += inQuery
		args = append(args, inArgs...)
	}

	query += " ORDER BY devdt ASC"

	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	var rows []punchRow
	if err := s.db.SelectContext(ctx, &rows, s.convert(query), args...); err != nil {
		return nil, fmt.Errorf("%w: %v", attend.ErrSourceUnavailable, err)
	}

	logger.Debug.Printf("punch log returned %d rows for %s [%s, %s]", len(rows), q.Date, q.StartClock, q.EndClock)

	punches := make([]models.PunchRecord, 0, len(rows))
	for _, row := range rows {
		p := row.toRecord()
		if !deviceAllowed(p, q.DeviceIDs, q.DeviceNames) {
			continue
		}
		punches = append(punches, p)
	}

	return punches, nil
}

// serverBounds converts the requested local window into terminal-server
// time strings comparable against devdt.
func (s *SQLSource) serverBounds(q attend.PunchQuery) (string, string, error) {
	start, err := time.ParseInLocation(
		models.DateLayout+" "+models.ClockLayout, q.Date+" "+q.StartClock, time.Local,
	)
	if err != nil {
		return "", "", fmt.Errorf("bad start bound %q: %w", q.StartClock, err)
	}
	end, err := time.ParseInLocation(
		models.DateLayout+" "+models.ClockLayout, q.Date+" "+q.EndClock, time.Local,
	)
	if err != nil {
		return "", "", fmt.Errorf("bad end bound %q: %w", q.EndClock, err)
	}

	offset := time.Duration(s.cfg.OffsetMinutes) * time.Minute
	start = start.Add(-offset)
	end = end.Add(-offset)

	const bound = "2006-01-02 15:04:05"
	return start.Format(bound), end.Add(59 * time.Second).Format(bound), nil
}

func (r punchRow) toRecord() models.PunchRecord {
	subject := r.DevUID.String
	if subject == "" {
		subject = r.UserID.String
	}
	raw := r.DevDT.String
	if raw == "" {
		raw = r.BsEvtDT.String
	}
	return models.PunchRecord{
		SubjectID:   subject,
		SubjectName: r.UserNM.String,
		Raw:         raw,
		DeviceID:    r.DevID.String,
		DeviceName:  r.DevNM.String,
	}
}

// deviceAllowed is the coarse source-level pass. Both sets nil means no
// filtering; any non-nil set restricts to its members, so two empty
// non-nil sets reject everything.
func deviceAllowed(p models.PunchRecord, ids, names []string) bool {
	if ids == nil && names == nil {
		return true
	}
	for _, id := range ids {
		if id != "" && id == p.DeviceID {
			return true
		}
	}
	name := strings.ToLower(strings.TrimSpace(p.DeviceName))
	for _, allowed := range names {
		if strings.ToLower(strings.TrimSpace(allowed)) == name && name != "" {
			return true
		}
	}
	return false
}
