package models

type Status string

const (
	StatusPresent      Status = "present"
	StatusLate         Status = "late"
	StatusAbsent       Status = "absent"
	StatusLeftEarly    Status = "left_early"
	StatusPendingEntry Status = "pending_entry"
	StatusPendingExit  Status = "pending_exit"
)

// AttendanceVerdict is one subject's outcome for one session. Punch
// metadata stays attached even when a manual override replaced the
// derived status.
type AttendanceVerdict struct {
	SubjectID   string `json:"subject_id"`
	SubjectName string `json:"subject_name,omitempty"`
	Status      Status `json:"status"`

	PunchIn  *PunchRecord `json:"punch_in,omitempty"`
	PunchOut *PunchRecord `json:"punch_out,omitempty"`

	DeviceName string `json:"device_name,omitempty"`

	ManualOverride bool   `json:"manual_override"`
	OverrideReason string `json:"override_reason,omitempty"`
}

// Summary aggregates one session's verdicts per status.
type Summary struct {
	Total        int `json:"total"`
	Present      int `json:"present"`
	Late         int `json:"late"`
	Absent       int `json:"absent"`
	LeftEarly    int `json:"left_early"`
	PendingEntry int `json:"pending_entry"`
	PendingExit  int `json:"pending_exit"`
	Overridden   int `json:"overridden"`
}

func (s *Summary) Add(v AttendanceVerdict) {
	s.Total++
	if v.ManualOverride {
		s.Overridden++
	}
	switch v.Status {
	case StatusPresent:
		s.Present++
	case StatusLate:
		s.Late++
	case StatusLeftEarly:
		s.LeftEarly++
	case StatusPendingEntry:
		s.PendingEntry++
	case StatusPendingExit:
		s.PendingExit++
	default:
		s.Absent++
	}
}

// Presents counts subjects credited with presence. Call sites disagree on
// whether late counts, so it stays a parameter.
func (s Summary) Presents(lateCounts bool) int {
	n := s.Present + s.LeftEarly
	if lateCounts {
		n += s.Late
	}
	return n
}

// Absents counts subjects without presence credit. Partial bi-check
// compliance never earns credit, so both pending states land here.
func (s Summary) Absents(lateCounts bool) int {
	n := s.Absent + s.PendingEntry + s.PendingExit
	if !lateCounts {
		n += s.Late
	}
	return n
}
