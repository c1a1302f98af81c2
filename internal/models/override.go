package models

import (
	"github.com/go-playground/validator/v10"
)

// Override is a human-entered attendance record. It is keyed by
// (subject, session, session_type, date) and its status always wins over
// the derived verdict. Status carries the vocabulary of the registrar's
// system, not ours; map it with MappedStatus before use.
type Override struct {
	SubjectID   string `db:"subject_id" json:"subject_id" validate:"required"`
	SessionID   string `db:"session_id" json:"session_id" validate:"required"`
	SessionType string `db:"session_type" json:"session_type" validate:"required,oneof=course exam"`
	Date        string `db:"date" json:"date" validate:"required,datetime=2006-01-02"`
	Status      string `db:"status" json:"status" validate:"required,oneof=present absent retard depart_anticipe absence_justifiee"`
	Reason      string `db:"reason" json:"reason"`
}

// overrideStatuses maps the registrar vocabulary onto verdict statuses.
// A justified absence still counts absent for attendance purposes; the
// justification lives in Reason.
var overrideStatuses = map[string]Status{
	"present":           StatusPresent,
	"absent":            StatusAbsent,
	"retard":            StatusLate,
	"depart_anticipe":   StatusLeftEarly,
	"absence_justifiee": StatusAbsent,
}

func (o *Override) Validate() error {
	validate := validator.New()
	return validate.Struct(o)
}

// MappedStatus translates the external label. ok is false for labels
// outside the known vocabulary.
func (o *Override) MappedStatus() (Status, bool) {
	s, ok := overrideStatuses[o.Status]
	return s, ok
}
