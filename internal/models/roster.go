package models

import (
	"github.com/go-playground/validator/v10"
)

// RosterEntry is the minimal identity the engine needs per expected
// subject. SubjectID matches the terminal-side matricule.
type RosterEntry struct {
	SubjectID string `db:"subject_id" json:"subject_id" validate:"required"`
	FullName  string `db:"full_name" json:"full_name"`
	GroupID   string `db:"group_id" json:"group_id" validate:"required"`
}

func (e *RosterEntry) Validate() error {
	validate := validator.New()
	return validate.Struct(e)
}
