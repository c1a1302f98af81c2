package models

import "time"

// PunchRecord is one terminal scan event, already mapped from the raw
// Biostar column names. Raw keeps the device timestamp exactly as the
// terminal emitted it; Normalized is zero until the clock normalizer
// accepted the punch.
type PunchRecord struct {
	SubjectID   string    `json:"subject_id"`
	SubjectName string    `json:"subject_name,omitempty"`
	Raw         string    `json:"timestamp_raw"`
	Normalized  time.Time `json:"timestamp,omitempty"`
	DeviceID    string    `json:"device_id"`
	DeviceName  string    `json:"device_name"`
}
