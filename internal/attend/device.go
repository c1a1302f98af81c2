package attend

import (
	"strings"

	"github.com/campuspointe/pointage/internal/models"
)

// DeviceAuthorized decides whether a punch comes from a terminal that may
// vouch for this session:
//
//	no room configured            -> accept everything
//	room with assigned devices    -> accept only those devices
//	room with zero devices        -> accept nothing (misconfigured room,
//	                                 never "no restriction")
//
// Device id match takes priority; device name is the fallback,
// case-insensitive and trimmed.
func DeviceAuthorized(p models.PunchRecord, w *models.SessionWindow) bool {
	if !w.RoomConfigured {
		return true
	}

	for _, id := range w.DeviceIDs {
		if id != "" && id == p.DeviceID {
			return true
		}
	}

	name := strings.ToLower(strings.TrimSpace(p.DeviceName))
	if name == "" {
		return false
	}
	for _, allowed := range w.DeviceNames {
		if strings.ToLower(strings.TrimSpace(allowed)) == name {
			return true
		}
	}

	return false
}
