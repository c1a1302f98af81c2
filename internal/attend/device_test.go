package attend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/campuspointe/pointage/internal/models"
)

func TestDeviceAuthorized(t *testing.T) {
	punch := func(id, name string) models.PunchRecord {
		return models.PunchRecord{DeviceID: id, DeviceName: name}
	}

	testCases := []struct {
		name   string
		punch  models.PunchRecord
		window models.SessionWindow
		want   bool
	}{
		{
			name:   "no room configured accepts anything",
			punch:  punch("42", "LECTEUR-B12"),
			window: models.SessionWindow{RoomConfigured: false},
			want:   true,
		},
		{
			name:  "no room configured ignores any device lists",
			punch: punch("42", "LECTEUR-B12"),
			window: models.SessionWindow{
				RoomConfigured: false,
				DeviceIDs:      []string{"99"},
			},
			want: true,
		},
		{
			name:   "room with zero devices rejects everything",
			punch:  punch("42", "LECTEUR-B12"),
			window: models.SessionWindow{RoomConfigured: true},
			want:   false,
		},
		{
			name:  "device id match",
			punch: punch("42", "LECTEUR-B12"),
			window: models.SessionWindow{
				RoomConfigured: true,
				DeviceIDs:      []string{"41", "42"},
			},
			want: true,
		},
		{
			name:  "device name match is case-insensitive and trimmed",
			punch: punch("42", "  lecteur-b12 "),
			window: models.SessionWindow{
				RoomConfigured: true,
				DeviceNames:    []string{"LECTEUR-B12"},
			},
			want: true,
		},
		{
			name:  "matching neither set is rejected even when one set is empty",
			punch: punch("42", "LECTEUR-B12"),
			window: models.SessionWindow{
				RoomConfigured: true,
				DeviceIDs:      []string{"99"},
			},
			want: false,
		},
		{
			name:  "id mismatch but name fallback saves the punch",
			punch: punch("42", "LECTEUR-B12"),
			window: models.SessionWindow{
				RoomConfigured: true,
				DeviceIDs:      []string{"99"},
				DeviceNames:    []string{"lecteur-b12"},
			},
			want: true,
		},
		{
			name:  "punch with empty id and name never matches a restricted room",
			punch: punch("", ""),
			window: models.SessionWindow{
				RoomConfigured: true,
				DeviceIDs:      []string{""},
				DeviceNames:    []string{""},
			},
			want: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeviceAuthorized(tc.punch, &tc.window))
		})
	}
}
