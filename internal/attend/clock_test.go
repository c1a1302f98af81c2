package attend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePunchTime(t *testing.T) {
	testCases := []struct {
		name        string
		raw         string
		sessionDate string
		offset      int
		want        string
		ok          bool
	}{
		{
			name:        "exact layout, no offset",
			raw:         "2025-11-26 08:10:00",
			sessionDate: "2025-11-26",
			offset:      0,
			want:        "2025-11-26 08:10:00",
			ok:          true,
		},
		{
			name:        "terminal server runs an hour behind",
			raw:         "2025-11-26 07:10:00",
			sessionDate: "2025-11-26",
			offset:      60,
			want:        "2025-11-26 08:10:00",
			ok:          true,
		},
		{
			name:        "sub-second precision stripped before parsing",
			raw:         "2025-11-26 08:10:00.497",
			sessionDate: "2025-11-26",
			offset:      0,
			want:        "2025-11-26 08:10:00",
			ok:          true,
		},
		{
			name:        "fallback T-separated layout",
			raw:         "2025-11-26T08:10:05",
			sessionDate: "2025-11-26",
			offset:      0,
			want:        "2025-11-26 08:10:05",
			ok:          true,
		},
		{
			name:        "fallback layout without seconds",
			raw:         "2025-11-26 08:10",
			sessionDate: "2025-11-26",
			offset:      0,
			want:        "2025-11-26 08:10:00",
			ok:          true,
		},
		{
			name:        "offset pushes punch across midnight, rejected",
			raw:         "2025-11-26 23:30:00",
			sessionDate: "2025-11-26",
			offset:      60,
			ok:          false,
		},
		{
			name:        "punch from another day never matches this session",
			raw:         "2025-11-25 08:10:00",
			sessionDate: "2025-11-26",
			offset:      0,
			ok:          false,
		},
		{
			name:        "garbage timestamp",
			raw:         "pas une date",
			sessionDate: "2025-11-26",
			offset:      0,
			ok:          false,
		},
		{
			name:        "empty timestamp",
			raw:         "",
			sessionDate: "2025-11-26",
			offset:      0,
			ok:          false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NormalizePunchTime(tc.raw, tc.sessionDate, tc.offset)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				want, err := time.ParseInLocation("2006-01-02 15:04:05", tc.want, time.Local)
				require.NoError(t, err)
				assert.True(t, got.Equal(want), "got %s, want %s", got, want)
			}
		})
	}
}
