package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetCurrentWeek(t *testing.T) {
	cases := []struct {
		now         time.Time
		expectStart time.Time
		expectStop  time.Time
	}{
		{
			now:         time.Date(2024, time.December, 11, 15, 30, 0, 0, Location),
			expectStart: time.Date(2024, time.December, 8, 0, 0, 0, 0, Location),
			expectStop:  time.Date(2024, time.December, 14, 0, 0, 0, 0, Location),
		},
		{
			// sunday maps onto itself
			now:         time.Date(2024, time.December, 8, 0, 0, 0, 0, Location),
			expectStart: time.Date(2024, time.December, 8, 0, 0, 0, 0, Location),
			expectStop:  time.Date(2024, time.December, 14, 0, 0, 0, 0, Location),
		},
		{
			// week spanning a month boundary
			now:         time.Date(2025, time.January, 2, 0, 0, 0, 0, Location),
			expectStart: time.Date(2024, time.December, 29, 0, 0, 0, 0, Location),
			expectStop:  time.Date(2025, time.January, 4, 0, 0, 0, 0, Location),
		},
	}

	for _, test := range cases {
		start, stop := GetCurrentWeek(test.now)
		require.Equal(t, test.expectStart, start)
		require.Equal(t, test.expectStop, stop)
	}
}
