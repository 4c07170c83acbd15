package chrono

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewScheduleDisabled(t *testing.T) {
	schedule, err := NewSchedule(0, "")
	require.NoError(t, err)
	require.Nil(t, schedule)
}

func TestNewScheduleNegative(t *testing.T) {
	_, err := NewSchedule(-1, "")
	require.Error(t, err)
}

func TestNewScheduleMinutes(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		minutes  float64
		expected time.Duration
	}{
		{minutes: 5, expected: 5 * time.Minute},
		{minutes: 1.5, expected: 90 * time.Second},
		// floored to one minute
		{minutes: 0.1, expected: time.Minute},
	}

	for _, test := range testCases {
		schedule, err := NewSchedule(test.minutes, "")
		require.NoError(t, err)
		require.Equal(t, start.Add(test.expected), schedule.Next(start))
	}
}

func TestNewScheduleCron(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	schedule, err := NewSchedule(5, "0 * * * *")
	require.NoError(t, err)
	require.Equal(t, start.Add(time.Hour), schedule.Next(start))

	// every second is not allowed to run more than once a minute
	schedule, err = NewSchedule(0, "@every 1s")
	require.NoError(t, err)
	require.Equal(t, start.Add(time.Minute), schedule.Next(start))

	_, err = NewSchedule(0, "not a cron")
	require.Error(t, err)
}
