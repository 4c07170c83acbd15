package chrono

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// MinCheckInterval is the smallest gap allowed between two scheduled runs.
const MinCheckInterval = time.Minute

// flooredSchedule never fires sooner than `floor` after the previous activation.
type flooredSchedule struct {
	inner cron.Schedule
	floor time.Duration
}

func (s flooredSchedule) Next(t time.Time) time.Time {
	next := s.inner.Next(t)
	earliest := t.Add(s.floor)
	if next.Before(earliest) {
		return earliest
	}
	return next
}

// NewSchedule builds the schedule of the periodic check. A non-empty cron
// spec (standard 5 field syntax or descriptors like "@hourly") wins over
// minutes. It returns nil when neither is set, meaning periodic checks are
// disabled. Both forms are floored to MinCheckInterval.
func NewSchedule(minutes float64, spec string) (cron.Schedule, error) {
	if spec != "" {
		parsed, err := cron.ParseStandard(spec)
		if err != nil {
			return nil, fmt.Errorf("parse check schedule %q: %w", spec, err)
		}
		return flooredSchedule{inner: parsed, floor: MinCheckInterval}, nil
	}
	if minutes < 0 {
		return nil, fmt.Errorf("check interval must not be negative, got %v minutes", minutes)
	}
	if minutes == 0 {
		return nil, nil
	}

	interval := time.Duration(minutes * float64(time.Minute))
	if interval < MinCheckInterval {
		interval = MinCheckInterval
	}
	return flooredSchedule{inner: cron.Every(interval), floor: MinCheckInterval}, nil
}
