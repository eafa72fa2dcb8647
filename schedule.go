package linux_agent

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type (
	// Schedule is a parsed work schedule: daily office hours with optional
	// breaks. The agent only simulates activity while the schedule is active.
	Schedule struct {
		start  int // minutes from midnight
		end    int
		breaks []breakWindow
	}

	breakWindow struct {
		start int
		end   int
	}
)

// ParseSchedule validates and converts the raw config shape. Schedules that
// would span midnight are rejected, as are breaks falling outside the work
// hours.
func ParseSchedule(cfg ScheduleConfig) (*Schedule, error) {
	start, err := parseClock(cfg.Start)
	if err != nil {
		return nil, fmt.Errorf("schedule start: %w", err)
	}
	end, err := parseClock(cfg.End)
	if err != nil {
		return nil, fmt.Errorf("schedule end: %w", err)
	}
	if end <= start {
		return nil, fmt.Errorf("schedule end %s is not after start %s", cfg.End, cfg.Start)
	}
	s := &Schedule{start: start, end: end}
	for _, b := range cfg.Breaks {
		bStart, err := parseClock(b.Start)
		if err != nil {
			return nil, fmt.Errorf("break start: %w", err)
		}
		if b.DurationMinutes <= 0 {
			return nil, fmt.Errorf("break duration must be positive, got %d", b.DurationMinutes)
		}
		bEnd := bStart + b.DurationMinutes
		if bStart < start || bEnd > end {
			return nil, fmt.Errorf("break %s+%dm lies outside work hours", b.Start, b.DurationMinutes)
		}
		s.breaks = append(s.breaks, breakWindow{start: bStart, end: bEnd})
	}
	return s, nil
}

// Active reports whether t falls inside work hours and outside all breaks.
func (s *Schedule) Active(t time.Time) bool {
	return s.InWorkHours(t) && !s.InBreak(t)
}

// InWorkHours reports whether t falls inside the [start, end) window.
func (s *Schedule) InWorkHours(t time.Time) bool {
	m := minuteOfDay(t)
	return m >= s.start && m < s.end
}

// InBreak reports whether t falls inside any break window.
func (s *Schedule) InBreak(t time.Time) bool {
	m := minuteOfDay(t)
	for _, b := range s.breaks {
		if m >= b.start && m < b.end {
			return true
		}
	}
	return false
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// parseClock parses a "HH:MM" wall-clock string into minutes from midnight.
func parseClock(clock string) (int, error) {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time '%s', want HH:MM", clock)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in '%s'", clock)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in '%s'", clock)
	}
	return hour*60 + minute, nil
}
