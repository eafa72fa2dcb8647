package linux_agent

import (
	"testing"
	"time"
)

func clock(hour, minute int) time.Time {
	return time.Date(2024, 3, 11, hour, minute, 0, 0, time.Local)
}

func officeSchedule(t *testing.T) *Schedule {
	t.Helper()
	s, err := ParseSchedule(ScheduleConfig{
		Start: "09:00",
		End:   "18:00",
		Breaks: []BreakConfig{
			{Start: "13:00", DurationMinutes: 60},
		},
	})
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	return s
}

func TestScheduleActive(t *testing.T) {
	s := officeSchedule(t)
	cases := []struct {
		name   string
		at     time.Time
		active bool
	}{
		{"before work", clock(8, 59), false},
		{"work start", clock(9, 0), true},
		{"mid morning", clock(10, 30), true},
		{"break start", clock(13, 0), false},
		{"mid break", clock(13, 30), false},
		{"break end", clock(14, 0), true},
		{"last minute", clock(17, 59), true},
		{"work end", clock(18, 0), false},
		{"late evening", clock(22, 0), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := s.Active(c.at); got != c.active {
				t.Errorf("Active(%s) = %v, want %v", c.at.Format("15:04"), got, c.active)
			}
		})
	}
}

func TestScheduleNoBreaks(t *testing.T) {
	s, err := ParseSchedule(ScheduleConfig{Start: "08:00", End: "16:00"})
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	if !s.Active(clock(12, 0)) {
		t.Error("schedule without breaks should be active at noon")
	}
	if s.InBreak(clock(12, 0)) {
		t.Error("schedule without breaks reports a break")
	}
}

func TestParseScheduleErrors(t *testing.T) {
	cases := []struct {
		name string
		cfg  ScheduleConfig
	}{
		{"bad start", ScheduleConfig{Start: "late", End: "18:00"}},
		{"bad hour", ScheduleConfig{Start: "25:00", End: "18:00"}},
		{"bad minute", ScheduleConfig{Start: "09:61", End: "18:00"}},
		{"end before start", ScheduleConfig{Start: "18:00", End: "09:00"}},
		{"end equals start", ScheduleConfig{Start: "09:00", End: "09:00"}},
		{
			"break outside hours",
			ScheduleConfig{
				Start:  "09:00",
				End:    "18:00",
				Breaks: []BreakConfig{{Start: "08:00", DurationMinutes: 30}},
			},
		},
		{
			"break past end",
			ScheduleConfig{
				Start:  "09:00",
				End:    "18:00",
				Breaks: []BreakConfig{{Start: "17:45", DurationMinutes: 30}},
			},
		},
		{
			"zero duration break",
			ScheduleConfig{
				Start:  "09:00",
				End:    "18:00",
				Breaks: []BreakConfig{{Start: "13:00", DurationMinutes: 0}},
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := ParseSchedule(c.cfg); err == nil {
				t.Errorf("ParseSchedule(%+v) succeeded, want error", c.cfg)
			}
		})
	}
}
