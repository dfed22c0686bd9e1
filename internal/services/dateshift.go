// Package services holds the ledger rules, written once over the
// backend.Store contract.
//
// This file implements the Strategy Pattern for recurring occurrence dates.
// Each frequency type (none, daily, weekly, monthly, yearly) has its own
// shifter that computes the n-th occurrence from the first one.
package services

import (
	"fmt"
	"time"

	"myfinance/internal/core"
)

// Shifter is the strategy interface for stepping a recurring series forward.
type Shifter interface {
	// Shift returns the occurrence step periods after anchor. dayAnchor is the
	// preferred day of month; zero means the anchor's own day.
	Shift(anchor time.Time, step, dayAnchor int) time.Time
}

// NoneShifter keeps every occurrence on the anchor date.
type NoneShifter struct{}

func (NoneShifter) Shift(anchor time.Time, _, _ int) time.Time { return anchor }

// DailyShifter adds whole calendar days.
type DailyShifter struct{}

func (DailyShifter) Shift(anchor time.Time, step, _ int) time.Time {
	return anchor.AddDate(0, 0, step)
}

// WeeklyShifter adds whole weeks.
type WeeklyShifter struct{}

func (WeeklyShifter) Shift(anchor time.Time, step, _ int) time.Time {
	return anchor.AddDate(0, 0, 7*step)
}

// MonthlyShifter moves by calendar months, clamping the day to the target
// month's length instead of overflowing into the next month.
type MonthlyShifter struct {
	// Months per step; 12 for yearly series.
	Months int
}

func (m MonthlyShifter) Shift(anchor time.Time, step, dayAnchor int) time.Time {
	return addMonths(anchor, m.Months*step, dayAnchor)
}

// shifters maps frequencies to their strategies.
var shifters = map[core.FrequencyType]Shifter{
	core.FrequencyNone: NoneShifter{},
	core.Daily:         DailyShifter{},
	core.Weekly:        WeeklyShifter{},
	core.Monthly:       MonthlyShifter{Months: 1},
	core.Yearly:        MonthlyShifter{Months: 12},
}

// GetShifter returns the shifter for a frequency.
func GetShifter(freq core.FrequencyType) (Shifter, error) {
	s, ok := shifters[freq]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", freq)
	}
	return s, nil
}

// ShiftOccurrence computes the date of occurrence step (0-based) of a
// series anchored at anchor, then applies the weekend policy. Time of day
// and location of the anchor are preserved. Unknown frequencies behave
// like none.
func ShiftOccurrence(anchor time.Time, freq core.FrequencyType, step, dayAnchor int, policy core.WeekendPolicy) time.Time {
	s, err := GetShifter(freq)
	if err != nil {
		s = NoneShifter{}
	}
	return AdjustWeekend(s.Shift(anchor, step, dayAnchor), policy)
}

// AdjustWeekend moves a Saturday or Sunday according to policy; weekdays
// and the exact policy are returned unchanged.
func AdjustWeekend(t time.Time, policy core.WeekendPolicy) time.Time {
	wd := t.Weekday()
	if wd != time.Saturday && wd != time.Sunday {
		return t
	}
	// Days past Friday: Saturday 1, Sunday 2.
	past := 1
	if wd == time.Sunday {
		past = 2
	}
	switch policy {
	case core.WeekendMonday:
		return t.AddDate(0, 0, 3-past)
	case core.WeekendFriday:
		return t.AddDate(0, 0, -past)
	case core.WeekendThursday:
		return t.AddDate(0, 0, -past-1)
	default:
		return t
	}
}

func addMonths(t time.Time, months, dayAnchor int) time.Time {
	total := t.Year()*12 + int(t.Month()) - 1 + months
	year, month := total/12, time.Month(total%12+1)

	day := dayAnchor
	if day <= 0 {
		day = t.Day()
	}
	if last := daysIn(year, month, t.Location()); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
