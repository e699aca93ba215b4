package domain

import "time"

// Clock provides an abstraction for time operations
type Clock interface {
	Now() time.Time
}

// RealClock is the production implementation of Clock
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// FixedClock is used for testing with deterministic time
type FixedClock struct {
	FixedTime time.Time
}

func (f FixedClock) Now() time.Time {
	return f.FixedTime
}

// DayWindow is one calendar day in a given zone, both bounds inclusive.
// End is the last representable instant before the next local midnight, so
// 23- and 25-hour DST days are handled.
type DayWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window
func (w DayWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// DayOf returns the calendar day containing t in loc, shifted by offsetDays.
func DayOf(t time.Time, loc *time.Location, offsetDays int) DayWindow {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day()+offsetDays, 0, 0, 0, 0, loc)
	next := time.Date(local.Year(), local.Month(), local.Day()+offsetDays+1, 0, 0, 0, 0, loc)
	return DayWindow{Start: start, End: next.Add(-time.Nanosecond)}
}

// ReconcileWindows are the two day-aligned ranges a reconciliation run classifies against
type ReconcileWindows struct {
	Today   DayWindow
	Horizon DayWindow
}

// WindowsFor computes today and the expiring-soon horizon relative to now.
func WindowsFor(now time.Time, loc *time.Location, horizonDays int) ReconcileWindows {
	return ReconcileWindows{
		Today:   DayOf(now, loc, 0),
		Horizon: DayOf(now, loc, horizonDays),
	}
}
