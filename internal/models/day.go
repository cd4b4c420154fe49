// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package models

import (
	"fmt"
	"time"
)

// DayLayout is the wire and storage format of a Day.
const DayLayout = "2006-01-02"

// Day is a calendar date in UTC with no time-of-day component.
// It is comparable and safe to use as a map key.
type Day struct {
	Year  int
	Month time.Month
	Dom   int
}

// DayOf returns the UTC calendar date of t.
func DayOf(t time.Time) Day {
	y, m, d := t.UTC().Date()
	return Day{Year: y, Month: m, Dom: d}
}

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return DayOf(t), nil
}

// Time returns midnight UTC at the start of the day.
func (d Day) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Dom, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the day n days after d (or before, for negative n).
func (d Day) AddDays(n int) Day {
	return DayOf(d.Time().AddDate(0, 0, n))
}

// Before reports whether d is strictly earlier than o.
func (d Day) Before(o Day) bool {
	return d.Time().Before(o.Time())
}

// IsZero reports whether d is the zero Day.
func (d Day) IsZero() bool {
	return d == Day{}
}

func (d Day) String() string {
	return d.Time().Format(DayLayout)
}

// MarshalText implements encoding.TextMarshaler so Day serializes as "YYYY-MM-DD".
func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Day) UnmarshalText(text []byte) error {
	parsed, err := ParseDay(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysBetween returns every day from from through to, inclusive.
// It returns nil when to is before from.
func DaysBetween(from, to Day) []Day {
	if to.Before(from) {
		return nil
	}
	n := int(to.Time().Sub(from.Time()).Hours()/24) + 1
	days := make([]Day, 0, n)
	for d := from; !to.Before(d); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}
