// Package timeutil projects instants onto the fixed business region (WIB, UTC+7)
// and derives the calendar-day and hour facts the attendance rules depend on.
package timeutil

import (
	"fmt"
	"math"
	"time"
)

// Region is the single fixed offset used for every business-hour and calendar-day
// decision. WIB observes no daylight saving; a region that does would need a
// time.LoadLocation zone here instead.
var Region = time.FixedZone("WIB", 7*60*60)

const (
	DateLayout      = "2006-01-02"
	TimestampLayout = time.RFC3339
)

// Clock is the source of "now" for anything that applies time-based rules.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock and projects it onto Region.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().In(Region) }

// FixedClock always returns the same instant. Tests move it with Set.
type FixedClock struct {
	At time.Time
}

func NewFixedClock(at time.Time) *FixedClock {
	return &FixedClock{At: at}
}

func (c *FixedClock) Now() time.Time { return c.At.In(Region) }

// Set moves the clock to at.
func (c *FixedClock) Set(at time.Time) { c.At = at }

var _ Clock = SystemClock{}
var _ Clock = (*FixedClock)(nil)

// Now returns the current instant in Region.
func Now() time.Time {
	return SystemClock{}.Now()
}

// DayStart returns 00:00:00 region-local of the calendar day containing t.
func DayStart(t time.Time) time.Time {
	local := t.In(Region)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, Region)
}

// HourOfDay returns the region-local hour, 0-23.
func HourOfDay(t time.Time) int {
	return t.In(Region).Hour()
}

// HoursBetween returns b-a in fractional hours. Negative when b precedes a.
func HoursBetween(a, b time.Time) float64 {
	return b.Sub(a).Hours()
}

// FormatDuration renders fractional hours as "<h>h <m>m", minutes rounded.
func FormatDuration(hours float64) string {
	sign := ""
	if hours < 0 {
		sign = "-"
		hours = -hours
	}

	whole := math.Floor(hours)
	minutes := math.Round((hours - whole) * 60)
	if minutes >= 60 {
		whole++
		minutes -= 60
	}

	return fmt.Sprintf("%s%dh %dm", sign, int(whole), int(minutes))
}

// FormatDate renders the region-local calendar date of t.
func FormatDate(t time.Time) string {
	return t.In(Region).Format(DateLayout)
}

// FormatTimestamp renders t in Region as RFC3339.
func FormatTimestamp(t time.Time) string {
	return t.In(Region).Format(TimestampLayout)
}

// ParseDate parses a YYYY-MM-DD string as a region-local calendar day.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, Region)
}

// At builds a region-local instant. Mostly useful in tests and seeds.
func At(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, Region)
}
