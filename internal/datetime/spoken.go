package datetime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Spoken12Hour converts a "15:04" value into its spoken 12-hour form.
// Minutes are dropped on the hour: "09:00" -> "9am", "16:30" -> "4:30pm".
// Unparseable input is returned unchanged so a prompt never goes out empty.
func Spoken12Hour(hhmm string) string {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return hhmm
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return hhmm
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return hhmm
	}

	period := "am"
	if hour >= 12 {
		period = "pm"
	}
	h12 := hour % 12
	if h12 == 0 {
		h12 = 12
	}
	if minute == 0 {
		return fmt.Sprintf("%d%s", h12, period)
	}
	return fmt.Sprintf("%d:%02d%s", h12, minute, period)
}

// HumanDayPhrase renders a canonical date the way a receptionist would say
// it: "today", "tomorrow", "this Thursday" within the coming week, and
// "Thursday the 2nd" beyond that.
func HumanDayPhrase(date string, now time.Time) string {
	parsed, err := time.ParseInLocation(DateLayout, date, now.Location())
	if err != nil {
		return date
	}
	days := calendarDaysBetween(now, parsed)
	switch {
	case days == 0:
		return "today"
	case days == 1:
		return "tomorrow"
	case days > 1 && days <= 7:
		return "this " + parsed.Weekday().String()
	}
	return fmt.Sprintf("%s the %d%s", parsed.Weekday(), parsed.Day(), OrdinalSuffix(parsed.Day()))
}

// calendarDaysBetween counts whole calendar days from a to b. Both ends are
// re-anchored to UTC midnight so a DST transition, which makes a local day
// 23 or 25 wall-clock hours long, cannot shift the count.
func calendarDaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	start := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	end := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}

// DescribeDay renders a canonical date fully, e.g. "Thursday, October 2nd",
// for booking confirmations where the weekday alone is too vague.
func DescribeDay(date string) string {
	parsed, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return fmt.Sprintf("%s, %s %d%s",
		parsed.Weekday(), parsed.Month(), parsed.Day(), OrdinalSuffix(parsed.Day()))
}

// OrdinalSuffix returns the English ordinal suffix for a day number.
// 11-13 always take "th" regardless of their last digit.
func OrdinalSuffix(day int) string {
	if last := day % 100; last >= 11 && last <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}
