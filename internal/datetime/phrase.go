// Package datetime converts spoken day and time phrases to canonical values
// and back to speakable text.
//
// Callers work with two canonical forms throughout the codebase:
//
//   - dates as "2006-01-02" strings
//   - clock times as 24-hour "15:04" strings
//
// All functions are pure; anything that depends on the current date takes it
// as an argument so tests can pin a reference day.
package datetime

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical date format used across the schedule and
// dialogue packages.
const DateLayout = "2006-01-02"

var (
	halfPastRe  = regexp.MustCompile(`half past (\d{1,2})`)
	quarterPast = regexp.MustCompile(`quarter past (\d{1,2})`)
	quarterTo   = regexp.MustCompile(`quarter to (\d{1,2})`)
	clockRe     = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
)

// ParseDayPhrase resolves a free-text day reference ("today", "tomorrow", a
// weekday name) against now and returns the canonical date. A weekday name
// always resolves strictly into the future: saying today's own weekday means
// the same day next week, never today.
func ParseDayPhrase(text string, now time.Time) (string, bool) {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return "", false
	}

	if strings.Contains(lowered, "today") {
		return now.Format(DateLayout), true
	}
	if strings.Contains(lowered, "tomorrow") {
		return now.AddDate(0, 0, 1).Format(DateLayout), true
	}

	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		name := strings.ToLower(wd.String())
		// Accept truncated or misheard forms ("thur", "thurzday") by
		// anchoring on the first three letters.
		re := regexp.MustCompile(`\b` + name[:3] + `\w*\b`)
		if !re.MatchString(lowered) {
			continue
		}
		delta := (int(wd) - int(now.Weekday()) + 7) % 7
		if delta == 0 {
			delta = 7
		}
		return now.AddDate(0, 0, delta).Format(DateLayout), true
	}
	return "", false
}

// NormalizeTime parses an absolute clock phrase into "15:04" form. It
// understands "4", "4:30", "4 pm", "half past 4", "quarter past 4" and
// "quarter to 5". Without an am/pm marker the stated hour is taken as a
// 24-hour value.
func NormalizeTime(text string) (string, bool) {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return "", false
	}

	if m := halfPastRe.FindStringSubmatch(lowered); m != nil {
		if hour, err := strconv.Atoi(m[1]); err == nil && hour >= 0 && hour < 24 {
			return fmt.Sprintf("%02d:30", hour), true
		}
	}
	if m := quarterPast.FindStringSubmatch(lowered); m != nil {
		if hour, err := strconv.Atoi(m[1]); err == nil && hour >= 0 && hour < 24 {
			return fmt.Sprintf("%02d:15", hour), true
		}
	}
	if m := quarterTo.FindStringSubmatch(lowered); m != nil {
		if hour, err := strconv.Atoi(m[1]); err == nil {
			hour--
			if hour < 0 {
				hour = 23
			}
			if hour < 24 {
				return fmt.Sprintf("%02d:45", hour), true
			}
		}
	}

	m := clockRe.FindStringSubmatch(lowered)
	if m == nil {
		return "", false
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch m[3] {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}
