package datetime

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	colonPairRe = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	spacePairRe = regexp.MustCompile(`\b(\d{1,2})\s+(\d{2})\b`)
	digitRunRe  = regexp.MustCompile(`\b(\d{3,4})\b`)
	bareHourRe  = regexp.MustCompile(`\b(\d{1,2})\b`)
	amPmRe      = regexp.MustCompile(`\b(am|pm)\b`)
)

// PickTime reconciles a noisy spoken time against the set of available
// "15:04" start times for a day. It tries progressively looser readings of
// the text and returns the first candidate that is actually available:
//
//  1. the fully parsed phrase ("half past 4", "4:30 pm")
//  2. colon-delimited digit pairs ("4:30")
//  3. space-delimited digit pairs ("4 30")
//  4. contiguous 3-4 digit runs ("430", "1630")
//  5. a bare hour, trying both the stated hour and its 12-hour complement,
//     and the half-hour variants when neither minutes nor am/pm were given
//
// Callers must still check membership of the result; a parseable time that is
// not available yields ok=false.
func PickTime(text string, available []string) (string, bool) {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" || len(available) == 0 {
		return "", false
	}
	avail := make(map[string]bool, len(available))
	for _, t := range available {
		avail[t] = true
	}

	if hhmm, ok := NormalizeTime(lowered); ok && avail[hhmm] {
		return hhmm, true
	}

	if m := colonPairRe.FindStringSubmatch(lowered); m != nil {
		if hhmm, ok := pairCandidate(m[1], m[2], avail); ok {
			return hhmm, true
		}
	}
	if m := spacePairRe.FindStringSubmatch(lowered); m != nil {
		if hhmm, ok := pairCandidate(m[1], m[2], avail); ok {
			return hhmm, true
		}
	}
	if m := digitRunRe.FindStringSubmatch(lowered); m != nil {
		run := m[1]
		hh, mm := run[:len(run)-2], run[len(run)-2:]
		if hhmm, ok := pairCandidate(hh, mm, avail); ok {
			return hhmm, true
		}
	}

	m := bareHourRe.FindStringSubmatch(lowered)
	if m == nil {
		return "", false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour > 23 {
		return "", false
	}
	explicit := amPmRe.MatchString(lowered) || strings.Contains(lowered, ":")
	minutes := []int{0}
	if !explicit {
		// "4" with only a 16:30 slot open should still land; try the
		// half-hour reading as well.
		minutes = append(minutes, 30)
	}
	base := hour
	if amPmRe.FindString(lowered) == "pm" && base < 12 {
		base += 12
	}
	for _, minute := range minutes {
		for _, h := range hourVariants(base) {
			hhmm := fmt.Sprintf("%02d:%02d", h, minute)
			if avail[hhmm] {
				return hhmm, true
			}
		}
	}
	return "", false
}

// pairCandidate checks an hour/minute digit pair and its 12-hour complement
// against the available set.
func pairCandidate(hh, mm string, avail map[string]bool) (string, bool) {
	hour, err := strconv.Atoi(hh)
	if err != nil || hour > 23 {
		return "", false
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute > 59 {
		return "", false
	}
	for _, h := range hourVariants(hour) {
		hhmm := fmt.Sprintf("%02d:%02d", h, minute)
		if avail[hhmm] {
			return hhmm, true
		}
	}
	return "", false
}

// hourVariants returns the stated hour followed by its 12-hour-shifted
// complement, so "4" can mean 16:00 when only the afternoon is open.
func hourVariants(hour int) []int {
	shifted := (hour + 12) % 24
	if shifted == hour {
		return []int{hour}
	}
	return []int{hour, shifted}
}
