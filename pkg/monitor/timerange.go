package monitor

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout     = "2006/01/02"
	dateTimeLayout = "2006/01/02T15:04:05"
)

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(dateLayout, s, time.Local); err == nil {
		return t, nil
	}
	return time.ParseInLocation(dateTimeLayout, s, time.Local)
}

// ParseTimeRange parses the CLI time range syntax:
//
//	last <n> <hours|days|weeks|months>
//	YYYY/MM/DD[THH:MM:SS][-YYYY/MM/DD[THH:MM:SS]]
//
// With a single timestamp the returned end is the zero time, meaning
// unbounded.
func ParseTimeRange(rangeString string, now time.Time) (time.Time, time.Time, error) {
	if strings.HasPrefix(rangeString, "last ") {
		tokens := strings.Fields(rangeString)
		if len(tokens) != 3 {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid time range %q", rangeString)
		}
		window, err := strconv.Atoi(tokens[1])
		if err != nil || window <= 0 {
			return time.Time{}, time.Time{}, fmt.Errorf("time window has to be greater than zero")
		}

		var unit time.Duration
		switch {
		case strings.HasPrefix(tokens[2], "hour"):
			unit = time.Hour
		case strings.HasPrefix(tokens[2], "day"):
			unit = 24 * time.Hour
		case strings.HasPrefix(tokens[2], "week"):
			unit = 7 * 24 * time.Hour
		case strings.HasPrefix(tokens[2], "month"):
			unit = 30 * 24 * time.Hour
		default:
			return time.Time{}, time.Time{}, fmt.Errorf("invalid time range granularity %q", tokens[2])
		}
		return now.Add(-time.Duration(window) * unit), now, nil
	}

	if start, err := parseTimestamp(rangeString); err == nil {
		return start, time.Time{}, nil
	}

	// A '-' also occurs inside no timestamp layout, so a plain split is
	// unambiguous here.
	parts := strings.Split(rangeString, "-")
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid time range %q", rangeString)
	}
	start, err := parseTimestamp(parts[0])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid time range start %q", parts[0])
	}
	end, err := parseTimestamp(parts[1])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid time range end %q", parts[1])
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("time range %q ends before it starts", rangeString)
	}
	return start, end, nil
}
