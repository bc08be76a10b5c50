// Package duration normalizes the token lifetime settings. A lifetime may be
// configured as a bare number of seconds ("900"), or as a human readable
// expression like "15m" or "7d". Whatever the form, callers always get a
// time.Duration back.
package duration

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
)

// Parse converts a lifetime setting to a duration.
//
// Accepted forms, tried in order:
//  1. integer number of seconds: "604800"
//  2. duration expression with day/week units: "7d", "36h", "15m30s"
func Parse(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("duration must not be empty")
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds < 0 {
			return 0, fmt.Errorf("duration must not be negative, got %q", value)
		}
		return time.Duration(seconds) * time.Second, nil
	}

	d, err := str2duration.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("can't parse duration %q: %w", value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must not be negative, got %q", value)
	}

	return d, nil
}
