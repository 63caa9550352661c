package config

import (
	"fmt"
	"time"
)

// parseInterval parses a Go duration ("1m30s") or the short notation
// ("45s", "2m", "3h", "7d") into a positive time.Duration
func parseInterval(interval string) (time.Duration, error) {
	if len(interval) < 2 {
		return 0, fmt.Errorf("invalid interval format: %s", interval)
	}

	unit := interval[len(interval)-1]
	valueStr := interval[:len(interval)-1]

	var value int
	if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil || fmt.Sprint(value) != valueStr {
		// Not the short notation; accept anything time.ParseDuration does
		d, perr := time.ParseDuration(interval)
		if perr != nil {
			return 0, fmt.Errorf("invalid interval value: %s", interval)
		}
		if d <= 0 {
			return 0, fmt.Errorf("interval value must be positive: %s", interval)
		}
		return d, nil
	}

	if value <= 0 {
		return 0, fmt.Errorf("interval value must be positive: %s", interval)
	}

	switch unit {
	case 's':
		return time.Duration(value) * time.Second, nil
	case 'm':
		return time.Duration(value) * time.Minute, nil
	case 'h':
		return time.Duration(value) * time.Hour, nil
	case 'd':
		return time.Duration(value) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid interval unit (must be s, m, h, or d): %s", interval)
	}
}
