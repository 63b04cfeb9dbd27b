package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseDuration reads a duration from vesselfit.yml. Go duration syntax
// ("500ms", "1m30s") is accepted, plus a whole-day suffix ("2d"). The value
// must be positive and no longer than max.
func parseDuration(value string, max time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)

	var d time.Duration
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q", value)
		}
		d = time.Duration(n) * 24 * time.Hour
	} else {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q (e.g. 500ms, 30s, 2m)", value)
		}
		d = parsed
	}

	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %s", value)
	}
	if max > 0 && d > max {
		return 0, fmt.Errorf("duration %s exceeds the maximum of %s", value, max)
	}
	return d, nil
}
