package security

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DefaultExpiryFallback is used when a duration spec does not parse.
const DefaultExpiryFallback = 30 * 24 * time.Hour

var durationSpecPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseDurationSpec parses "<integer><unit>" where unit is one of s, m, h, d.
func ParseDurationSpec(spec string) (time.Duration, error) {
	m := durationSpecPattern.FindStringSubmatch(spec)
	if m == nil {
		return 0, fmt.Errorf("parse duration %q: want <integer><s|m|h|d>", spec)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", spec, err)
	}
	unit := map[string]time.Duration{
		"s": time.Second,
		"m": time.Minute,
		"h": time.Hour,
		"d": 24 * time.Hour,
	}[m[2]]
	if n > int64(1<<62)/int64(unit) {
		return 0, fmt.Errorf("parse duration %q: out of range", spec)
	}
	return time.Duration(n) * unit, nil
}

// ExpiryCalculator turns duration specs into absolute timestamps.
type ExpiryCalculator struct {
	Now func() time.Time
}

func NewExpiryCalculator() *ExpiryCalculator {
	return &ExpiryCalculator{Now: time.Now}
}

// ComputeExpiry falls back to now+30d when spec is malformed instead of failing.
// Config validation rejects malformed specs at startup, so the fallback only
// covers callers that bypass it.
func (c *ExpiryCalculator) ComputeExpiry(spec string) time.Time {
	now := c.Now()
	d, err := ParseDurationSpec(spec)
	if err != nil {
		return now.Add(DefaultExpiryFallback)
	}
	return now.Add(d)
}
