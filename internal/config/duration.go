package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rickb777/date/period"

	"wintask/pkg/taskdef"
)

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// ParseISODurationField normalizes raw to an ISO-8601 duration string.
//
// Accepted forms: ISO-8601 ("PT1H", "P1DT2H") or a Go duration ("1h", "90m").
// An empty value returns def.
func ParseISODurationField(path, raw, def string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}

	if s[0] == 'P' || s[0] == 'p' {
		p, err := period.Parse(strings.ToUpper(s), false)
		if err != nil {
			return "", fmt.Errorf("%s: invalid ISO-8601 duration %q: %w", path, raw, err)
		}
		if p.IsNegative() {
			return "", fmt.Errorf("%s: duration must be >= 0", path)
		}
		return p.String(), nil
	}

	d, err := ParseDurationField(path, s)
	if err != nil {
		return "", err
	}
	limit, err := taskdef.ExecutionTimeLimit(d)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return limit, nil
}
