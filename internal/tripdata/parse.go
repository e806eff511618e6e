package tripdata

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	errEmpty      = errors.New("must not be empty")
	errMonthRange = errors.New("month must be between 1 and 12")
	errYearRange  = errors.New("year out of range")
)

// ParseYears parses a comma-separated list of years, e.g. "2019,2020".
func ParseYears(s string) ([]int, error) {
	years, err := parseInts(s)
	if err != nil {
		return nil, &ConfigurationError{Field: "years", Value: s, Err: err}
	}
	for _, y := range years {
		if y < 1 || y > 9999 {
			return nil, &ConfigurationError{Field: "years", Value: s, Err: errYearRange}
		}
	}
	return years, nil
}

// ParseMonths parses either an inclusive range ("1-12") or a
// comma-separated list ("1,3,5"). Every month must be in 1..12.
func ParseMonths(s string) ([]int, error) {
	s = strings.TrimSpace(s)

	var months []int
	if start, end, ok := strings.Cut(s, "-"); ok {
		lo, err := strconv.Atoi(strings.TrimSpace(start))
		if err != nil {
			return nil, &ConfigurationError{Field: "months", Value: s, Err: fmt.Errorf("range start: %w", err)}
		}
		hi, err := strconv.Atoi(strings.TrimSpace(end))
		if err != nil {
			return nil, &ConfigurationError{Field: "months", Value: s, Err: fmt.Errorf("range end: %w", err)}
		}
		if lo > hi {
			return nil, &ConfigurationError{Field: "months", Value: s, Err: errors.New("range start after end")}
		}
		for m := lo; m <= hi; m++ {
			months = append(months, m)
		}
	} else {
		var err error
		months, err = parseInts(s)
		if err != nil {
			return nil, &ConfigurationError{Field: "months", Value: s, Err: err}
		}
	}

	for _, m := range months {
		if m < 1 || m > 12 {
			return nil, &ConfigurationError{Field: "months", Value: s, Err: errMonthRange}
		}
	}
	return months, nil
}

// ParseTypes parses a comma-separated list of taxi types, e.g. "yellow,green".
func ParseTypes(s string) ([]string, error) {
	var types []string
	for _, part := range strings.Split(s, ",") {
		t := strings.TrimSpace(part)
		if t == "" {
			return nil, &ConfigurationError{Field: "types", Value: s, Err: errEmpty}
		}
		if strings.ContainsAny(t, "/\\") {
			return nil, &ConfigurationError{Field: "types", Value: s, Err: errors.New("type must not contain path separators")}
		}
		types = append(types, t)
	}
	return types, nil
}

func parseInts(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errEmpty
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
