package tripdata

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// DefaultBaseURL is the release host the TLC datasets are mirrored on.
const DefaultBaseURL = "https://github.com/DataTalksClub/nyc-tlc-data/releases/download"

// ConfigurationError reports invalid run input. It is always raised before
// any network activity.
type ConfigurationError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// SourceLocation identifies one remote dataset file.
type SourceLocation struct {
	Type  string
	Year  int
	Month int
}

// Filename returns the canonical basename, e.g. green_tripdata_2025-11.csv.gz.
func (l SourceLocation) Filename() string {
	return fmt.Sprintf("%s_tripdata_%04d-%02d.csv.gz", l.Type, l.Year, l.Month)
}

// URL returns the fully qualified remote URL below base.
func (l SourceLocation) URL(base string) string {
	return strings.TrimSuffix(base, "/") + "/" + l.Type + "/" + l.Filename()
}

func (l SourceLocation) String() string {
	return fmt.Sprintf("%s/%04d-%02d", l.Type, l.Year, l.Month)
}

// All yields locations in type, year, month order. Inputs are not
// validated; use Generate for that.
func All(types []string, years, months []int) iter.Seq[SourceLocation] {
	return func(yield func(SourceLocation) bool) {
		for _, t := range types {
			for _, y := range years {
				for _, m := range months {
					if !yield(SourceLocation{Type: t, Year: y, Month: m}) {
						return
					}
				}
			}
		}
	}
}

// Generate validates the inputs and returns every location of the cross
// product in type, year, month order.
func Generate(types []string, years, months []int) ([]SourceLocation, error) {
	if len(types) == 0 {
		return nil, &ConfigurationError{Field: "types", Err: errEmpty}
	}
	for _, t := range types {
		if t == "" {
			return nil, &ConfigurationError{Field: "types", Err: errEmpty}
		}
	}
	if len(years) == 0 {
		return nil, &ConfigurationError{Field: "years", Err: errEmpty}
	}
	for _, y := range years {
		if y < 1 || y > 9999 {
			return nil, &ConfigurationError{Field: "years", Value: strconv.Itoa(y), Err: errYearRange}
		}
	}
	if len(months) == 0 {
		return nil, &ConfigurationError{Field: "months", Err: errEmpty}
	}
	for _, m := range months {
		if m < 1 || m > 12 {
			return nil, &ConfigurationError{Field: "months", Value: strconv.Itoa(m), Err: errMonthRange}
		}
	}

	locs := make([]SourceLocation, 0, len(types)*len(years)*len(months))
	for l := range All(types, years, months) {
		locs = append(locs, l)
	}
	return locs, nil
}

// Unique drops locations whose Filename was already seen, keeping the first
// occurrence. Duplicate inputs such as "green,green" would otherwise target
// the same local path twice.
func Unique(locs []SourceLocation) []SourceLocation {
	seen := make(map[string]struct{}, len(locs))
	out := make([]SourceLocation, 0, len(locs))
	for _, l := range locs {
		name := l.Filename()
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, l)
	}
	return out
}
