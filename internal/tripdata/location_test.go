package tripdata

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestGenerateCrossProduct(t *testing.T) {
	types := []string{"yellow", "green"}
	years := []int{2019, 2020}
	months := []int{1, 2, 3}

	locs, err := Generate(types, years, months)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(locs) != len(types)*len(years)*len(months) {
		t.Fatalf("expected %d locations, got %d", len(types)*len(years)*len(months), len(locs))
	}

	seen := make(map[string]bool)
	for _, l := range locs {
		name := l.Filename()
		if seen[name] {
			t.Errorf("duplicate location %s", name)
		}
		seen[name] = true
	}

	// type, then year, then month
	want := []SourceLocation{
		{"yellow", 2019, 1}, {"yellow", 2019, 2}, {"yellow", 2019, 3},
		{"yellow", 2020, 1}, {"yellow", 2020, 2}, {"yellow", 2020, 3},
	}
	if !reflect.DeepEqual(locs[:6], want) {
		t.Errorf("unexpected order: %v", locs[:6])
	}
	if locs[6].Type != "green" {
		t.Errorf("expected green after yellow, got %s", locs[6].Type)
	}
}

func TestGenerateRestartable(t *testing.T) {
	a, err := Generate([]string{"fhv"}, []int{2021}, []int{4, 5})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := Generate([]string{"fhv"}, []int{2021}, []int{4, 5})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("expected identical sequences, got %v and %v", a, b)
	}
}

func TestGenerateSingle(t *testing.T) {
	locs, err := Generate([]string{"green"}, []int{2025}, []int{11})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(locs) != 1 {
		t.Fatalf("expected 1 location, got %d", len(locs))
	}
	url := locs[0].URL(DefaultBaseURL)
	if !strings.HasSuffix(url, "green_tripdata_2025-11.csv.gz") {
		t.Errorf("unexpected URL %s", url)
	}
	if url != DefaultBaseURL+"/green/green_tripdata_2025-11.csv.gz" {
		t.Errorf("unexpected URL %s", url)
	}
}

func TestGenerateInvalid(t *testing.T) {
	tests := []struct {
		name   string
		types  []string
		years  []int
		months []int
	}{
		{"no types", nil, []int{2020}, []int{1}},
		{"blank type", []string{""}, []int{2020}, []int{1}},
		{"no years", []string{"green"}, nil, []int{1}},
		{"no months", []string{"green"}, []int{2020}, nil},
		{"month zero", []string{"green"}, []int{2020}, []int{0}},
		{"month thirteen", []string{"green"}, []int{2020}, []int{13}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Generate(tt.types, tt.years, tt.months)
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("expected ConfigurationError, got %v", err)
			}
		})
	}
}

func TestAllStopsEarly(t *testing.T) {
	n := 0
	for range All([]string{"yellow", "green"}, []int{2019, 2020}, []int{1, 2, 3}) {
		n++
		if n == 4 {
			break
		}
	}
	if n != 4 {
		t.Errorf("expected to stop after 4, got %d", n)
	}
}

func TestFilenamePadding(t *testing.T) {
	l := SourceLocation{Type: "yellow", Year: 2019, Month: 3}
	if l.Filename() != "yellow_tripdata_2019-03.csv.gz" {
		t.Errorf("unexpected filename %s", l.Filename())
	}
	if l.URL("http://example.com/") != "http://example.com/yellow/yellow_tripdata_2019-03.csv.gz" {
		t.Errorf("unexpected URL %s", l.URL("http://example.com/"))
	}
}

func TestUnique(t *testing.T) {
	locs, err := Generate([]string{"green", "yellow", "green"}, []int{2025}, []int{11, 11, 12})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(locs) != 9 {
		t.Fatalf("expected the raw cross product of 9, got %d", len(locs))
	}

	got := Unique(locs)
	want := []SourceLocation{
		{"green", 2025, 11}, {"green", 2025, 12},
		{"yellow", 2025, 11}, {"yellow", 2025, 12},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Unique() = %v, want %v", got, want)
	}
}
