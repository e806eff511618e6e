package tripdata

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseMonths(t *testing.T) {
	tests := []struct {
		input    string
		expected []int
	}{
		{"1-3", []int{1, 2, 3}},
		{"1,3,5", []int{1, 3, 5}},
		{"7", []int{7}},
		{" 11 - 12 ", []int{11, 12}},
		{"1-12", []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}},
	}

	for _, tt := range tests {
		result, err := ParseMonths(tt.input)
		if err != nil {
			t.Errorf("ParseMonths(%q): %v", tt.input, err)
			continue
		}
		if !reflect.DeepEqual(result, tt.expected) {
			t.Errorf("ParseMonths(%q) = %v, want %v", tt.input, result, tt.expected)
		}
	}
}

func TestParseMonthsInvalid(t *testing.T) {
	for _, input := range []string{"0-13", "0", "13", "5-3", "a-b", "1,x", "", "1-"} {
		_, err := ParseMonths(input)
		var cfgErr *ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Errorf("ParseMonths(%q): expected ConfigurationError, got %v", input, err)
		}
	}
}

func TestParseYears(t *testing.T) {
	years, err := ParseYears("2019, 2020")
	if err != nil {
		t.Fatalf("ParseYears: %v", err)
	}
	if !reflect.DeepEqual(years, []int{2019, 2020}) {
		t.Errorf("unexpected years %v", years)
	}

	for _, input := range []string{"", "twenty", "2019,", "-1"} {
		if _, err := ParseYears(input); err == nil {
			t.Errorf("ParseYears(%q): expected error", input)
		}
	}
}

func TestParseTypes(t *testing.T) {
	types, err := ParseTypes("yellow, green")
	if err != nil {
		t.Fatalf("ParseTypes: %v", err)
	}
	if !reflect.DeepEqual(types, []string{"yellow", "green"}) {
		t.Errorf("unexpected types %v", types)
	}

	for _, input := range []string{"", "yellow,,green", "../etc"} {
		if _, err := ParseTypes(input); err == nil {
			t.Errorf("ParseTypes(%q): expected error", input)
		}
	}
}
