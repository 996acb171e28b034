package model

import (
	"errors"
	"math"
	"testing"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		input    string
		expected Time
	}{
		{"0", 0},
		{"2.5", 2500},
		{"7.999", 7999},
		{"0.0005", 1},
		{"12.3456", 12346},
		{"-1.5", -1500},
		{"00:01:02.500", 62500},
		{"01:02.5", 62500},
		{"1:00:00", Hour},
		{" 3 ", 3 * Second},
	}

	for _, tt := range tests {
		got, err := ParseTime(tt.input)
		if err != nil {
			t.Errorf("ParseTime(%q) failed: %v", tt.input, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseTime(%q) = %d, want %d", tt.input, got, tt.expected)
		}
	}
}

func TestParseTime_Invalid(t *testing.T) {
	for _, input := range []string{"", "abc", "1:2:3:4", "1:-2", "9300000000000000", "-9300000000000000", "99999999999999999999:00:00"} {
		if _, err := ParseTime(input); !errors.Is(err, ErrInvalidTime) {
			t.Errorf("ParseTime(%q) error = %v, want ErrInvalidTime", input, err)
		}
	}
}

func TestParseTime_Limits(t *testing.T) {
	// Largest whole-second count whose millisecond value fits in an int64.
	got, err := ParseTime("9223372036854775.807")
	if err != nil {
		t.Fatal(err)
	}
	if got != Time(math.MaxInt64) {
		t.Errorf("ParseTime = %d, want %d", got, int64(math.MaxInt64))
	}
	if _, err := ParseTime("9223372036854775.808"); !errors.Is(err, ErrInvalidTime) {
		t.Errorf("one past the limit: error = %v, want ErrInvalidTime", err)
	}
}

func TestTime_String(t *testing.T) {
	tests := []struct {
		t        Time
		expected string
	}{
		{0, "0"},
		{2500, "2.5"},
		{1000 * Second, "1000"},
		{7999, "7.999"},
		{-250, "-0.25"},
	}

	for _, tt := range tests {
		if got := tt.t.String(); got != tt.expected {
			t.Errorf("Time(%d).String() = %q, want %q", int64(tt.t), got, tt.expected)
		}
	}
}

func TestTime_Clock(t *testing.T) {
	if got := (Hour + 2*Minute + 3*Second + 45).Clock(); got != "01:02:03.045" {
		t.Errorf("Clock() = %q", got)
	}
	if got := Time(-1500).Clock(); got != "-00:00:01.500" {
		t.Errorf("Clock() = %q", got)
	}
}

func TestTimeFromSeconds(t *testing.T) {
	if got := TimeFromSeconds(0.1); got != 100 {
		t.Errorf("TimeFromSeconds(0.1) = %d, want 100", got)
	}
	if got := TimeFromSeconds(86400); got != 86400*Second {
		t.Errorf("TimeFromSeconds(86400) = %d", got)
	}
}

func TestTime_TextRoundTrip(t *testing.T) {
	var v Time
	if err := v.UnmarshalText([]byte("4.25")); err != nil {
		t.Fatal(err)
	}
	b, _ := v.MarshalText()
	if string(b) != "4.25" {
		t.Errorf("MarshalText() = %q", b)
	}
}
