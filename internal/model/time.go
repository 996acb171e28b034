package model

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Precision is the number of decimal places kept for event times and
// sampling steps.
const Precision = 3

// Time is a fixed-point offset in seconds with millisecond resolution.
// Arithmetic on Time is exact.
type Time int64

// Common units.
const (
	Millisecond Time = 1
	Second      Time = 1000
	Minute           = 60 * Second
	Hour             = 60 * Minute
)

// ErrInvalidTime is returned for unparseable time values.
var ErrInvalidTime = errors.New("invalid time value")

// TimeFromDecimal rounds d to Precision places.
func TimeFromDecimal(d decimal.Decimal) Time {
	return Time(d.Round(Precision).Shift(Precision).IntPart())
}

var (
	minTimeMillis = decimal.NewFromInt(math.MinInt64)
	maxTimeMillis = decimal.NewFromInt(math.MaxInt64)
)

// parseDecimal is TimeFromDecimal for parsed input: values whose millisecond
// count does not fit in an int64 are rejected instead of wrapping.
func parseDecimal(d decimal.Decimal, s string) (Time, error) {
	ms := d.Round(Precision).Shift(Precision)
	if ms.LessThan(minTimeMillis) || ms.GreaterThan(maxTimeMillis) {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidTime, s)
	}
	return Time(ms.IntPart()), nil
}

// TimeFromSeconds converts a float second count, rounding to Precision places.
// Only use at input boundaries; never accumulate floats.
func TimeFromSeconds(s float64) Time {
	return TimeFromDecimal(decimal.NewFromFloat(s))
}

// ParseTime parses a decimal second count ("12.5") or a clock value
// ("00:01:02.500", "01:02.5").
func ParseTime(s string) (Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidTime
	}
	if strings.Contains(s, ":") {
		return parseClock(s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return parseDecimal(d, s)
}

// MustParseTime is ParseTime for constants and tests.
func MustParseTime(s string) Time {
	t, err := ParseTime(s)
	if err != nil {
		panic(err)
	}
	return t
}

func parseClock(s string) (Time, error) {
	neg := strings.HasPrefix(s, "-")
	parts := strings.Split(strings.TrimPrefix(s, "-"), ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}

	total := decimal.Zero
	for _, p := range parts {
		d, err := decimal.NewFromString(p)
		if err != nil || d.Sign() < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		total = total.Mul(decimal.NewFromInt(60)).Add(d)
	}
	if neg {
		total = total.Neg()
	}
	return parseDecimal(total, s)
}

// Decimal returns t as an exact decimal second count.
func (t Time) Decimal() decimal.Decimal {
	return decimal.New(int64(t), -Precision)
}

// Seconds returns t as float seconds, for output formats that need a number.
func (t Time) Seconds() float64 {
	f, _ := t.Decimal().Float64()
	return f
}

// String renders t without trailing zeros ("2.5", "0", "1000").
func (t Time) String() string {
	return t.Decimal().String()
}

// Clock renders t as HH:MM:SS.mmm.
func (t Time) Clock() string {
	sign := ""
	v := int64(t)
	if v < 0 {
		sign = "-"
		v = -v
	}
	ms := v % 1000
	sec := v / 1000
	return fmt.Sprintf("%s%02d:%02d:%02d.%03d", sign, sec/3600, (sec/60)%60, sec%60, ms)
}

// MarshalText implements encoding.TextMarshaler.
func (t Time) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Time) UnmarshalText(b []byte) error {
	v, err := ParseTime(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
