package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// TimestampLayout is the persisted timestamp form. Fixed width keeps
// lexical and chronological order identical.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp is a UTC instant with millisecond precision.
type Timestamp struct {
	time.Time
}

// NewTimestamp converts t to UTC and truncates it to milliseconds.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Millisecond)}
}

// String returns the persisted form.
func (t Timestamp) String() string {
	return t.UTC().Format(TimestampLayout)
}

// Ptr returns a pointer to a copy of t.
func (t Timestamp) Ptr() *Timestamp {
	return &t
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler. Any RFC 3339 instant is
// accepted and normalised.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	*t = NewTimestamp(parsed)
	return nil
}

// Bounds of the year-month key space.
const (
	MinYearMonth YearMonth = "0000-01"
	MaxYearMonth YearMonth = "9999-12"
)

// ErrInvalidYearMonth is returned for strings not of the form YYYY-MM.
var ErrInvalidYearMonth = errors.New("invalid year-month")

var ymPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// YearMonth is a calendar month in "YYYY-MM" form.
type YearMonth string

// ParseYearMonth validates s.
func ParseYearMonth(s string) (YearMonth, error) {
	ym := YearMonth(s)
	if !ym.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidYearMonth, s)
	}
	return ym, nil
}

// YearMonthOf returns the month containing t, in t's location.
func YearMonthOf(t time.Time) YearMonth {
	return NewYearMonth(t.Year(), t.Month())
}

// NewYearMonth builds a YearMonth, normalising month overflow.
func NewYearMonth(year int, month time.Month) YearMonth {
	for month < time.January {
		month += 12
		year--
	}
	for month > time.December {
		month -= 12
		year++
	}
	return YearMonth(fmt.Sprintf("%04d-%02d", year, int(month)))
}

// Valid reports whether ym is well formed.
func (ym YearMonth) Valid() bool {
	return ymPattern.MatchString(string(ym))
}

// Year returns the calendar year. ym must be valid.
func (ym YearMonth) Year() int {
	y, _ := strconv.Atoi(string(ym[:4]))
	return y
}

// Month returns the calendar month. ym must be valid.
func (ym YearMonth) Month() time.Month {
	m, _ := strconv.Atoi(string(ym[5:]))
	return time.Month(m)
}

// Prev returns the preceding month; January wraps to the previous December.
func (ym YearMonth) Prev() YearMonth {
	return NewYearMonth(ym.Year(), ym.Month()-1)
}

// Next returns the following month; December wraps to the next January.
func (ym YearMonth) Next() YearMonth {
	return NewYearMonth(ym.Year(), ym.Month()+1)
}

func (ym YearMonth) String() string { return string(ym) }
