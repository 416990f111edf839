package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockTime is a wall-clock time of day stored as minutes since midnight.
// Seconds are accepted on input and truncated.
type ClockTime int

const minutesPerDay = 24 * 60

// ParseClockTime parses "HH:MM" or "HH:MM:SS".
func ParseClockTime(raw string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", raw)
	}
	limits := []int{23, 59, 59}
	values := make([]int, len(parts))
	for i, part := range parts {
		if len(part) != 2 {
			return 0, fmt.Errorf("invalid time %q: want HH:MM", raw)
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > limits[i] {
			return 0, fmt.Errorf("invalid time %q: want HH:MM", raw)
		}
		values[i] = n
	}
	return ClockTime(values[0]*60 + values[1]), nil
}

// MustClockTime is ParseClockTime for literals; it panics on bad input.
func MustClockTime(raw string) ClockTime {
	t, err := ParseClockTime(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// String renders the time as HH:MM.
func (t ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Valid reports whether t lies within one day.
func (t ClockTime) Valid() bool {
	return t >= 0 && t < minutesPerDay
}

// MarshalJSON encodes the time as "HH:MM".
func (t ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes "HH:MM" or "HH:MM:SS".
func (t *ClockTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("time must be a string: %w", err)
	}
	parsed, err := ParseClockTime(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value stores the time as a SQL TIME literal.
func (t ClockTime) Value() (driver.Value, error) {
	return t.String() + ":00", nil
}

// Scan reads a SQL TIME column.
func (t *ClockTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return t.scanString(string(v))
	case string:
		return t.scanString(v)
	case time.Time:
		*t = ClockTime(v.Hour()*60 + v.Minute())
		return nil
	case nil:
		return fmt.Errorf("clock time cannot be null")
	default:
		return fmt.Errorf("unsupported clock time source %T", src)
	}
}

func (t *ClockTime) scanString(raw string) error {
	// Postgres may append fractional seconds to TIME values.
	if idx := strings.IndexByte(raw, '.'); idx >= 0 {
		raw = raw[:idx]
	}
	parsed, err := ParseClockTime(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TimeRange is a half-open interval [Start, End) within a day.
type TimeRange struct {
	Start ClockTime
	End   ClockTime
}

// Valid reports whether the range is non-empty.
func (r TimeRange) Valid() bool {
	return r.Start.Valid() && r.End.Valid() && r.Start < r.End
}

// Overlaps reports whether the two ranges share any instant. Touching ranges
// such as 09:00-10:00 and 10:00-11:00 do not overlap.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.Start < other.End && other.Start < r.End
}

// String renders the range as "HH:MM - HH:MM".
func (r TimeRange) String() string {
	return r.Start.String() + " - " + r.End.String()
}
