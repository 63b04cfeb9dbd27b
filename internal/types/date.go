package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// Date is a calendar date as it appears on inspection records. It accepts
// either "2006-01-02" or RFC 3339 and always serializes as "2006-01-02".
type Date struct {
	time.Time
}

// NewDate returns the Date for y-m-d in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses "2006-01-02" or an RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	y, m, d := t.UTC().Date()
	return NewDate(y, m, d), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.UTC().Format(dateLayout)
}

// YearsUntil returns the elapsed time from d to later in Julian years.
func (d Date) YearsUntil(later Date) float64 {
	return later.Sub(d.Time).Hours() / 24 / 365.25
}

// AddYears returns d shifted by a fractional number of years.
func (d Date) AddYears(years float64) Date {
	days := math.Round(years * 365.25)
	return Date{d.AddDate(0, 0, int(days))}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Date) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseDate(node.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Years is a duration in years that may be unbounded. JSON has no infinity,
// so an unbounded value is written as the string "unbounded".
type Years float64

// Unbounded is the remaining life of a component that is not corroding.
var Unbounded = Years(math.Inf(1))

// IsUnbounded reports whether y is +Inf.
func (y Years) IsUnbounded() bool {
	return math.IsInf(float64(y), 1)
}

// Display renders y for reports, capping long lives at ">50 years".
func (y Years) Display() string {
	if y.IsUnbounded() || y > 50 {
		return ">50 years"
	}
	return fmt.Sprintf("%.1f years", float64(y))
}

func (y Years) MarshalJSON() ([]byte, error) {
	if y.IsUnbounded() {
		return []byte(`"unbounded"`), nil
	}
	return json.Marshal(float64(y))
}

func (y *Years) UnmarshalJSON(b []byte) error {
	if string(b) == `"unbounded"` {
		*y = Unbounded
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("years must be a number or \"unbounded\": %w", err)
	}
	*y = Years(f)
	return nil
}
