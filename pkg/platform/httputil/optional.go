package httputil

import (
	"encoding/json"
	"time"

	dErrors "trellis/pkg/domain-errors"
)

// Optional tells an absent JSON field apart from an explicit null. Set is
// false when the field was missing; Null is true for a literal null.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Null = true
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

// DateLayout is the wire format of calendar dates.
const DateLayout = time.DateOnly

// ParseDate parses a YYYY-MM-DD date as midnight UTC.
func ParseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, field+" must be a date in YYYY-MM-DD format")
	}
	return t, nil
}

// FormatDate renders an optional date, nil for none.
func FormatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}
