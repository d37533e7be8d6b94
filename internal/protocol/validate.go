package protocol

import (
	"fmt"
	"math"

	"github.com/gosuda/boardsync/internal/domain"
)

// Limits on free-form join fields.
const (
	MaxDisplayNameLen = 200
	MaxAvatarURLLen   = 2000
)

// ValidationError describes why an inbound payload was rejected. It unwraps
// to domain.ErrValidation.
type ValidationError struct {
	Event  string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("protocol: %s: %s", e.Event, e.Reason)
	}
	return fmt.Sprintf("protocol: %s: %s: %s", e.Event, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return domain.ErrValidation }

// fields collects the first constraint violation of one payload so the
// parsers can read top to bottom without an error check per field.
type fields struct {
	event string
	err   *ValidationError
}

func (f *fields) fail(field, reason string) {
	if f.err == nil {
		f.err = &ValidationError{Event: f.event, Field: field, Reason: reason}
	}
}

func (f *fields) result() error {
	if f.err == nil {
		return nil
	}
	return f.err
}

// id returns a required non-empty string.
func (f *fields) id(field string, p *string) string {
	if p == nil || *p == "" {
		f.fail(field, "required")
		return ""
	}
	return *p
}

// maxLen returns an optional string capped at n runes.
func (f *fields) maxLen(field string, p *string, n int) string {
	if p == nil {
		return ""
	}
	if len([]rune(*p)) > n {
		f.fail(field, fmt.Sprintf("longer than %d characters", n))
	}
	return *p
}

// num returns a required finite number.
func (f *fields) num(field string, p *float64) float64 {
	if p == nil {
		f.fail(field, "required")
		return 0
	}
	if !finite(*p) {
		f.fail(field, "must be finite")
	}
	return *p
}

// positive returns a required finite number greater than zero.
func (f *fields) positive(field string, p *float64) float64 {
	v := f.num(field, p)
	if p != nil && v <= 0 {
		f.fail(field, "must be greater than 0")
	}
	return v
}

// optNum checks an optional number against check, which returns a reason on
// violation or "" when the value is acceptable.
func (f *fields) optNum(field string, p *float64, check func(float64) string) *float64 {
	if p == nil {
		return nil
	}
	if !finite(*p) {
		f.fail(field, "must be finite")
		return p
	}
	if check != nil {
		if reason := check(*p); reason != "" {
			f.fail(field, reason)
		}
	}
	return p
}

func (f *fields) optInt(field string, p *float64) *int {
	if p == nil {
		return nil
	}
	v := *p
	if !finite(v) || v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		f.fail(field, "must be an integer")
		return nil
	}
	n := int(v)
	return &n
}

func (f *fields) oneOf(field string, p *string, allowed ...string) *string {
	if p == nil {
		return nil
	}
	for _, a := range allowed {
		if *p == a {
			return p
		}
	}
	f.fail(field, fmt.Sprintf("must be one of %v", allowed))
	return p
}

func (f *fields) points(field string, p []float64) []float64 {
	for i, v := range p {
		if !finite(v) {
			f.fail(fmt.Sprintf("%s[%d]", field, i), "must be finite")
		}
	}
	return p
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func gtZero(v float64) string {
	if v <= 0 {
		return "must be greater than 0"
	}
	return ""
}

func nonNegative(v float64) string {
	if v < 0 {
		return "must not be negative"
	}
	return ""
}

func unitInterval(v float64) string {
	if v < 0 || v > 1 {
		return "must be between 0 and 1"
	}
	return ""
}
