package metadata

import (
	"errors"
	"fmt"
)

var (
	ErrTooShort       = errors.New("filename too short")
	ErrBadRowLetter   = errors.New("well row is not an uppercase letter")
	ErrUnknownVariant = errors.New("unknown IM variant")
)

// ParseError reports a field whose characters could not be read or cast.
type ParseError struct {
	Variant Variant
	Field   Field
	Value   string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: parse %s from %q: %v", e.Variant, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// LookupError reports a key missing from one of the objective tables.
type LookupError struct {
	Table string
	Key   float64
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("no entry for %g in the %s table", e.Key, e.Table)
}
