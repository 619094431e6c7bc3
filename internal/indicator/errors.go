package indicator

import (
	"errors"
	"fmt"
)

// InsufficientDataError reports that a series is too short for an indicator.
// The required length is the indicator's hard minimum; callers should skip
// the evaluation and wait for more data.
type InsufficientDataError struct {
	Indicator string
	Required  int
	Got       int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s requires at least %d values, got %d", e.Indicator, e.Required, e.Got)
}

// ErrInvalidPeriod is returned for non-positive indicator periods.
var ErrInvalidPeriod = errors.New("indicator period must be positive")

func checkLen(indicator string, required, got int) error {
	if got < required {
		return &InsufficientDataError{Indicator: indicator, Required: required, Got: got}
	}
	return nil
}
