package analytics

import "errors"

// InvalidInputError reports a structurally unusable input: a nil
// projection handed to a grouping or series function, or a payload that
// was not a JSON array at the ingest boundary. Data-quality problems in
// individual records never produce it; those records are skipped by the
// computation that needed the missing field.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}

// IsInvalidInput reports whether err is an InvalidInputError.
func IsInvalidInput(err error) bool {
	var iie *InvalidInputError
	return errors.As(err, &iie)
}
