package reconcile

import (
	"errors"

	"github.com/rotisserie/eris"
)

// Validation errors returned by override mutations.
var (
	ErrInvalidMetric  = eris.New("reconcile: metric is not editable")
	ErrComputedMetric = eris.New("reconcile: computed metrics accept no override")
	ErrInvalidDate    = eris.New("reconcile: invalid date")
)

// IsValidation reports whether err was caused by a rejected request rather
// than a storage or source failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidMetric) ||
		errors.Is(err, ErrComputedMetric) ||
		errors.Is(err, ErrInvalidDate)
}
