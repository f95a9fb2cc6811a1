package errors

import (
	"fmt"
)

// AcquisitionError reports that the external price source returned nothing
// usable. It is fatal for the analysis session: no partial pipeline run is
// attempted on top of an empty matrix.
type AcquisitionError struct {
	Source string
	Cause  error
}

func (e *AcquisitionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("price acquisition from %s failed: %v", e.Source, e.Cause)
	}
	return fmt.Sprintf("price acquisition from %s returned no data", e.Source)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Cause
}

// NewAcquisitionError creates an AcquisitionError for the given source.
func NewAcquisitionError(source string, cause error) *AcquisitionError {
	return &AcquisitionError{Source: source, Cause: cause}
}

// DegenerateColumnError reports securities whose entire price column was
// missing before repair. Gap filling cannot conjure values for them, so
// per-security statistics are skipped rather than emitted as NaN.
type DegenerateColumnError struct {
	Labels []string
}

func (e *DegenerateColumnError) Error() string {
	return fmt.Sprintf("securities with no observed prices: %v", e.Labels)
}

// DataQualityError reports a computation that would otherwise silently
// produce Inf or NaN, such as a zero first price in normalization.
type DataQualityError struct {
	Label  string
	Op     string
	Reason string
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("%s for %s: %s", e.Op, e.Label, e.Reason)
}

// NewDataQualityError creates a DataQualityError.
func NewDataQualityError(op, label, reason string) *DataQualityError {
	return &DataQualityError{Label: label, Op: op, Reason: reason}
}
