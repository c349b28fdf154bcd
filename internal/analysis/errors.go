package analysis

import "fmt"

// InsufficientDataError is returned when the sufficiency gate rejects a
// sample. It is always recoverable: the boundary layer reports the verdict
// verbatim instead of failing the request.
type InsufficientDataError struct {
	Op      string
	Verdict SufficiencyVerdict
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: %s", e.Op, e.Verdict.Reason)
}

// FitError classifies a failure of the time-series or outlier model. It never
// crosses an operation boundary; the caller substitutes the deterministic
// fallback and only logs the cause.
type FitError struct {
	Err error
}

func (e *FitError) Error() string { return fmt.Sprintf("model fitting failed: %v", e.Err) }

func (e *FitError) Unwrap() error { return e.Err }

// NarrativeError classifies a failure of the remote text-generation call.
// The comprehensive-insights path degrades to the rule-based narrative and
// flags the response; focused insights surface it to the caller.
type NarrativeError struct {
	Err error
}

func (e *NarrativeError) Error() string { return fmt.Sprintf("narrative generation failed: %v", e.Err) }

func (e *NarrativeError) Unwrap() error { return e.Err }
