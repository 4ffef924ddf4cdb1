package ccnpoison

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ErrNoEffectiveTrials is returned when a sweep point is asked for statistics
// and not a single trial completed
var ErrNoEffectiveTrials = errors.New("no trial completed")

// ConfigurationError reports a parameter that makes a sweep point impossible to run.
// It is found before any trial starts.
type ConfigurationError struct {
	Param string
	Msg   string
}

func (ce *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration parameter %s: %s", ce.Param, ce.Msg)
}

func configErr(param, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Param: param, Msg: fmt.Sprintf(format, args...)}
}

// TrialExecutionError reports a trial whose engine failed to build or to run.
// The trial is left out of every numerator and denominator.
type TrialExecutionError struct {
	Trial int
	Phase string
	Err   error
}

func (te *TrialExecutionError) Error() string {
	return fmt.Sprintf("trial %d failed during %s: %v", te.Trial, te.Phase, te.Err)
}

func (te *TrialExecutionError) Unwrap() error {
	return te.Err
}

// AggregationInvariantViolation reports a bookkeeping error inside the harness:
// an event out of time order or beyond the horizon, a bucket or slot index out
// of range, a collector reused without reset.  It is never recovered from.
type AggregationInvariantViolation struct {
	Trial int
	Msg   string
}

func (av *AggregationInvariantViolation) Error() string {
	return fmt.Sprintf("aggregation invariant violated in trial %d: %s", av.Trial, av.Msg)
}

func violation(trial int, format string, args ...any) *AggregationInvariantViolation {
	return &AggregationInvariantViolation{Trial: trial, Msg: fmt.Sprintf(format, args...)}
}

// ReportErrs folds a list of errors into one, skipping nils.
// nil is returned when nothing is left.
func ReportErrs(errs []error) error {
	var merr *multierror.Error
	for _, err := range errs {
		if err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}

// IsFatal is true for errors that must stop a sweep rather than exclude a trial
func IsFatal(err error) bool {
	var ce *ConfigurationError
	var av *AggregationInvariantViolation
	return errors.As(err, &ce) || errors.As(err, &av)
}
