package commitpool

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a PoolError so callers can decide peer-scoring
// treatment via errors.As, without string-matching error messages.
type ErrorKind int

const (
	// ErrCommitValidatorNotActive: peer-supplied commit's validator is not
	// in the active set at its height. Surfaced for peer scoring.
	ErrCommitValidatorNotActive ErrorKind = iota
	// ErrCommitSignatureInvalid: BLS verification failed. Surfaced.
	ErrCommitSignatureInvalid
	// ErrNoSingleCommit: aggregator called with empty input. Programming error.
	ErrNoSingleCommit
	// ErrNoBLSKeyForValidator: aggregator could not resolve a validator's BLS key.
	ErrNoBLSKeyForValidator
	// ErrBFTParameterNotFound: raised by the oracle; callers recover or
	// reject depending on context (see §4.3(d), §4.7).
	ErrBFTParameterNotFound
	// ErrFinalizedHeaderNotFound: the job could not find the finalized
	// header; fatal for that tick.
	ErrFinalizedHeaderNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case ErrCommitValidatorNotActive:
		return "CommitValidatorNotActive"
	case ErrCommitSignatureInvalid:
		return "CommitSignatureInvalid"
	case ErrNoSingleCommit:
		return "NoSingleCommit"
	case ErrNoBLSKeyForValidator:
		return "NoBLSKeyForValidator"
	case ErrBFTParameterNotFound:
		return "BFTParameterNotFound"
	case ErrFinalizedHeaderNotFound:
		return "FinalizedHeaderNotFound"
	default:
		return "Unknown"
	}
}

// PoolError wraps an error kind with the underlying cause, so callers can
// errors.As for the kind while still unwrapping to the original error.
type PoolError struct {
	Kind ErrorKind
	Err  error
}

func (e *PoolError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *PoolError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, someKindSentinel) style checks when only the
// kind matters and no underlying error is available.
func (e *PoolError) Is(target error) bool {
	var other *PoolError
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func newPoolError(kind ErrorKind, format string, args ...interface{}) *PoolError {
	return &PoolError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the ErrorKind of err if it is (or wraps) a *PoolError, and
// reports whether one was found.
func KindOf(err error) (ErrorKind, bool) {
	var pe *PoolError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}
