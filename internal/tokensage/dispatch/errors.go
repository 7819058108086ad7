package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies operation failures for the retry policy. Operations
// (and the backend client beneath them) should return *OperationError with an
// explicit kind; the substring fallback in Classify exists only for opaque
// errors from operations that predate the typed boundary.
type ErrorKind int

const (
	// KindTransient failures are retried until attempts are exhausted.
	KindTransient ErrorKind = iota
	// KindValidation marks precondition failures (bad parameters, missing
	// configuration). Never retried.
	KindValidation
	// KindAuth marks credential failures (invalid or missing API key).
	// Never retried.
	KindAuth
	// KindNotFound marks routing failures: no operation bound to the intent.
	KindNotFound
)

// String returns the kind's wire/log label.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	default:
		return "transient"
	}
}

// OperationError is the typed error produced at the operation boundary.
type OperationError struct {
	Kind ErrorKind
	Op   string // operation name, when known
	Err  error
}

func (e *OperationError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("operation %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// ErrOperationNotFound is returned when no operation is bound to the
// resolved intent.
var ErrOperationNotFound = errors.New("no operation bound to intent")

// ErrValidationFailed is returned when an operation's precondition check
// rejects the call before execution.
var ErrValidationFailed = errors.New("operation validation failed")

// Classify maps err to an ErrorKind. Typed *OperationError values carry their
// kind directly; sentinel errors map to their kinds; everything else falls
// back to message inspection ("validation" and "API key" substrings mark
// non-transient failures) so untyped operations keep the historical
// behaviour.
func Classify(err error) ErrorKind {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	if errors.Is(err, ErrOperationNotFound) {
		return KindNotFound
	}
	if errors.Is(err, ErrValidationFailed) {
		return KindValidation
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "validation") {
		return KindValidation
	}
	if strings.Contains(msg, "api key") {
		return KindAuth
	}
	return KindTransient
}

// retryable reports whether a failure of the given kind may be retried.
func retryable(kind ErrorKind) bool {
	return kind == KindTransient
}
