package apperrors

import "errors"

// Error kinds. Every failure surfaced by the registration and billing core
// wraps exactly one of these sentinels so callers (and the batch layer) can
// classify it with errors.Is.
var (
	// ErrDuplicate marks an email or natural-key collision detected before
	// any side effect. Not retryable; the caller must fix the input.
	ErrDuplicate = errors.New("duplicate record")

	// ErrValidation marks missing or invalid input, including names that do
	// not resolve to a known class, department or subject.
	ErrValidation = errors.New("validation failed")

	// ErrIdentity marks a rejection from the identity provisioner, including
	// its own duplicate detection.
	ErrIdentity = errors.New("identity provisioning failed")

	// ErrDirectory marks a directory or fee-ledger write failure after the
	// identity was created. It is what triggers saga compensation.
	ErrDirectory = errors.New("directory write failed")

	// ErrConfiguration marks missing server credentials or settings. Raised
	// before any side effect is performed.
	ErrConfiguration = errors.New("configuration error")

	// ErrNotFound marks a missing resource.
	ErrNotFound = errors.New("resource not found")
)

// Kind is the classification bucket used in batch row results.
type Kind string

const (
	KindDuplicate     Kind = "duplicate"
	KindValidation    Kind = "validation"
	KindIdentity      Kind = "identity"
	KindDirectory     Kind = "directory"
	KindConfiguration Kind = "configuration"
	KindNotFound      Kind = "not_found"
	KindUnknown       Kind = "unknown"
)

// Classify maps an error to its taxonomy bucket.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, ErrDuplicate):
		return KindDuplicate
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrIdentity):
		return KindIdentity
	case errors.Is(err, ErrDirectory):
		return KindDirectory
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindUnknown
	}
}

// Error carries a taxonomy sentinel plus human-readable context. Field is set
// when the failure points at a specific input field (batch rows surface it in
// their per-row detail).
type Error struct {
	Err     error
	Message string
	Field   string
	Details map[string]interface{}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements errors.Unwrap
func (e *Error) Unwrap() error {
	return e.Err
}

// WithField attaches the input field the error refers to
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithDetails attaches context details to the error
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// NewDuplicateError creates a duplicate-input error for the given field
func NewDuplicateError(field, message string) *Error {
	return &Error{Err: ErrDuplicate, Field: field, Message: message}
}

// NewValidationError creates a validation error for the given field
func NewValidationError(field, message string) *Error {
	return &Error{Err: ErrValidation, Field: field, Message: message}
}

// NewIdentityError wraps a provisioner failure
func NewIdentityError(message string) *Error {
	return &Error{Err: ErrIdentity, Message: message}
}

// NewDirectoryError wraps a directory/ledger write failure
func NewDirectoryError(message string) *Error {
	return &Error{Err: ErrDirectory, Message: message}
}

// NewConfigurationError reports a missing credential or setting
func NewConfigurationError(message string) *Error {
	return &Error{Err: ErrConfiguration, Message: message}
}

// FieldOf returns the offending input field of err, if it carries one.
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}
