package models

import "fmt"

// ErrorKind represents different categories of errors
type ErrorKind int

const (
	ErrIO ErrorKind = iota
	ErrCommand
	ErrStorage
	ErrArtifactNotFound
	ErrValidation
	ErrMissingParameter
	ErrUnsupportedBackend
)

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case ErrIO:
		return "IO"
	case ErrCommand:
		return "CommandFailed"
	case ErrStorage:
		return "Storage"
	case ErrArtifactNotFound:
		return "ArtifactNotFound"
	case ErrValidation:
		return "Validation"
	case ErrMissingParameter:
		return "MissingParameter"
	case ErrUnsupportedBackend:
		return "UnsupportedBackend"
	default:
		return "Unknown"
	}
}

// ReleaseError represents an error during a release operation. Artifact, when
// set, names the artifact/codename combination the failure belongs to so the
// caller can tell which combination failed.
type ReleaseError struct {
	Kind     ErrorKind
	Artifact string
	Err      error
}

// Error implements the error interface
func (e *ReleaseError) Error() string {
	if e.Artifact != "" {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Artifact, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Kind, e.Err)
}

// Unwrap returns the wrapped error
func (e *ReleaseError) Unwrap() error {
	return e.Err
}

// NewError creates a ReleaseError with no artifact attribution
func NewError(kind ErrorKind, format string, args ...interface{}) *ReleaseError {
	return &ReleaseError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// WrapError wraps an existing error with a kind and artifact attribution
func WrapError(kind ErrorKind, artifact string, err error) *ReleaseError {
	return &ReleaseError{Kind: kind, Artifact: artifact, Err: err}
}

// IsKind reports whether err or any error it wraps is a ReleaseError of the
// given kind
func IsKind(err error, kind ErrorKind) bool {
	for err != nil {
		if re, ok := err.(*ReleaseError); ok && re.Kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
