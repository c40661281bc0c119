package vfs

import (
	stdErrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode represents the category of a cache error.
//
// None of these categories are retried: they indicate a disagreement between
// the cache and the persistent store, or use of a file after it was deleted.
type ErrorCode int

const (
	// ErrAlreadyInitialized indicates a slot that already holds live data was
	// initialized a second time.
	ErrAlreadyInitialized ErrorCode = iota

	// ErrInvalidHandle indicates access to a file id that has been invalidated.
	ErrInvalidHandle

	// ErrConsistency indicates an invariant violation between the cache and the
	// persistent store (non-positive name id, child listed but not loaded, ...).
	ErrConsistency

	// ErrInvalidArgument indicates a malformed argument such as a non-positive
	// file id or a flag mask outside of the reserved flag bits.
	ErrInvalidArgument
)

func (c ErrorCode) String() string {
	switch c {
	case ErrAlreadyInitialized:
		return "ALREADY_INITIALIZED"
	case ErrInvalidHandle:
		return "INVALID_HANDLE"
	case ErrConsistency:
		return "CONSISTENCY"
	case ErrInvalidArgument:
		return "INVALID_ARGUMENT"
	default:
		return "UNKNOWN"
	}
}

// Sentinel errors returned by RecordStore implementations.
var (
	ErrRecordNotFound = stdErrors.New("record not found")
	ErrNameNotFound   = stdErrors.New("name not found")
	ErrRootNotFound   = stdErrors.New("root not found")
	ErrStoreClosed    = stdErrors.New("record store closed")
)

// AlreadyInitializedError is returned when a slot that already holds non-dead
// data is initialized again. Payload equality does not matter.
type AlreadyInitializedError struct {
	ID       FileID
	NameID   NameID
	Name     string
	Existing string
	Incoming string
}

func (e *AlreadyInitializedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "file already created: id=%d nameId=%d", e.ID, e.NameID)
	if e.Name != "" {
		fmt.Fprintf(&b, " name=%q", e.Name)
	}
	fmt.Fprintf(&b, " data: %s, alreadyExistingData: %s", e.Incoming, e.Existing)
	return b.String()
}

// Code returns ErrAlreadyInitialized.
func (e *AlreadyInitializedError) Code() ErrorCode { return ErrAlreadyInitialized }

// InvalidHandleError is returned by every accessor on a file id after its
// slot has been marked dead.
type InvalidHandleError struct {
	ID FileID

	// Path is a human readable location of the file, filled in when the
	// parent chain could still be walked.
	Path string
}

func (e *InvalidHandleError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("accessing dead virtual file: %s (id=%d)", e.Path, e.ID)
	}
	return fmt.Sprintf("accessing dead virtual file: id=%d", e.ID)
}

// Code returns ErrInvalidHandle.
func (e *InvalidHandleError) Code() ErrorCode { return ErrInvalidHandle }

// WithPath records the file location.
func (e *InvalidHandleError) WithPath(path string) *InvalidHandleError {
	e.Path = path
	return e
}

// ConsistencyError reports an invariant violation. Callers must abort the
// current operation when they see one.
type ConsistencyError struct {
	Message string
	ID      FileID
	details map[string]any
}

// NewConsistencyError creates a consistency error about the given file id.
func NewConsistencyError(id FileID, msg string) *ConsistencyError {
	return &ConsistencyError{ID: id, Message: msg}
}

// WithDetail adds contextual information.
func (e *ConsistencyError) WithDetail(key string, value any) *ConsistencyError {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Details returns the additional context stored with this error.
func (e *ConsistencyError) Details() map[string]any {
	return e.details
}

func (e *ConsistencyError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "consistency violation for id=%d: %s", e.ID, e.Message)
	if len(e.details) > 0 {
		keys := make([]string, 0, len(e.details))
		for k := range e.details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "; %s=%v", k, e.details[k])
		}
	}
	return b.String()
}

// Code returns ErrConsistency.
func (e *ConsistencyError) Code() ErrorCode { return ErrConsistency }

// ArgumentError reports a malformed argument.
type ArgumentError struct {
	Arg   string
	Value any
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %v", e.Arg, e.Value)
}

// Code returns ErrInvalidArgument.
func (e *ArgumentError) Code() ErrorCode { return ErrInvalidArgument }

// CheckID returns an ArgumentError for non-positive ids.
func CheckID(id FileID) error {
	if !id.Valid() {
		return &ArgumentError{Arg: "id", Value: id}
	}
	return nil
}

// AsInvalidHandleError unwraps err to an *InvalidHandleError.
func AsInvalidHandleError(err error) (*InvalidHandleError, bool) {
	var ie *InvalidHandleError
	if stdErrors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// AsAlreadyInitializedError unwraps err to an *AlreadyInitializedError.
func AsAlreadyInitializedError(err error) (*AlreadyInitializedError, bool) {
	var ae *AlreadyInitializedError
	if stdErrors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// AsConsistencyError unwraps err to a *ConsistencyError.
func AsConsistencyError(err error) (*ConsistencyError, bool) {
	var ce *ConsistencyError
	if stdErrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsInvalidHandle reports whether err (or anything it wraps) is an
// InvalidHandleError.
func IsInvalidHandle(err error) bool {
	_, ok := AsInvalidHandleError(err)
	return ok
}

// CodeOf returns the ErrorCode of err, or false if err is not a cache error.
func CodeOf(err error) (ErrorCode, bool) {
	var coded interface{ Code() ErrorCode }
	if stdErrors.As(err, &coded) {
		return coded.Code(), true
	}
	return 0, false
}
