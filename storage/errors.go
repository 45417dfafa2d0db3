// Package storage defines the StorageBackend contract (§4.1) and the
// reference backends that satisfy it.
package storage

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the taxonomy in §7. Callers classify failures with
// errors.Is(err, ErrXxx) rather than string matching.
var (
	// ErrUnavailable indicates the backend is unreachable (initialize()).
	ErrUnavailable = errors.New("backend unavailable")
	// ErrAuth indicates credentials were rejected.
	ErrAuth = errors.New("authentication failed")
	// ErrConfig indicates invalid configuration (bad names, missing fields).
	ErrConfig = errors.New("invalid backend configuration")
	// ErrTransient indicates a retryable failure (network, 5xx, timeout).
	ErrTransient = errors.New("transient backend error")
	// ErrPermanent indicates a non-retryable failure (4xx-class refusal).
	ErrPermanent = errors.New("permanent backend error")
	// ErrConflict indicates (entry, timestamp_us) already exists with a
	// different payload.
	ErrConflict = errors.New("conflicting record already exists")
)

// BackendError wraps an underlying error with a §7 classification,
// preserving the original error in the chain for errors.As.
type BackendError struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *BackendError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap supports errors.Is/As chain traversal via e.Err.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *BackendError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// NewBackendError creates a classified backend error.
func NewBackendError(kind error, op, path string, err error) *BackendError {
	return &BackendError{Kind: kind, Op: op, Path: path, Err: err}
}

// classifierEntry pairs message substrings with the sentinel they imply.
// Order matters: more specific patterns must precede general ones.
type classifierEntry struct {
	patterns []string
	kind     error
}

var classifierTable = []classifierEntry{
	{[]string{"AccessDenied", "Forbidden", "403"}, ErrPermanent},
	{[]string{"NoCredentialProviders", "credentials", "InvalidAccessKeyId",
		"SignatureDoesNotMatch", "ExpiredToken", "401", "Unauthorized"}, ErrAuth},
	{[]string{"NoSuchBucket", "invalid bucket", "InvalidBucketName"}, ErrConfig},
	{[]string{"SlowDown", "rate exceeded", "throttl", "429", "TooManyRequests",
		"timeout", "timed out", "deadline exceeded",
		"connection refused", "no route to host", "network unreachable",
		"dial tcp", "i/o timeout", "EOF"}, ErrTransient},
	{[]string{"BadRequest", "400", "InvalidArgument", "EntityTooLarge", "413"}, ErrPermanent},
}

// ClassifyError determines the §7 sentinel for an underlying error.
// Typed timeout errors are checked first; then the classifier table is
// walked in order and the first match wins. Unrecognized errors default to
// ErrTransient, the conservative choice: an unknown failure that is
// actually permanent costs a few wasted retries, while treating an
// actually-transient failure as permanent would discard data.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrTransient
	}

	errStr := err.Error()
	for _, entry := range classifierTable {
		if containsAny(errStr, entry.patterns...) {
			return entry.kind
		}
	}
	return ErrTransient
}

func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
