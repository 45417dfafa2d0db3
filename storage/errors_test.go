package storage

import (
	"errors"
	"testing"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"access denied", errors.New("AccessDenied: user not authorized"), ErrPermanent},
		{"bad signature", errors.New("SignatureDoesNotMatch"), ErrAuth},
		{"no such bucket", errors.New("NoSuchBucket: the bucket does not exist"), ErrConfig},
		{"throttled", errors.New("SlowDown: rate exceeded"), ErrTransient},
		{"connection refused", errors.New("dial tcp 127.0.0.1:6379: connect: connection refused"), ErrTransient},
		{"bad request", errors.New("BadRequest: InvalidArgument"), ErrPermanent},
		{"unrecognized defaults transient", errors.New("something unexpected happened"), ErrTransient},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyError(tc.err)
			if !errors.Is(got, tc.want) {
				t.Errorf("ClassifyError(%q) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestClassifyError_Nil(t *testing.T) {
	if got := ClassifyError(nil); got != nil {
		t.Errorf("ClassifyError(nil) = %v, want nil", got)
	}
}

type timeoutError struct{}

func (timeoutError) Error() string { return "operation timed out" }
func (timeoutError) Timeout() bool { return true }

func TestClassifyError_TypedTimeout(t *testing.T) {
	if got := ClassifyError(timeoutError{}); !errors.Is(got, ErrTransient) {
		t.Errorf("ClassifyError(timeoutError) = %v, want ErrTransient", got)
	}
}

func TestBackendError_IsAndUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	be := NewBackendError(ErrTransient, "write", "bucket/entry", inner)

	if !errors.Is(be, ErrTransient) {
		t.Error("expected BackendError to match ErrTransient via errors.Is")
	}
	if errors.Is(be, ErrPermanent) {
		t.Error("did not expect BackendError to match ErrPermanent")
	}
	if !errors.Is(be, inner) {
		t.Error("expected Unwrap to expose the inner error to errors.Is")
	}

	wantMsg := "write bucket/entry: transient backend error: connection refused"
	if be.Error() != wantMsg {
		t.Errorf("Error() = %q, want %q", be.Error(), wantMsg)
	}
}

func TestBackendError_NoPath(t *testing.T) {
	be := NewBackendError(ErrConfig, "init", "", errors.New("bucket is required"))
	want := "init: invalid backend configuration: bucket is required"
	if be.Error() != want {
		t.Errorf("Error() = %q, want %q", be.Error(), want)
	}
}
