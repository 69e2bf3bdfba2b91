package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestIsTransient_TransientError(t *testing.T) {
	err := NewTransientError(errors.New("503"), 503)
	if !IsTransient(err) {
		t.Error("expected TransientError to be transient")
	}
}

func TestIsTransient_WrappedTransientError(t *testing.T) {
	err := fmt.Errorf("fetch: %w", NewTransientError(errors.New("429"), 429))
	if !IsTransient(err) {
		t.Error("expected wrapped TransientError to be transient")
	}
}

func TestIsTransient_Syscall(t *testing.T) {
	for _, errno := range []syscall.Errno{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED} {
		if !IsTransient(fmt.Errorf("dial: %w", errno)) {
			t.Errorf("expected %v to be transient", errno)
		}
	}
}

func TestIsTransient_MessagePatterns(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"Get \"http://x\": context deadline exceeded", true},
		{"dial tcp: i/o timeout", true},
		{"lookup host: no such host", true},
		{"404 not found", false},
		{"invalid selector", false},
	}
	for _, tc := range cases {
		if got := IsTransient(errors.New(tc.msg)); got != tc.want {
			t.Errorf("IsTransient(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}

func TestIsTransient_Nil(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error must not be transient")
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := NewTransientError(inner, 500)
	if !errors.Is(err, inner) {
		t.Error("expected Unwrap to expose the inner error")
	}
	if err.StatusCode != 500 {
		t.Errorf("expected status 500, got %d", err.StatusCode)
	}
}

func TestNewStatusSet_Defaults(t *testing.T) {
	s := NewStatusSet(nil)
	for _, code := range []int{429, 500, 502, 503, 504} {
		if !s.Contains(code) {
			t.Errorf("expected default set to contain %d", code)
		}
	}
	if s.Contains(404) {
		t.Error("default set must not contain 404")
	}
}

func TestNewStatusSet_Custom(t *testing.T) {
	s := NewStatusSet([]int{418})
	if !s.Contains(418) {
		t.Error("expected custom set to contain 418")
	}
	if s.Contains(503) {
		t.Error("custom set must not fall back to defaults")
	}
}
