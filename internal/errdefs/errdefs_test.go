package errdefs

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	t.Run("direct error", func(t *testing.T) {
		err := New(CodeUnknownTarget, "no target %q", "pi5")
		if got := CodeOf(err); got != CodeUnknownTarget {
			t.Errorf("CodeOf = %s, want %s", got, CodeUnknownTarget)
		}
	})

	t.Run("wrapped error", func(t *testing.T) {
		inner := Wrap(errors.New("dial tcp: timeout"), CodeConnection, "connect to pi.local")
		outer := fmt.Errorf("deploy stage: %w", inner)
		if got := CodeOf(outer); got != CodeConnection {
			t.Errorf("CodeOf = %s, want %s", got, CodeConnection)
		}
	})

	t.Run("plain error", func(t *testing.T) {
		if got := CodeOf(errors.New("boom")); got != CodeUnknown {
			t.Errorf("CodeOf = %s, want %s", got, CodeUnknown)
		}
	})
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		code      Code
		retryable bool
	}{
		{CodeInstallNetwork, true},
		{CodeConnection, true},
		{CodeTransfer, true},
		{CodeRemoteWrite, false},
		{CodeInstallNotFound, false},
		{CodeCompileFailed, false},
		{CodeTripleMismatch, false},
		{CodeInvalidConfig, false},
	}

	for _, tt := range tests {
		err := New(tt.code, "test")
		if got := Retryable(err); got != tt.retryable {
			t.Errorf("Retryable(%s) = %v, want %v", tt.code, got, tt.retryable)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := Wrap(cause, CodeIO, "stat artifact")

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if err.Error() == "" {
		t.Error("expected non-empty message")
	}
}
