package main

import (
	"testing"

	"github.com/infraweave-io/control-plane/internal/apperrors"
)

func TestExitCodeForKind(t *testing.T) {
	cases := map[apperrors.Kind]int{
		apperrors.Malformed:    exitUserError,
		apperrors.Forbidden:    exitUserError,
		apperrors.Busy:         exitLockContention,
		apperrors.Conflict:     exitLockContention,
		apperrors.RuntimeError: exitRunnerFailure,
		apperrors.Timeout:      exitRunnerFailure,
		apperrors.Transient:    exitBackendTransient,
	}
	for kind, want := range cases {
		if got := exitCodeForKind(kind); got != want {
			t.Errorf("exitCodeForKind(%s) = %d, want %d", kind, got, want)
		}
	}
}

func TestExitCodeForNonCliError(t *testing.T) {
	if got := exitCodeFor(nil); got != exitOK {
		t.Fatalf("expected exitOK for nil error, got %d", got)
	}
	plain := apperrors.New(apperrors.Malformed, "boom")
	if got := exitCodeFor(plain); got != exitUserError {
		t.Fatalf("expected exitUserError default for a non-cliError, got %d", got)
	}
}
