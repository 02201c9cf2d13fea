package main

import (
	"fmt"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/router"
)

// Exit codes per spec §6 CLI surface.
const (
	exitOK                = 0
	exitUserError         = 1
	exitBackendTransient  = 2
	exitRunnerFailure     = 3
	exitLockContention    = 4
)

// cliError carries the process exit code a failure should produce alongside its
// message, so main's single error-handling path never has to re-derive it from a
// bare error value.
type cliError struct {
	exitCode int
	cause    error
}

func (e *cliError) Error() string { return e.cause.Error() }
func (e *cliError) Unwrap() error { return e.cause }

func errorFromEnvelope(env router.Response) error {
	return &cliError{exitCode: exitCodeForKind(env.Error.Kind), cause: fmt.Errorf("%s: %s", env.Error.Kind, env.Error.Message)}
}

// exitCodeForKind maps the router's error taxonomy (spec §7) onto the CLI's four
// non-zero exit codes.
func exitCodeForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.Busy, apperrors.Conflict:
		return exitLockContention
	case apperrors.RuntimeError, apperrors.RunnerLost, apperrors.Cancelled, apperrors.Timeout:
		return exitRunnerFailure
	case apperrors.Transient, apperrors.PermissionDenied, apperrors.QuotaExceeded:
		return exitBackendTransient
	default:
		return exitUserError
	}
}

// exitCodeFor extracts the exit code from any error main needs to report, defaulting
// unrecognized errors (flag parsing, file I/O) to the user-error code.
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	if ce, ok := err.(*cliError); ok {
		return ce.exitCode
	}
	return exitUserError
}
