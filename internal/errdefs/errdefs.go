// Package errdefs defines the error taxonomy for the deploy pipeline.
// Every stage failure carries a string code so callers can branch on the
// failure class (retry, abort, report) without parsing messages.
package errdefs

import (
	"errors"
	"fmt"
)

// Code classifies a pipeline error. Codes are string-based for
// debuggability and natural serialization into history records.
type Code string

const (
	// Configuration errors.

	// CodeInvalidConfig indicates bad registry or pipeline configuration.
	// Fatal, never retried.
	CodeInvalidConfig Code = "INVALID_CONFIGURATION"

	// CodeUnknownTarget indicates the requested target name is not in the
	// registry.
	CodeUnknownTarget Code = "UNKNOWN_TARGET"

	// Toolchain errors.

	// CodeInstallNetwork indicates a toolchain install failed for network
	// reasons. Retry-eligible.
	CodeInstallNetwork Code = "TOOLCHAIN_INSTALL_NETWORK"

	// CodeInstallPermission indicates a toolchain install was denied by the
	// local system.
	CodeInstallPermission Code = "TOOLCHAIN_INSTALL_PERMISSION"

	// CodeInstallNotFound indicates the toolchain package does not exist.
	// Fatal, retrying cannot help.
	CodeInstallNotFound Code = "TOOLCHAIN_PACKAGE_NOT_FOUND"

	// Build errors.

	// CodeToolchainMissing indicates the build ran without the target
	// toolchain installed (the ensure precondition was violated).
	CodeToolchainMissing Code = "TOOLCHAIN_MISSING"

	// CodeCompileFailed indicates the compiler rejected the source. The
	// message carries the diagnostics verbatim.
	CodeCompileFailed Code = "COMPILE_FAILED"

	// CodeIO indicates a local filesystem failure around the build output.
	CodeIO Code = "IO_ERROR"

	// Verification errors. All are safety gates and never bypassed.

	// CodeEmptyArtifact indicates the produced artifact has zero size.
	CodeEmptyArtifact Code = "EMPTY_ARTIFACT"

	// CodeTripleMismatch indicates the artifact's architecture does not
	// match the target triple.
	CodeTripleMismatch Code = "TRIPLE_MISMATCH"

	// CodeNotExecutable indicates the artifact lacks execute permission.
	CodeNotExecutable Code = "NOT_EXECUTABLE"

	// Deploy errors.

	// CodeConnection indicates the remote host could not be reached.
	// Retry-eligible with backoff.
	CodeConnection Code = "CONNECTION_ERROR"

	// CodeTransfer indicates the upload failed or transferred a wrong byte
	// count. Retry-eligible with backoff.
	CodeTransfer Code = "TRANSFER_ERROR"

	// CodeRemoteWrite indicates the remote-side rename failed. Fatal: the
	// condition (permissions, disk full) will not clear by retrying.
	CodeRemoteWrite Code = "REMOTE_WRITE_ERROR"

	// CodeUnknown indicates an unclassified error.
	CodeUnknown Code = "UNKNOWN"
)

// Error is a classified pipeline error. It wraps an optional cause and
// preserves it for errors.Is/As chains.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error without a cause.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a classified error around a cause.
func Wrap(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the classification from an error chain. Unclassified
// errors report CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode reports whether the error chain carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// Retryable reports whether the error class is transient enough that a
// bounded retry may succeed. Rename and verification failures are never
// retryable.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeInstallNetwork, CodeConnection, CodeTransfer:
		return true
	}
	return false
}
