// Package errors provides domain-specific error types for telfs.
//
// Handlers return these so the dispatcher can turn any failure into a
// single line for the client without inspecting strings, and so the
// multiplexer can tell a dead peer from a retryable accept fault.
package errors

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrOutsideRoot     = errors.New("path escapes the server root")
	ErrNotFound        = errors.New("no such file or directory")
	ErrNotDirectory    = errors.New("not a directory")
	ErrIsDirectory     = errors.New("is a directory")
	ErrMissingArgument = errors.New("missing argument")
	ErrLineTooLong     = errors.New("command line too long")
	ErrRateLimited     = errors.New("too many commands")
	ErrPoolClosed      = errors.New("worker pool is closed")
	ErrPoolBusy        = errors.New("worker pool queue is full")
)

// ── Structured error types ───────────────────────────────────────────

// CommandError reports a command line that does not carry the
// arguments its verb requires.
type CommandError struct {
	Verb string // verb as typed by the client
	Want int    // required argument count
	Got  int    // arguments actually supplied
}

func (e *CommandError) Error() string {
	noun := "arguments"
	if e.Want == 1 {
		noun = "argument"
	}
	return fmt.Sprintf("%s requires %d %s, got %d", e.Verb, e.Want, noun, e.Got)
}

func (e *CommandError) Unwrap() error { return ErrMissingArgument }

// FSError represents a failed filesystem primitive.  Path is always the
// root-relative display form, never the host path.
type FSError struct {
	Op   string // "create", "mkdir", "remove", "copy", "read", "list", "stat"
	Path string
	Err  error
}

func (e *FSError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FSError) Unwrap() error { return e.Err }

// NetworkError represents a failure in a network operation.
type NetworkError struct {
	Op        string // operation: "listen", "accept", "write", "read"
	Addr      string // network address involved
	Err       error  // underlying error
	Retryable bool   // whether the caller should retry
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// rootEscapeMsg is the text os.Root uses when a path leaves the root.
const rootEscapeMsg = "path escapes from parent"

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, automatically detecting retryability
// from the underlying error.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// WrapFS creates an FSError, folding the os package's not-exist and
// is-directory conditions into this package's sentinels.
func WrapFS(op, path string, err error) *FSError {
	switch {
	case errors.Is(err, os.ErrNotExist):
		err = ErrNotFound
	case errors.Is(err, ErrOutsideRoot), errors.Is(err, ErrNotDirectory), errors.Is(err, ErrIsDirectory):
	default:
		// Keep only the syscall cause so host paths never leak.
		var pe *os.PathError
		if errors.As(err, &pe) {
			err = pe.Err
		}
		// os.Root has no exported sentinel for symlink escapes.
		if err.Error() == rootEscapeMsg {
			err = ErrOutsideRoot
		}
	}
	return &FSError{Op: op, Path: path, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// IsNotFound reports whether err means the target is absent or lies
// outside the root.  Clients see both cases the same way.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrOutsideRoot)
}

// IsClosed reports whether err is the expected result of a peer hang-up
// or of closing our own end.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}

// classifyRetryable inspects standard library error types.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Temporary() //nolint:staticcheck // Temporary is deprecated but still useful
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use telfs/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }
