package command

import (
	"fmt"

	ncerr "telfs/internal/errors"
	"telfs/internal/sandbox"
	"telfs/internal/session"
)

// Fixed texts sent to clients.
const (
	Greeting         = "Hello user!"
	HelpHint         = "Enter --help for support info"
	RootNotification = "You are already in the root directory"

	dirMissing  = "Directory %s doesn't exist"
	notDir      = "%s is not a directory"
	fileMissing = "File %s doesn't exist"
	isDir       = "%s is a directory"
	truncated   = "... output truncated after %d bytes"
)

// MaxNickname bounds the length of a nickname in runes.
const MaxNickname = 32

// DefaultMaxOutput is how much of a file cat sends before cutting it
// short.
const DefaultMaxOutput = 1 << 20

// Banner returns the lines sent to a client right after accept.
func Banner() []string { return []string{Greeting, HelpHint} }

// Prompt renders the status string shown after every command, e.g.
// "alice:>~/docs$".
func Prompt(s session.Session) string {
	return s.Name() + ":>" + sandbox.Display(s.Cwd) + "$"
}

// notice is an expected, user-facing outcome rather than a fault.
type notice string

func (n notice) Error() string { return string(n) }

func noticef(format string, args ...interface{}) error {
	return notice(fmt.Sprintf(format, args...))
}

// clientMistake reports whether err comes from what the client asked
// for rather than from a server-side fault.
func clientMistake(err error) bool {
	var n notice
	return ncerr.As(err, &n) || ncerr.Is(err, ncerr.ErrNotDirectory)
}

// Message renders err as the single line a client sees.
func Message(err error) string {
	var (
		n  notice
		ce *ncerr.CommandError
		fe *ncerr.FSError
	)
	switch {
	case ncerr.As(err, &n):
		return string(n)
	case ncerr.As(err, &fe) && ncerr.Is(fe.Err, ncerr.ErrNotDirectory):
		return fmt.Sprintf(notDir, fe.Path)
	case ncerr.As(err, &ce):
		return "Malformed command: " + ce.Error()
	case ncerr.Is(err, ncerr.ErrLineTooLong):
		return "Malformed command: line too long"
	case ncerr.Is(err, ncerr.ErrRateLimited):
		return "Too many commands, slow down"
	case ncerr.Is(err, ncerr.ErrPoolClosed):
		return "Server is shutting down"
	case ncerr.Is(err, ncerr.ErrPoolBusy):
		return "Server is busy, try again"
	case ncerr.As(err, &fe):
		return fmt.Sprintf("Failed to %s %s: %v", fe.Op, fe.Path, fe.Err)
	default:
		return "Error: " + err.Error()
	}
}
