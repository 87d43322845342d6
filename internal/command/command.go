// Package command turns a client's line into a verb and arguments and
// runs the matching handler against the session's sandbox.
//
// Handlers are pure with respect to session state: they read a
// [session.Session] snapshot and describe any change in the [Reply].
// The caller applies that change, which lets handlers run on a worker
// goroutine while the registry stays owned by one loop.
package command

import (
	"context"
	"strings"

	"golang.org/x/text/unicode/norm"

	ncerr "telfs/internal/errors"
	"telfs/internal/sandbox"
	"telfs/internal/session"
)

// Command is one parsed line.
type Command struct {
	Verb string
	Args []string
}

// Parse normalises line to NFC and splits it on whitespace.  ok is
// false for a blank line.  No quoting or escaping is recognised.
func Parse(line string) (cmd Command, ok bool) {
	line = norm.NFC.String(strings.ToValidUTF8(line, "\uFFFD"))
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, false
	}
	return Command{Verb: fields[0], Args: fields[1:]}, true
}

// Reply is what a handler wants done: lines to send back and session
// changes to apply.  Nil pointers mean "leave unchanged".
type Reply struct {
	Output   []string
	Nickname *string
	Cwd      *string
	Close    bool

	// Err is the handler failure behind the last output line, unless
	// it was an ordinary client-facing notice.  The loop logs it.
	Err error
}

func (r *Reply) say(lines ...string) { r.Output = append(r.Output, lines...) }

// Env is everything a handler may use.
type Env struct {
	FS      sandbox.FS
	Session session.Session

	// MaxOutput caps the bytes a single reply may carry; 0 means no cap.
	MaxOutput int
}

// HandlerFunc executes a verb.  A returned error is turned into a
// one-line client message by [Message].
type HandlerFunc func(ctx context.Context, env Env, args []string) (Reply, error)

// Verb describes one entry of the command table.
type Verb struct {
	Name  string
	Usage string
	Help  string
	Args  int  // required argument count
	Exact bool // match the verb token exactly rather than by prefix
	Local bool // touches no filesystem; safe to run on the loop
	Run   HandlerFunc
}

// Dispatcher routes commands to verbs.
type Dispatcher struct {
	fs        sandbox.FS
	verbs     []*Verb
	maxOutput int
}

// New returns a dispatcher with the full verb table bound to fsys.
func New(fsys sandbox.FS) *Dispatcher {
	d := &Dispatcher{fs: fsys, maxOutput: DefaultMaxOutput}
	d.verbs = builtinVerbs(d)
	return d
}

// Verbs returns the command table in help order.
func (d *Dispatcher) Verbs() []*Verb { return d.verbs }

// Lookup finds the verb for cmd.  An exact match on the verb token
// wins; otherwise the first argument-taking verb whose name prefixes
// the token is used ("rmdir x" runs rm).
func (d *Dispatcher) Lookup(cmd Command) (*Verb, bool) {
	for _, v := range d.verbs {
		if v.Name == cmd.Verb {
			return v, true
		}
	}
	for _, v := range d.verbs {
		if !v.Exact && strings.HasPrefix(cmd.Verb, v.Name) {
			return v, true
		}
	}
	return nil, false
}

// Run executes v for sess.  Missing arguments and handler errors are
// folded into the reply output, so Run never fails.
func (d *Dispatcher) Run(ctx context.Context, v *Verb, sess session.Session, cmd Command) Reply {
	if len(cmd.Args) < v.Args {
		return Reply{Output: []string{Message(&ncerr.CommandError{Verb: v.Name, Want: v.Args, Got: len(cmd.Args)})}}
	}
	reply, err := v.Run(ctx, Env{FS: d.fs, Session: sess, MaxOutput: d.maxOutput}, cmd.Args)
	if err != nil {
		reply.say(Message(err))
		if !clientMistake(err) {
			reply.Err = err
		}
	}
	return reply
}

// Dispatch parses and runs line in one step.  Unknown verbs and blank
// lines produce an empty reply.
func (d *Dispatcher) Dispatch(ctx context.Context, sess session.Session, line string) Reply {
	cmd, ok := Parse(line)
	if !ok {
		return Reply{}
	}
	v, ok := d.Lookup(cmd)
	if !ok {
		return Reply{}
	}
	return d.Run(ctx, v, sess, cmd)
}
