package command

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"unicode/utf8"

	ncerr "telfs/internal/errors"
	"telfs/internal/sandbox"
)

func builtinVerbs(d *Dispatcher) []*Verb {
	return []*Verb{
		{Name: "--help", Help: "show this list", Exact: true, Local: true, Run: d.help},
		{Name: "ls", Help: "view all files and directories", Exact: true, Run: list},
		{Name: "nick", Usage: "<name>", Help: "change nickname", Args: 1, Run: nick},
		{Name: "cd", Usage: "<path | .. | ~>", Help: "change directory", Args: 1, Exact: true, Run: changeDir},
		{Name: "cat", Usage: "<file>", Help: "print file contents", Args: 1, Run: cat},
		{Name: "touch", Usage: "<file>", Help: "create an empty file", Args: 1, Run: touch},
		{Name: "mkdir", Usage: "<dir>", Help: "create directory", Args: 1, Run: makeDir},
		{Name: "rm", Usage: "<file | dir>", Help: "delete a file or an empty directory", Args: 1, Run: remove},
		{Name: "copy", Usage: "<src> <dst>", Help: "copy a file or directory", Args: 2, Run: copyPath},
		{Name: "exit", Help: "close the connection", Exact: true, Local: true, Run: exit},
	}
}

func (d *Dispatcher) help(_ context.Context, _ Env, _ []string) (Reply, error) {
	var r Reply
	for _, v := range d.verbs {
		name := v.Name
		if v.Usage != "" {
			name += " " + v.Usage
		}
		r.say(fmt.Sprintf("%-20s %s", name, v.Help))
	}
	return r, nil
}

func exit(_ context.Context, _ Env, _ []string) (Reply, error) {
	return Reply{Close: true}, nil
}

// listing returns the entries of the session's directory joined by
// spaces.  An unreadable directory yields no line at all.
func listing(env Env) []string {
	names, err := env.FS.ListEntries(env.Session.Cwd)
	if err != nil {
		return nil
	}
	return []string{strings.Join(names, " ")}
}

func list(_ context.Context, env Env, _ []string) (Reply, error) {
	return Reply{Output: listing(env)}, nil
}

func nick(_ context.Context, env Env, args []string) (Reply, error) {
	name := args[0]
	if utf8.RuneCountInString(name) > MaxNickname {
		return Reply{}, noticef("Malformed command: nickname longer than %d characters", MaxNickname)
	}
	return Reply{Nickname: &name, Output: listing(env)}, nil
}

func changeDir(_ context.Context, env Env, args []string) (Reply, error) {
	token := args[0]
	cwd := env.Session.Cwd

	switch token {
	case "..":
		parent, ok := sandbox.Parent(cwd)
		if !ok {
			return Reply{}, notice(RootNotification)
		}
		return Reply{Cwd: &parent}, nil
	case sandbox.Home:
		top := sandbox.Top
		return Reply{Cwd: &top}, nil
	}

	target, err := sandbox.Resolve(cwd, token)
	if err != nil {
		return Reply{}, noticef(dirMissing, token)
	}
	info, err := env.FS.Stat(target)
	if err != nil {
		if ncerr.IsNotFound(err) {
			return Reply{}, noticef(dirMissing, token)
		}
		return Reply{}, err
	}
	if !info.IsDir() {
		return Reply{}, ncerr.WrapFS("cd", token, ncerr.ErrNotDirectory)
	}
	return Reply{Cwd: &target}, nil
}

// errOutputCap stops ReadLines once a reply reaches Env.MaxOutput.
var errOutputCap error = notice("output limit reached")

func cat(ctx context.Context, env Env, args []string) (Reply, error) {
	target, err := sandbox.Resolve(env.Session.Cwd, args[0])
	if err != nil {
		return Reply{}, noticef(fileMissing, args[0])
	}
	var (
		r    Reply
		size int
	)
	err = env.FS.ReadLines(target, func(line string) error {
		size += len(line) + 2
		if env.MaxOutput > 0 && size > env.MaxOutput {
			return errOutputCap
		}
		r.say(line)
		return ctx.Err()
	})
	switch {
	case err == nil:
		return r, nil
	case err == errOutputCap:
		r.say(fmt.Sprintf(truncated, env.MaxOutput))
		return r, nil
	case ncerr.IsNotFound(err):
		return Reply{}, noticef(fileMissing, args[0])
	case ncerr.Is(err, ncerr.ErrIsDirectory):
		return Reply{}, noticef(isDir, args[0])
	default:
		return r, err
	}
}

func touch(_ context.Context, env Env, args []string) (Reply, error) {
	target, err := sandbox.Resolve(env.Session.Cwd, args[0])
	if err != nil {
		return Reply{}, noticef(dirMissing, args[0])
	}
	if env.FS.Exists(target) {
		return Reply{}, nil
	}
	if err := env.FS.CreateFile(target); err != nil {
		if ncerr.Is(err, fs.ErrExist) {
			return Reply{}, nil
		}
		return Reply{}, err
	}
	return Reply{Output: []string{"File created: " + args[0]}}, nil
}

func makeDir(_ context.Context, env Env, args []string) (Reply, error) {
	target, err := sandbox.Resolve(env.Session.Cwd, args[0])
	if err != nil {
		return Reply{}, noticef(dirMissing, args[0])
	}
	if env.FS.Exists(target) {
		return Reply{}, nil
	}
	if err := env.FS.CreateDirectory(target); err != nil {
		if ncerr.Is(err, fs.ErrExist) {
			return Reply{}, nil
		}
		return Reply{}, err
	}
	return Reply{Output: []string{"Directory created: " + args[0]}}, nil
}

// remove is silent when the target is absent or outside the root.
func remove(_ context.Context, env Env, args []string) (Reply, error) {
	target, err := sandbox.Resolve(env.Session.Cwd, args[0])
	if err != nil || !env.FS.Exists(target) {
		return Reply{}, nil
	}
	if err := env.FS.Delete(target); err != nil {
		if ncerr.IsNotFound(err) {
			return Reply{}, nil
		}
		return Reply{}, err
	}
	return Reply{Output: []string{"File or directory deleted: " + args[0]}}, nil
}

func copyPath(_ context.Context, env Env, args []string) (Reply, error) {
	src, err := sandbox.Resolve(env.Session.Cwd, args[0])
	if err != nil || !env.FS.Exists(src) {
		return Reply{}, noticef(fileMissing, args[0])
	}
	dst, err := sandbox.Resolve(env.Session.Cwd, args[1])
	if err != nil {
		return Reply{}, noticef(dirMissing, args[1])
	}
	if err := env.FS.Copy(src, dst); err != nil {
		if ncerr.IsNotFound(err) {
			return Reply{}, noticef(dirMissing, args[1])
		}
		return Reply{}, err
	}
	return Reply{Output: []string{"File or directory copied to: " + args[1]}}, nil
}
