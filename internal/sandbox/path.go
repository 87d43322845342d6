// Package sandbox confines every path a session can name to a single
// server-owned root directory.
//
// Paths inside the package are "virtual": slash-separated, relative to
// the root, with "." naming the root itself.  They are valid io/fs
// paths, so they can be handed to [os.Root] and [io/fs] helpers
// unchanged.  Resolution is lexical; [Root] adds a second, kernel-level
// check for symlinks through os.Root.
package sandbox

import (
	"path"
	"strings"

	ncerr "telfs/internal/errors"
)

// Top is the virtual path of the root directory.
const Top = "."

// Home is the token clients use for the root, both alone and as a
// prefix ("~/docs").
const Home = "~"

// Resolve joins token onto cwd and returns the resulting virtual path.
// Tokens starting with "/" or "~/" are taken relative to the root.
// Any result above the root yields [ncerr.ErrOutsideRoot].
func Resolve(cwd, token string) (string, error) {
	if token == "" {
		return "", ncerr.ErrNotFound
	}
	if !Within(cwd) {
		return "", ncerr.ErrOutsideRoot
	}

	base := cwd
	switch {
	case token == Home:
		return Top, nil
	case strings.HasPrefix(token, Home+"/"):
		base, token = Top, token[len(Home)+1:]
	case strings.HasPrefix(token, "/"):
		base = Top
	}

	p := path.Join(base, token)
	if !Within(p) {
		return "", ncerr.ErrOutsideRoot
	}
	return p, nil
}

// Parent returns the directory above p.  ok is false when p is already
// the root.
func Parent(p string) (parent string, ok bool) {
	if p == Top || !Within(p) {
		return Top, false
	}
	return path.Dir(p), true
}

// Within reports whether virtual path p names the root or something
// below it.
func Within(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") {
		return false
	}
	clean := path.Clean(p)
	return clean != ".." && !strings.HasPrefix(clean, "../")
}

// Display renders p for the client: the root becomes "~" and every
// other path is shown as "~/<p>".
func Display(p string) string {
	if p == Top || p == "" {
		return Home
	}
	return Home + "/" + p
}
