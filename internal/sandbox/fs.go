package sandbox

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	ncerr "telfs/internal/errors"
)

// MaxLineBytes bounds a single line returned by ReadLines.
const MaxLineBytes = 1 << 20

var (
	errRemoveRoot   = errors.New("cannot remove the root directory")
	errCopyIntoSelf = errors.New("cannot copy a directory into itself")
)

// FS is the filesystem collaborator the command handlers call.  Every
// path is a virtual path that has already passed [Resolve].
//
// Errors are *ncerr.FSError values whose Path is the display form.
type FS interface {
	Exists(p string) bool
	Stat(p string) (fs.FileInfo, error)
	CreateFile(p string) error
	CreateDirectory(p string) error
	Delete(p string) error
	Copy(src, dst string) error
	ReadLines(p string, fn func(line string) error) error
	ListEntries(dir string) ([]string, error)
	Close() error
}

// Root implements [FS] on a host directory opened with [os.Root], so
// symlinks cannot lead outside it either.
type Root struct {
	dir    string
	handle *os.Root
}

// OpenRoot opens dir as the sandbox root.  With create set, a missing
// dir is created first.
func OpenRoot(dir string, create bool) (*Root, error) {
	if create {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating root %s: %w", dir, err)
		}
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("root path validation failed: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", dir)
	}
	h, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("opening root %s: %w", dir, err)
	}
	return &Root{dir: dir, handle: h}, nil
}

// Dir returns the host directory the root was opened on.
func (r *Root) Dir() string { return r.dir }

// Close releases the root directory handle.
func (r *Root) Close() error { return r.handle.Close() }

func (r *Root) check(op, p string) error {
	if !Within(p) {
		return ncerr.WrapFS(op, Display(p), ncerr.ErrOutsideRoot)
	}
	return nil
}

// Exists reports whether p names anything inside the root.
func (r *Root) Exists(p string) bool {
	_, err := r.Stat(p)
	return err == nil
}

// Stat returns metadata for p.
func (r *Root) Stat(p string) (fs.FileInfo, error) {
	if err := r.check("stat", p); err != nil {
		return nil, err
	}
	info, err := r.handle.Stat(p)
	if err != nil {
		return nil, ncerr.WrapFS("stat", Display(p), err)
	}
	return info, nil
}

// CreateFile creates an empty regular file.  It fails with
// [fs.ErrExist] if p is already taken.
func (r *Root) CreateFile(p string) error {
	if err := r.check("create", p); err != nil {
		return err
	}
	f, err := r.handle.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return ncerr.WrapFS("create", Display(p), err)
	}
	if err := f.Close(); err != nil {
		return ncerr.WrapFS("create", Display(p), err)
	}
	return nil
}

// CreateDirectory creates a single directory with 0755 permissions.
func (r *Root) CreateDirectory(p string) error {
	if err := r.check("mkdir", p); err != nil {
		return err
	}
	if err := r.handle.Mkdir(p, 0o755); err != nil {
		return ncerr.WrapFS("mkdir", Display(p), err)
	}
	return nil
}

// Delete removes a file or an empty directory.
func (r *Root) Delete(p string) error {
	if err := r.check("remove", p); err != nil {
		return err
	}
	if p == Top {
		return ncerr.WrapFS("remove", Display(p), errRemoveRoot)
	}
	if err := r.handle.Remove(p); err != nil {
		return ncerr.WrapFS("remove", Display(p), err)
	}
	return nil
}

// Copy copies src to dst, replacing dst if it is a file.  When dst is
// an existing directory the copy lands inside it under src's name.
// Directories are copied recursively.  Copying a file onto itself,
// including through a hard link, leaves it untouched.
func (r *Root) Copy(src, dst string) error {
	if err := r.check("copy", src); err != nil {
		return err
	}
	if err := r.check("copy", dst); err != nil {
		return err
	}
	info, err := r.handle.Stat(src)
	if err != nil {
		return ncerr.WrapFS("copy", Display(src), err)
	}
	dinfo, derr := r.handle.Stat(dst)
	if derr == nil && dinfo.IsDir() && src != Top {
		dst = path.Join(dst, path.Base(src))
		dinfo, derr = r.handle.Stat(dst)
	}

	if !info.IsDir() {
		// Opening dst with O_TRUNC would empty src before it is read.
		if src == dst || (derr == nil && os.SameFile(info, dinfo)) {
			return nil
		}
		return r.copyFile(src, dst, info.Mode().Perm())
	}
	if src == dst || src == Top || strings.HasPrefix(dst, src+"/") {
		return ncerr.WrapFS("copy", Display(src), errCopyIntoSelf)
	}
	return fs.WalkDir(r.handle.FS(), src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return ncerr.WrapFS("copy", Display(p), err)
		}
		target := path.Join(dst, strings.TrimPrefix(p, src))
		if d.IsDir() {
			if err := r.handle.Mkdir(target, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
				return ncerr.WrapFS("copy", Display(target), err)
			}
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return ncerr.WrapFS("copy", Display(p), err)
		}
		return r.copyFile(p, target, fi.Mode().Perm())
	})
}

func (r *Root) copyFile(src, dst string, perm fs.FileMode) error {
	in, err := r.handle.Open(src)
	if err != nil {
		return ncerr.WrapFS("copy", Display(src), err)
	}
	defer in.Close()

	out, err := r.handle.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return ncerr.WrapFS("copy", Display(dst), err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return ncerr.WrapFS("copy", Display(dst), err)
	}
	if err := out.Close(); err != nil {
		return ncerr.WrapFS("copy", Display(dst), err)
	}
	return nil
}

// ReadLines calls fn for every line of the regular file p, without the
// line terminator.  It stops at the first error fn returns.
func (r *Root) ReadLines(p string, fn func(line string) error) error {
	if err := r.check("read", p); err != nil {
		return err
	}
	f, err := r.handle.Open(p)
	if err != nil {
		return ncerr.WrapFS("read", Display(p), err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return ncerr.WrapFS("read", Display(p), err)
	}
	if info.IsDir() {
		return ncerr.WrapFS("read", Display(p), ncerr.ErrIsDirectory)
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 4096), MaxLineBytes)
	for sc.Scan() {
		if err := fn(strings.TrimSuffix(sc.Text(), "\r")); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return ncerr.WrapFS("read", Display(p), err)
	}
	return nil
}

// ListEntries returns the names in directory dir, sorted.
func (r *Root) ListEntries(dir string) ([]string, error) {
	if err := r.check("list", dir); err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(r.handle.FS(), dir)
	if err != nil {
		return nil, ncerr.WrapFS("list", Display(dir), err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}
