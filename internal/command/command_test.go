package command

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"telfs/internal/sandbox"
	"telfs/internal/session"
)

func newDispatcher(t *testing.T) (*Dispatcher, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "server")
	root, err := sandbox.OpenRoot(dir, true)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { root.Close() })
	return New(root), dir
}

// run dispatches line and applies the reply to sess, like the loop does.
func run(t *testing.T, d *Dispatcher, sess *session.Session, line string) Reply {
	t.Helper()
	r := d.Dispatch(context.Background(), *sess, line)
	if r.Nickname != nil {
		sess.Nickname = *r.Nickname
	}
	if r.Cwd != nil {
		sess.Cwd = *r.Cwd
	}
	return r
}

func newSession() *session.Session {
	return &session.Session{ID: "127.0.0.1:5000", Cwd: sandbox.Top}
}

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		want Command
		ok   bool
	}{
		{"ls", Command{Verb: "ls", Args: []string{}}, true},
		{"  copy  a   b ", Command{Verb: "copy", Args: []string{"a", "b"}}, true},
		{"\t", Command{}, false},
		{"", Command{}, false},
		// e + combining acute is folded to the precomposed form.
		{"touch cafe\u0301", Command{Verb: "touch", Args: []string{"caf\u00e9"}}, true},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.line)
		if ok != tt.ok || !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Parse(%q) = %#v, %v; want %#v, %v", tt.line, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLookup(t *testing.T) {
	d := New(nil)
	tests := []struct {
		verb string
		want string
		ok   bool
	}{
		{"ls", "ls", true},
		{"lsx", "", false},
		{"--help", "--help", true},
		{"nick", "nick", true},
		{"nickname", "nick", true},
		{"rmdir", "rm", true},
		{"cd", "cd", true},
		{"cdx", "", false},
		{"exit", "exit", true},
		{"exit2", "", false},
		{"bogus", "", false},
	}
	for _, tt := range tests {
		v, ok := d.Lookup(Command{Verb: tt.verb})
		if ok != tt.ok || (ok && v.Name != tt.want) {
			name := ""
			if v != nil {
				name = v.Name
			}
			t.Errorf("Lookup(%q) = %q, %v; want %q, %v", tt.verb, name, ok, tt.want, tt.ok)
		}
	}
}

func TestDispatch_UnknownVerb(t *testing.T) {
	d, _ := newDispatcher(t)
	r := run(t, d, newSession(), "frobnicate now")
	if len(r.Output) != 0 || r.Close {
		t.Fatalf("unknown verb produced %+v", r)
	}
}

func TestDispatch_Help(t *testing.T) {
	d, _ := newDispatcher(t)
	r := run(t, d, newSession(), "--help")
	if len(r.Output) != len(d.Verbs()) {
		t.Fatalf("help has %d lines, want %d", len(r.Output), len(d.Verbs()))
	}
	joined := strings.Join(r.Output, "\n")
	for _, v := range []string{"ls", "nick", "cd", "cat", "touch", "mkdir", "rm", "copy", "exit"} {
		if !strings.Contains(joined, v) {
			t.Errorf("help does not mention %q", v)
		}
	}
}

func TestDispatch_MissingArgument(t *testing.T) {
	d, _ := newDispatcher(t)
	for _, line := range []string{"nick", "cd", "cat", "touch", "mkdir", "rm", "copy a"} {
		r := run(t, d, newSession(), line)
		if len(r.Output) != 1 || !strings.HasPrefix(r.Output[0], "Malformed command:") {
			t.Errorf("%q -> %q, want malformed-command message", line, r.Output)
		}
	}
}

func TestDispatch_Exit(t *testing.T) {
	d, _ := newDispatcher(t)
	if r := run(t, d, newSession(), "exit"); !r.Close {
		t.Fatal("exit should close the connection")
	}
}

func TestCd_RootNotification(t *testing.T) {
	d, _ := newDispatcher(t)
	sess := newSession()
	r := run(t, d, sess, "cd ..")
	if !reflect.DeepEqual(r.Output, []string{RootNotification}) {
		t.Fatalf("output = %q", r.Output)
	}
	if r.Cwd != nil || sess.Cwd != sandbox.Top {
		t.Fatalf("cwd changed to %q", sess.Cwd)
	}
}

func TestCd_RoundTrip(t *testing.T) {
	d, _ := newDispatcher(t)
	sess := newSession()

	if r := run(t, d, sess, "mkdir foo"); !reflect.DeepEqual(r.Output, []string{"Directory created: foo"}) {
		t.Fatalf("mkdir output = %q", r.Output)
	}
	run(t, d, sess, "cd foo")
	if sess.Cwd != "foo" {
		t.Fatalf("cwd = %q, want foo", sess.Cwd)
	}
	if got := Prompt(*sess); got != "127.0.0.1:5000:>~/foo$" {
		t.Errorf("prompt = %q", got)
	}
	run(t, d, sess, "cd ..")
	if sess.Cwd != sandbox.Top {
		t.Fatalf("cwd = %q after cd ..", sess.Cwd)
	}
}

func TestCd_Home(t *testing.T) {
	d, _ := newDispatcher(t)
	sess := newSession()
	run(t, d, sess, "mkdir a")
	run(t, d, sess, "cd a")
	run(t, d, sess, "mkdir b")
	run(t, d, sess, "cd b")
	if sess.Cwd != "a/b" {
		t.Fatalf("cwd = %q", sess.Cwd)
	}
	run(t, d, sess, "cd ~")
	if sess.Cwd != sandbox.Top {
		t.Fatalf("cd ~ left cwd at %q", sess.Cwd)
	}
}

func TestCd_Missing(t *testing.T) {
	d, _ := newDispatcher(t)
	sess := newSession()
	r := run(t, d, sess, "cd nowhere")
	if !reflect.DeepEqual(r.Output, []string{"Directory nowhere doesn't exist"}) {
		t.Fatalf("output = %q", r.Output)
	}
	if sess.Cwd != sandbox.Top {
		t.Fatalf("cwd = %q", sess.Cwd)
	}
}

func TestCd_EscapeLooksMissing(t *testing.T) {
	d, dir := newDispatcher(t)
	// A sibling of the root that really exists on the host.
	if err := os.Mkdir(filepath.Join(filepath.Dir(dir), "etc"), 0o755); err != nil {
		t.Fatal(err)
	}
	sess := newSession()
	for _, tok := range []string{"../etc", "../../etc", "/../etc", "~/../etc"} {
		r := run(t, d, sess, "cd "+tok)
		want := "Directory " + tok + " doesn't exist"
		if !reflect.DeepEqual(r.Output, []string{want}) {
			t.Errorf("cd %s -> %q, want %q", tok, r.Output, want)
		}
		if !sandbox.Within(sess.Cwd) || sess.Cwd != sandbox.Top {
			t.Fatalf("cd %s moved cwd to %q", tok, sess.Cwd)
		}
	}
}

func TestCd_RepeatedParentStaysAtRoot(t *testing.T) {
	d, _ := newDispatcher(t)
	sess := newSession()
	run(t, d, sess, "mkdir a")
	run(t, d, sess, "cd a")
	for i := 0; i < 5; i++ {
		run(t, d, sess, "cd ..")
		if !sandbox.Within(sess.Cwd) {
			t.Fatalf("cwd escaped: %q", sess.Cwd)
		}
	}
	if sess.Cwd != sandbox.Top {
		t.Fatalf("cwd = %q", sess.Cwd)
	}
}

func TestCd_RegularFileRejected(t *testing.T) {
	d, _ := newDispatcher(t)
	sess := newSession()
	run(t, d, sess, "touch notes")
	r := run(t, d, sess, "cd notes")
	if !reflect.DeepEqual(r.Output, []string{"notes is not a directory"}) {
		t.Fatalf("output = %q", r.Output)
	}
	if r.Err != nil {
		t.Errorf("a file target is a client mistake, not a fault: %v", r.Err)
	}
	if sess.Cwd != sandbox.Top {
		t.Fatalf("cwd = %q", sess.Cwd)
	}
}

func TestTouch_Idempotent(t *testing.T) {
	d, dir := newDispatcher(t)
	sess := newSession()
	if r := run(t, d, sess, "touch x"); !reflect.DeepEqual(r.Output, []string{"File created: x"}) {
		t.Fatalf("first touch = %q", r.Output)
	}
	if err := os.WriteFile(filepath.Join(dir, "x"), []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := run(t, d, sess, "touch x"); len(r.Output) != 0 {
		t.Fatalf("second touch = %q, want no output", r.Output)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "x"))
	if string(data) != "keep" {
		t.Errorf("touch modified the file: %q", data)
	}
}

func TestTouch_InCurrentDirectory(t *testing.T) {
	d, dir := newDispatcher(t)
	sess := newSession()
	run(t, d, sess, "mkdir docs")
	run(t, d, sess, "cd docs")
	run(t, d, sess, "touch readme")
	if _, err := os.Stat(filepath.Join(dir, "docs", "readme")); err != nil {
		t.Fatalf("file not created under cwd: %v", err)
	}
}

func TestMkdir_ExistingIsNoop(t *testing.T) {
	d, _ := newDispatcher(t)
	sess := newSession()
	run(t, d, sess, "mkdir docs")
	if r := run(t, d, sess, "mkdir docs"); len(r.Output) != 0 {
		t.Fatalf("output = %q", r.Output)
	}
}

func TestRm(t *testing.T) {
	d, dir := newDispatcher(t)
	sess := newSession()
	if r := run(t, d, sess, "rm ghost"); len(r.Output) != 0 {
		t.Fatalf("rm of absent name = %q, want nothing", r.Output)
	}
	run(t, d, sess, "touch f")
	if r := run(t, d, sess, "rm f"); !reflect.DeepEqual(r.Output, []string{"File or directory deleted: f"}) {
		t.Fatalf("rm output = %q", r.Output)
	}
	if _, err := os.Stat(filepath.Join(dir, "f")); !os.IsNotExist(err) {
		t.Fatal("file still present")
	}
}

func TestRm_OutsideRootSilent(t *testing.T) {
	d, dir := newDispatcher(t)
	victim := filepath.Join(filepath.Dir(dir), "victim")
	os.WriteFile(victim, nil, 0o644)
	if r := run(t, d, newSession(), "rm ../victim"); len(r.Output) != 0 {
		t.Fatalf("output = %q", r.Output)
	}
	if _, err := os.Stat(victim); err != nil {
		t.Fatal("file outside the root was removed")
	}
}

func TestRm_NonEmptyDirectoryReportsFailure(t *testing.T) {
	d, _ := newDispatcher(t)
	sess := newSession()
	run(t, d, sess, "mkdir d")
	run(t, d, sess, "touch d/f")
	r := run(t, d, sess, "rm d")
	if len(r.Output) != 1 || !strings.HasPrefix(r.Output[0], "Failed to remove ~/d:") {
		t.Fatalf("output = %q", r.Output)
	}
}

func TestCat(t *testing.T) {
	d, dir := newDispatcher(t)
	os.WriteFile(filepath.Join(dir, "poem"), []byte("roses\nviolets\n"), 0o644)
	sess := newSession()

	if r := run(t, d, sess, "cat poem"); !reflect.DeepEqual(r.Output, []string{"roses", "violets"}) {
		t.Fatalf("cat = %q", r.Output)
	}
	if r := run(t, d, sess, "cat nope"); !reflect.DeepEqual(r.Output, []string{"File nope doesn't exist"}) {
		t.Fatalf("cat missing = %q", r.Output)
	}
	run(t, d, sess, "mkdir folder")
	if r := run(t, d, sess, "cat folder"); !reflect.DeepEqual(r.Output, []string{"folder is a directory"}) {
		t.Fatalf("cat dir = %q", r.Output)
	}
}

func TestCat_TruncatesLargeFiles(t *testing.T) {
	d, dir := newDispatcher(t)
	d.maxOutput = 64
	os.WriteFile(filepath.Join(dir, "big"), []byte(strings.Repeat("0123456789\n", 100)), 0o644)

	r := run(t, d, newSession(), "cat big")
	if len(r.Output) != 6 {
		t.Fatalf("got %d lines, want 5 lines plus the notice: %q", len(r.Output), r.Output)
	}
	if last := r.Output[len(r.Output)-1]; last != "... output truncated after 64 bytes" {
		t.Errorf("last line = %q", last)
	}
	if r.Err != nil {
		t.Errorf("truncation should not be reported as a fault: %v", r.Err)
	}
}

func TestCat_OutsideRootLooksMissing(t *testing.T) {
	d, dir := newDispatcher(t)
	os.WriteFile(filepath.Join(filepath.Dir(dir), "secret"), []byte("nope"), 0o644)
	r := run(t, d, newSession(), "cat ../secret")
	if !reflect.DeepEqual(r.Output, []string{"File ../secret doesn't exist"}) {
		t.Fatalf("output = %q", r.Output)
	}
}

func TestCopy(t *testing.T) {
	d, dir := newDispatcher(t)
	os.WriteFile(filepath.Join(dir, "a"), []byte("data"), 0o644)
	sess := newSession()

	if r := run(t, d, sess, "copy a b"); !reflect.DeepEqual(r.Output, []string{"File or directory copied to: b"}) {
		t.Fatalf("copy = %q", r.Output)
	}
	data, err := os.ReadFile(filepath.Join(dir, "b"))
	if err != nil || string(data) != "data" {
		t.Fatalf("b = %q, %v", data, err)
	}
	if r := run(t, d, sess, "copy ghost c"); !reflect.DeepEqual(r.Output, []string{"File ghost doesn't exist"}) {
		t.Fatalf("copy missing = %q", r.Output)
	}
}

func TestCopy_OntoItselfKeepsContents(t *testing.T) {
	d, dir := newDispatcher(t)
	os.WriteFile(filepath.Join(dir, "f.txt"), []byte("precious\n"), 0o644)
	sess := newSession()

	for _, dst := range []string{"f.txt", ".", "./f.txt", "~/f.txt"} {
		run(t, d, sess, "copy f.txt "+dst)
		data, err := os.ReadFile(filepath.Join(dir, "f.txt"))
		if err != nil || string(data) != "precious\n" {
			t.Fatalf("after copy f.txt %s: f.txt = %q, %v", dst, data, err)
		}
	}
}

func TestCopy_DestinationConfined(t *testing.T) {
	d, dir := newDispatcher(t)
	os.WriteFile(filepath.Join(dir, "a"), []byte("data"), 0o644)
	r := run(t, d, newSession(), "copy a ../leak")
	if !reflect.DeepEqual(r.Output, []string{"Directory ../leak doesn't exist"}) {
		t.Fatalf("output = %q", r.Output)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "leak")); err == nil {
		t.Fatal("copy wrote outside the root")
	}
}

func TestNick(t *testing.T) {
	d, _ := newDispatcher(t)
	sess := newSession()
	run(t, d, sess, "touch one")
	r := run(t, d, sess, "nick alice")
	if sess.Nickname != "alice" {
		t.Fatalf("nickname = %q", sess.Nickname)
	}
	if !reflect.DeepEqual(r.Output, []string{"one"}) {
		t.Errorf("nick should echo the listing, got %q", r.Output)
	}
	if got := Prompt(*sess); got != "alice:>~$" {
		t.Errorf("prompt = %q", got)
	}
}

func TestNick_TooLong(t *testing.T) {
	d, _ := newDispatcher(t)
	sess := newSession()
	r := run(t, d, sess, "nick "+strings.Repeat("x", MaxNickname+1))
	if sess.Nickname != "" || len(r.Output) != 1 {
		t.Fatalf("nickname = %q output = %q", sess.Nickname, r.Output)
	}
}

func TestLs_CurrentDirectorySorted(t *testing.T) {
	d, _ := newDispatcher(t)
	sess := newSession()
	run(t, d, sess, "mkdir docs")
	run(t, d, sess, "touch zeta")
	run(t, d, sess, "touch alpha")
	if r := run(t, d, sess, "ls"); !reflect.DeepEqual(r.Output, []string{"alpha docs zeta"}) {
		t.Fatalf("ls = %q", r.Output)
	}
	run(t, d, sess, "cd docs")
	if r := run(t, d, sess, "ls"); !reflect.DeepEqual(r.Output, []string{""}) {
		t.Fatalf("ls in empty dir = %q", r.Output)
	}
}

func TestLs_UnreadableDirectorySilent(t *testing.T) {
	d, dir := newDispatcher(t)
	sess := newSession()
	run(t, d, sess, "mkdir gone")
	run(t, d, sess, "cd gone")
	os.Remove(filepath.Join(dir, "gone"))
	if r := run(t, d, sess, "ls"); len(r.Output) != 0 {
		t.Fatalf("ls = %q, want nothing", r.Output)
	}
}
