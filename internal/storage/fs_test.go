package storage

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func tempTree(t *testing.T, opts ...FSOption) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir, opts...)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func listPaths(t *testing.T, s *FS) []string {
	t.Helper()
	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var out []string
	for _, it := range items {
		out = append(out, filepath.ToSlash(it.Path))
	}
	sort.Strings(out)
	return out
}

func TestWriteAndRead(t *testing.T) {
	s := tempTree(t)
	content := []byte("# Hello\nWorld\n")
	if err := s.Write("2018---hello/index.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("2018---hello/index.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempTree(t)
	if err := s.Write("a/b/c.md", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDeletePrunesEmptyDirs(t *testing.T) {
	s := tempTree(t)
	_ = s.Write("gone/deeper/index.html", []byte("bye"))
	_ = s.Write("gone/keep.html", []byte("stay"))
	if err := s.Delete("gone/deeper/index.html"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "gone", "deeper")); !os.IsNotExist(err) {
		t.Errorf("empty dir should be pruned, stat err = %v", err)
	}
	if _, err := s.Read("gone/keep.html"); err != nil {
		t.Errorf("sibling file should survive: %v", err)
	}
}

func TestList_DefaultExtensions(t *testing.T) {
	s := tempTree(t)
	_ = s.Write("a.md", []byte("a"))
	_ = s.Write("sub/b.MDX", []byte("b"))
	_ = s.Write("readme.txt", []byte("not md"))

	want := []string{"a.md", "sub/b.MDX"}
	if diff := cmp.Diff(want, listPaths(t, s)); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
}

func TestList_Exclude(t *testing.T) {
	s := tempTree(t, WithExclude("**/drafts/**", "scratch.md"))
	_ = s.Write("x---post/index.md", []byte("a"))
	_ = s.Write("drafts/y---wip/index.md", []byte("b"))
	_ = s.Write("notes/drafts/z---wip/index.md", []byte("c"))
	_ = s.Write("scratch.md", []byte("d"))

	want := []string{"x---post/index.md"}
	if diff := cmp.Diff(want, listPaths(t, s)); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
}

func TestList_AllFiles(t *testing.T) {
	s := tempTree(t, WithExtensions())
	_ = s.Write("css/site.css", []byte("body{}"))
	_ = s.Write("favicon.ico", []byte{0})
	if got := listPaths(t, s); len(got) != 2 {
		t.Errorf("List = %v, want 2 files", got)
	}
}

func TestNewFS_InvalidExclude(t *testing.T) {
	if _, err := NewFS(t.TempDir(), WithExclude("[")); err == nil {
		t.Error("expected error for malformed pattern")
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempTree(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAbs(t *testing.T) {
	s := tempTree(t)
	got, err := s.Abs("notes/a---b/index.md")
	if err != nil {
		t.Fatalf("Abs: %v", err)
	}
	if want := filepath.Join(s.Root(), "notes", "a---b", "index.md"); got != want {
		t.Errorf("Abs = %q, want %q", got, want)
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempTree(t)
	_ = s.Write("atomic.md", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic.md", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.md")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".grayside-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "grayside-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
