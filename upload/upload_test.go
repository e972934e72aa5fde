package upload

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestSaveAndOpen(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	name, err := store.Save(strings.NewReader("content"), "resume", "My Resume.pdf")
	if err != nil {
		t.Fatalf("saving: %v", err)
	}

	if !strings.HasPrefix(name, "resume_") || !strings.HasSuffix(name, ".pdf") {
		t.Errorf("unexpected stored name %q", name)
	}

	if !store.Exists(name) {
		t.Errorf("stored file %q should exist", name)
	}

	f, err := store.Open(name)
	if err != nil {
		t.Fatalf("opening: %v", err)
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "content" {
		t.Errorf("got %q, want %q", b, "content")
	}
}

func TestSaveRejectsExtension(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"malware.exe", "script.sh", "noext"} {
		if _, err := store.Save(strings.NewReader("x"), "resume", name); !errors.Is(err, ErrBadExtension) {
			t.Errorf("%q: got %v, want ErrBadExtension", name, err)
		}
	}
}

func TestExistsIgnoresPathTraversal(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if store.Exists("../../etc/passwd") {
		t.Error("traversal outside the store directory must not resolve")
	}
	if store.Exists("") {
		t.Error("empty name must not resolve")
	}
}
