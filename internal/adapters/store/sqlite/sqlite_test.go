package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/example/reproc/internal/adapters/store/storetest"
)

func TestEntityStore(t *testing.T) {
	opener, err := NewOpener(filepath.Join(t.TempDir(), "reproc.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer opener.Close()

	s, err := opener.Open("requests")
	if err != nil {
		t.Fatal(err)
	}
	storetest.TestEntityStore(t, s)
}

func TestOpenRejectsBadNames(t *testing.T) {
	opener, err := NewOpener(filepath.Join(t.TempDir(), "reproc.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer opener.Close()

	for _, name := range []string{"", "Requests", "a b", "a;drop"} {
		if _, err := opener.Open(name); err == nil {
			t.Errorf("expected error for namespace %q", name)
		}
	}
}
