package audioplayer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRegistryList_DiscoversNewFilesWithEmptyDescription(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "boop.wav"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry(dir)
	got := r.List()
	if len(got) != 1 || got[0].Name != "boop.wav" || got[0].Description != "" {
		t.Fatalf("got %+v", got)
	}

	if _, err := os.Stat(filepath.Join(dir, "descriptions.yaml")); err != nil {
		t.Fatalf("expected descriptions.yaml to be written: %v", err)
	}
}

func TestRegistryList_PreservesDescriptionAndDropsStaleEntries(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "boop.wav"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "descriptions.yaml"), []byte("boop.wav: a cute boop\nghost.wav: gone\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry(dir)
	got := r.List()
	if len(got) != 1 {
		t.Fatalf("expected stale ghost.wav dropped, got %+v", got)
	}
	if got[0].Description != "a cute boop" {
		t.Fatalf("expected preserved description, got %q", got[0].Description)
	}
}

func TestSetDescription_PersistsImmediately(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "boop.wav"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewRegistry(dir)
	r.List()
	if err := r.SetDescription("boop.wav", "updated"); err != nil {
		t.Fatal(err)
	}

	r2 := NewRegistry(dir)
	got := r2.List()
	if len(got) != 1 || got[0].Description != "updated" {
		t.Fatalf("got %+v", got)
	}
}
