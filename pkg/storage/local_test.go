package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalReadWrite(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := WriteFile(ctx, s, "voices/alba.safetensors", []byte("long content here")); err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(ctx, s, "voices/alba.safetensors", []byte("short")); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFile(ctx, s, "voices/alba.safetensors")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "short" {
		t.Fatalf("got %q, want %q", got, "short")
	}

	ok, err := s.Exists(ctx, "voices/alba.safetensors")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v; want true", ok, err)
	}
	if err := s.Delete(ctx, "voices/alba.safetensors"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "voices/alba.safetensors"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	ok, _ = s.Exists(ctx, "voices/alba.safetensors")
	if ok {
		t.Fatal("file should be gone after delete")
	}
}

func TestLocalReadNotExist(t *testing.T) {
	s, _ := NewLocal(t.TempDir())
	_, err := ReadFile(context.Background(), s, "manifest.yaml")
	if !IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestNewLocalDoesNotCreateDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	s, err := NewLocal(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(s.Root()); !os.IsNotExist(err) {
		t.Fatalf("root should not exist before first write, stat err = %v", err)
	}
	if err := WriteFile(context.Background(), s, "x", nil); err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(s.Root()); err != nil || !info.IsDir() {
		t.Fatalf("root not created by Write: %v", err)
	}
}

func TestLocalAbsolutePath(t *testing.T) {
	ctx := context.Background()
	other := filepath.Join(t.TempDir(), "weights.bin")
	if err := os.WriteFile(other, []byte("w"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, _ := NewLocal(t.TempDir())
	got, err := ReadFile(ctx, s, filepath.ToSlash(other))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "w" {
		t.Fatalf("got %q, want %q", got, "w")
	}
}
