package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileKV_GetMissingFile(t *testing.T) {
	kv := NewFileKV(filepath.Join(t.TempDir(), "cart.json"))

	value, ok, err := kv.Get(context.Background(), "@RocketShoes:cart")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || value != "" {
		t.Errorf("expected nothing stored, got %q", value)
	}
}

func TestFileKV_SetThenGetAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cart.json")
	ctx := context.Background()

	if err := NewFileKV(path).Set(ctx, "a", "1"); err != nil {
		t.Fatalf("set a: %v", err)
	}
	if err := NewFileKV(path).Set(ctx, "b", "2"); err != nil {
		t.Fatalf("set b: %v", err)
	}

	kv := NewFileKV(path)
	for key, want := range map[string]string{"a": "1", "b": "2"} {
		got, ok, err := kv.Get(ctx, key)
		if err != nil || !ok || got != want {
			t.Errorf("Get(%q) = %q, %v, %v; want %q", key, got, ok, err, want)
		}
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temporary files left behind: %v", matches)
	}
}

func TestFileKV_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.json")
	os.WriteFile(path, []byte("{not json"), 0o644)
	kv := NewFileKV(path)

	if _, _, err := kv.Get(context.Background(), "a"); err == nil {
		t.Error("expected error for corrupt file")
	}
	if err := kv.Set(context.Background(), "a", "1"); err == nil {
		t.Error("expected set to refuse overwriting a corrupt file")
	}
}

func TestFileKV_SetCancelled(t *testing.T) {
	kv := NewFileKV(filepath.Join(t.TempDir(), "cart.json"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := kv.Set(ctx, "a", "1"); err == nil {
		t.Error("expected error for cancelled context")
	}
}
