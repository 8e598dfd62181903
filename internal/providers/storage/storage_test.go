package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileKVRoundTrip(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKV failed: %v", err)
	}

	if err := kv.Write("iconic_sessions", []byte(`[{"id":"1"}]`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, ok, err := kv.Read("iconic_sessions")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected key to exist")
	}
	if string(data) != `[{"id":"1"}]` {
		t.Errorf("Unexpected value: %s", data)
	}
}

func TestFileKVMissingKey(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKV failed: %v", err)
	}

	_, ok, err := kv.Read("never_written")
	if err != nil {
		t.Fatalf("Read of missing key should not error: %v", err)
	}
	if ok {
		t.Error("Missing key should report ok=false")
	}
}

func TestFileKVOverwrite(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKV failed: %v", err)
	}

	if err := kv.Write("k", []byte("first")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := kv.Write("k", []byte("second")); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}

	data, ok, _ := kv.Read("k")
	if !ok || string(data) != "second" {
		t.Errorf("Expected 'second', got %q (ok=%v)", data, ok)
	}
}

func TestFileKVInvalidKey(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKV failed: %v", err)
	}

	if err := kv.Write("../escape", []byte("x")); err == nil {
		t.Error("Path-traversal key should be rejected")
	}
	if _, _, err := kv.Read("a/b"); err == nil {
		t.Error("Key with separator should be rejected")
	}
}

func TestFileKVNoTempLeftover(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(dir)
	if err != nil {
		t.Fatalf("NewFileKV failed: %v", err)
	}

	if err := kv.Write("k", []byte("v")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "k.json.tmp")); !os.IsNotExist(err) {
		t.Error("Temp file should not remain after commit")
	}
}

func TestMemoryKV(t *testing.T) {
	kv := NewMemory()

	if err := kv.Write("k", []byte("v")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, ok, err := kv.Read("k")
	if err != nil || !ok || string(data) != "v" {
		t.Errorf("Unexpected read result: %q ok=%v err=%v", data, ok, err)
	}

	_, ok, _ = kv.Read("missing")
	if ok {
		t.Error("Missing key should report ok=false")
	}
}
