package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"dvdmaker/internal/integrity"
)

func TestCopyFilePreservesContent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	if err := os.WriteFile(src, []byte("copy me"), 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read dst: %v", err)
	}
	if string(data) != "copy me" {
		t.Errorf("content = %q", data)
	}
}

func TestCopyFileModeSetsPermissions(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.sh")
	dst := filepath.Join(dir, "dst.sh")
	if err := os.WriteFile(src, []byte("#!/bin/sh\n"), 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}

	if err := CopyFileMode(src, dst, 0o755); err != nil {
		t.Fatalf("CopyFileMode: %v", err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("stat dst: %v", err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("mode = %v", info.Mode().Perm())
	}
}

func TestCopyFileHashedReturnsDigest(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	if err := os.WriteFile(src, []byte("hash me"), 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}

	sum, size, err := CopyFileHashed(src, dst)
	if err != nil {
		t.Fatalf("CopyFileHashed: %v", err)
	}
	if size != int64(len("hash me")) {
		t.Errorf("size = %d", size)
	}
	if err := integrity.Validate(dst, sum); err != nil {
		t.Errorf("digest does not match copied content: %v", err)
	}
}

func TestCopyFileHashedMissingSource(t *testing.T) {
	dir := t.TempDir()
	_, _, err := CopyFileHashed(filepath.Join(dir, "absent"), filepath.Join(dir, "dst"))
	if err == nil {
		t.Fatal("expected error for missing source")
	}
}
