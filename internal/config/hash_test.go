package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestChecksumRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("service: {name: x}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := GenerateChecksums(dir, []string{"config.yaml"}); err != nil {
		t.Fatalf("GenerateChecksums: %v", err)
	}

	manifest, err := LoadChecksums(dir)
	if err != nil {
		t.Fatalf("LoadChecksums: %v", err)
	}
	if err := VerifyConfigFiles(dir, manifest, []string{"config.yaml"}); err != nil {
		t.Errorf("verification of unmodified file failed: %v", err)
	}
}

func TestChecksumDetectsTampering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("service: {name: x}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := GenerateChecksums(dir, []string{"config.yaml"}); err != nil {
		t.Fatalf("GenerateChecksums: %v", err)
	}

	// Modify after locking.
	if err := os.WriteFile(path, []byte("service: {name: evil}\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	manifest, err := LoadChecksums(dir)
	if err != nil {
		t.Fatalf("LoadChecksums: %v", err)
	}
	err = VerifyConfigFiles(dir, manifest, []string{"config.yaml"})
	if err == nil || !strings.Contains(err.Error(), "hash mismatch") {
		t.Errorf("tampering not detected: %v", err)
	}
}

func TestLoadRefusesTamperedConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(minimalConfig), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := GenerateChecksums(dir, []string{"config.yaml"}); err != nil {
		t.Fatalf("GenerateChecksums: %v", err)
	}

	// Untampered locked config loads.
	if _, err := Load(path); err != nil {
		t.Fatalf("Load locked config: %v", err)
	}

	if err := os.WriteFile(path, []byte(minimalConfig+"\n# edited\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load accepted a tampered config")
	}
}

func TestGenerateChecksumsDryRun(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("x: 1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	report, err := GenerateChecksumsWithReport(dir, []string{"config.yaml", "absent.yaml"}, true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if report.Written {
		t.Error("dry run wrote the manifest")
	}
	if _, err := os.Stat(report.ChecksumPath); !os.IsNotExist(err) {
		t.Error(".checksums exists after dry run")
	}
	if len(report.Files) != 2 || !report.Files[0].Exists || report.Files[1].Exists {
		t.Errorf("report files = %+v", report.Files)
	}
}
