package systemd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestCheckUnitFileIntegrityNoUnitFile(t *testing.T) {
	dir := t.TempDir()
	if msg := CheckUnitFileIntegrity(filepath.Join(dir, "missing.service"), filepath.Join(dir, "h")); msg != "" {
		t.Errorf("expected empty message when no unit file, got %q", msg)
	}
}

func TestCheckUnitFileIntegrityNoStoredHash(t *testing.T) {
	dir := t.TempDir()
	unit := filepath.Join(dir, "contentlock.service")
	writeFile(t, unit, "[Unit]\nDescription=test\n")

	if msg := CheckUnitFileIntegrity(unit, filepath.Join(dir, "unit-file.sha256")); msg != "" {
		t.Errorf("expected empty message when no stored hash, got %q", msg)
	}
}

func TestRecordThenCheck(t *testing.T) {
	dir := t.TempDir()
	unit := filepath.Join(dir, "contentlock.service")
	hashPath := filepath.Join(dir, "state", "unit-file.sha256")
	writeFile(t, unit, UserUnit("/bin/contentlock", "/c.yaml"))

	if err := RecordUnitFileHash(unit, hashPath); err != nil {
		t.Fatalf("RecordUnitFileHash: %v", err)
	}
	if msg := CheckUnitFileIntegrity(unit, hashPath); msg != "" {
		t.Errorf("expected match right after recording, got %q", msg)
	}

	writeFile(t, unit, strings.Replace(UserUnit("/bin/contentlock", "/c.yaml"), "Restart=always", "Restart=no", 1))
	msg := CheckUnitFileIntegrity(unit, hashPath)
	if !strings.Contains(msg, "has been modified") {
		t.Errorf("expected modification warning, got %q", msg)
	}
}

func TestCheckUnitFileIntegrityInvalidHash(t *testing.T) {
	dir := t.TempDir()
	unit := filepath.Join(dir, "contentlock.service")
	hashPath := filepath.Join(dir, "unit-file.sha256")
	writeFile(t, unit, "[Unit]\n")
	writeFile(t, hashPath, "short\n")

	if msg := CheckUnitFileIntegrity(unit, hashPath); msg != "" {
		t.Errorf("expected empty message for invalid stored hash, got %q", msg)
	}
}

func TestRecordUnitFileHashMissingUnit(t *testing.T) {
	dir := t.TempDir()
	if err := RecordUnitFileHash(filepath.Join(dir, "nope"), filepath.Join(dir, "h")); err == nil {
		t.Error("expected error for missing unit file")
	}
}
