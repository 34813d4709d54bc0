package systemd

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// UserUnitPath returns ~/.config/systemd/user/contentlock.service.
func UserUnitPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "systemd", "user", UnitName), nil
}

// RecordUnitFileHash stores the digest of the installed unit at hashPath
// so later edits, such as dropping Restart=always, can be noticed.
func RecordUnitFileHash(unitPath, hashPath string) error {
	sum, err := digest(unitPath)
	if err != nil {
		return fmt.Errorf("read unit file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(hashPath), 0o700); err != nil {
		return err
	}
	return os.WriteFile(hashPath, []byte(sum+"\n"), 0o600)
}

// CheckUnitFileIntegrity returns a warning when the unit at unitPath no
// longer matches the digest recorded at hashPath. Nothing to compare
// (no unit, no recorded digest, or an unreadable one) yields "".
func CheckUnitFileIntegrity(unitPath, hashPath string) string {
	if _, err := os.Stat(unitPath); err != nil {
		return ""
	}
	raw, err := os.ReadFile(hashPath)
	if err != nil {
		return ""
	}
	recorded := strings.TrimSpace(string(raw))
	if len(recorded) != sha256.Size*2 {
		return ""
	}

	current, err := digest(unitPath)
	switch {
	case err != nil:
		return fmt.Sprintf("cannot read unit file %s: %v", unitPath, err)
	case current != recorded:
		return fmt.Sprintf("systemd unit file %s has been modified since installation (expected %s, got %s)",
			unitPath, recorded[:16], current[:16])
	}
	return ""
}

func digest(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
