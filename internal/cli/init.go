package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ppiankov/contentlock/internal/config"
	"github.com/ppiankov/contentlock/internal/systemd"
)

// unitHashFile holds the install-time hash of the systemd user unit.
const unitHashFile = "unit.sha256"

var (
	initInstallSystemd bool
	initForce          bool
)

func init() {
	initCmd.Flags().BoolVar(&initInstallSystemd, "install-systemd", false, "Install a systemd user unit that keeps the daemon running")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap contentlock configuration and optional systemd integration",
	Long: `Creates ~/.contentlock/ with a commented config.yaml.

With --install-systemd: writes ~/.config/systemd/user/contentlock.service
and records its hash so that "contentlock doctor" can detect edits.
  systemctl --user enable --now contentlock`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	configDir := config.Dir()
	var created []string

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}
	if wrote, err := writeIfMissing(cfgPath, config.DefaultConfigYAML()); err != nil {
		return err
	} else if wrote {
		created = append(created, cfgPath)
	}

	if initInstallSystemd {
		if runtime.GOOS != "linux" {
			return fmt.Errorf("--install-systemd is only supported on Linux")
		}
		unitPath, err := installUserUnit(cfgPath, configDir)
		if err != nil {
			return err
		}
		created = append(created, unitPath)

		if err := exec.Command("systemctl", "--user", "daemon-reload").Run(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: systemctl --user daemon-reload failed: %v\n", err)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "contentlock init complete.")
	fmt.Fprintln(out)
	if len(created) > 0 {
		fmt.Fprintln(out, "Created:")
		for _, path := range created {
			fmt.Fprintf(out, "  %s\n", path)
		}
		fmt.Fprintln(out)
	} else {
		fmt.Fprintln(out, "All files already exist (use --force to overwrite).")
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "Verify:")
	fmt.Fprintln(out, "  contentlock doctor")
	fmt.Fprintln(out)
	if initInstallSystemd {
		fmt.Fprintln(out, "Start the daemon:")
		fmt.Fprintln(out, "  systemctl --user enable --now contentlock")
	} else {
		fmt.Fprintln(out, "Run the daemon:")
		fmt.Fprintln(out, "  contentlock serve")
	}
	return nil
}

// installUserUnit writes the user unit and records its hash in configDir.
func installUserUnit(cfgPath, configDir string) (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("cannot determine executable path: %w", err)
	}
	unitPath, err := systemd.UserUnitPath()
	if err != nil {
		return "", err
	}
	if _, err := writeIfMissing(unitPath, systemd.UserUnit(execPath, cfgPath)); err != nil {
		return "", err
	}
	if err := systemd.RecordUnitFileHash(unitPath, filepath.Join(configDir, unitHashFile)); err != nil {
		return "", fmt.Errorf("record unit hash: %w", err)
	}
	return unitPath, nil
}

// writeIfMissing writes content to path if it doesn't exist or --force is set.
// Returns true if the file was written.
func writeIfMissing(path, content string) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
