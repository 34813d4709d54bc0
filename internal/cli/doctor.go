package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/contentlock/internal/audit"
	"github.com/ppiankov/contentlock/internal/config"
	"github.com/ppiankov/contentlock/internal/server"
	"github.com/ppiankov/contentlock/internal/service"
	"github.com/ppiankov/contentlock/internal/store"
	"github.com/ppiankov/contentlock/internal/systemd"
)

// doctorTimeout bounds the storage and daemon probes.
const doctorTimeout = 3 * time.Second

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check system readiness and diagnose configuration issues",
	RunE:  runDoctor,
}

type checkResult struct {
	label  string
	ok     bool
	detail string
	fix    string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if !printChecks(out, doctorChecks()) {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Some checks failed. Run the suggested commands to fix.")
		return fmt.Errorf("doctor found issues")
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "All checks passed.")
	return nil
}

func doctorChecks() []checkResult {
	var checks []checkResult

	execPath, _ := os.Executable()
	if execPath != "" {
		checks = append(checks, checkResult{label: "contentlock binary", ok: true, detail: fmt.Sprintf("%s (v%s)", execPath, version)})
	} else {
		checks = append(checks, checkResult{label: "contentlock binary", detail: "cannot determine executable path"})
	}

	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	if _, err := os.Stat(path); err != nil {
		checks = append(checks, checkResult{label: "config.yaml", detail: "missing", fix: "contentlock init"})
	}
	cfg, hash, err := config.LoadWithHash(path)
	if err != nil {
		return append(checks, checkResult{label: "config.yaml", detail: err.Error(), fix: "edit " + path})
	}
	checks = append(checks, checkResult{label: "config", ok: true, detail: shortHash(hash)})

	checks = append(checks, checkStorage(cfg))
	checks = append(checks, checkAuditChain(cfg.Audit.Path))
	checks = append(checks, checkDaemon(fmt.Sprintf("127.0.0.1:%d", cfg.GRPC.Port), cfg.GRPC.Enabled))

	if runtime.GOOS == "linux" {
		checks = append(checks, checkUnit()...)
	}
	return checks
}

func checkStorage(cfg *config.Config) checkResult {
	ctx, cancel := context.WithTimeout(context.Background(), doctorTimeout)
	defer cancel()

	label := "storage (" + cfg.Storage.Backend + ")"
	b, err := store.Open(ctx, cfg.Storage.BackendConfig())
	if err != nil {
		return checkResult{label: label, detail: err.Error()}
	}
	defer b.Close()
	if _, err := store.New(b).Load(ctx); err != nil {
		return checkResult{label: label, detail: err.Error()}
	}
	return checkResult{label: label, ok: true, detail: "readable"}
}

func checkAuditChain(path string) checkResult {
	if path == "" {
		return checkResult{label: "audit log", ok: true, detail: "disabled"}
	}
	if _, err := os.Stat(path); err != nil {
		return checkResult{label: "audit log", ok: true, detail: "no entries yet"}
	}
	result := audit.Verify(path)
	if !result.Valid {
		return checkResult{
			label:  "audit log",
			detail: fmt.Sprintf("chain broken at line %d: %s", result.ErrorLine, result.Error),
			fix:    "contentlock audit verify",
		}
	}
	return checkResult{label: "audit log", ok: true, detail: fmt.Sprintf("%d entries, chain intact", result.Lines)}
}

func checkDaemon(addr string, enabled bool) checkResult {
	if !enabled {
		return checkResult{label: "daemon", ok: true, detail: "grpc disabled, not probed"}
	}
	c, err := server.Dial(addr)
	if err != nil {
		return checkResult{label: "daemon", detail: err.Error()}
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), doctorTimeout)
	defer cancel()
	var st service.LockStatusResult
	if err := c.Call(ctx, service.LockStatusRequest{}, &st); err != nil {
		return checkResult{label: "daemon", detail: "unreachable at " + addr, fix: "contentlock serve"}
	}
	if !st.SchedulerRunning && st.Active {
		return checkResult{label: "daemon", detail: "self-lock active but scheduler stopped", fix: "contentlock lock tick"}
	}
	return checkResult{label: "daemon", ok: true, detail: fmt.Sprintf("%s (self-lock %s)", addr, st.Phase)}
}

func checkUnit() []checkResult {
	unitPath, err := systemd.UserUnitPath()
	if err != nil {
		return []checkResult{{label: "systemd unit", detail: err.Error()}}
	}
	if _, err := os.Stat(unitPath); err != nil {
		return []checkResult{{label: "systemd unit", detail: "not installed", fix: "contentlock init --install-systemd"}}
	}
	if warning := systemd.CheckUnitFileIntegrity(unitPath, filepath.Join(config.Dir(), unitHashFile)); warning != "" {
		return []checkResult{{label: "systemd unit", detail: warning, fix: "contentlock init --install-systemd --force"}}
	}
	return []checkResult{{label: "systemd unit", ok: true, detail: "installed, unmodified"}}
}

// printChecks writes one line per check and reports whether all passed.
func printChecks(w io.Writer, checks []checkResult) bool {
	passed := true
	for _, c := range checks {
		mark := "\u2713" // ✓
		if !c.ok {
			mark = "\u2717" // ✗
			passed = false
		}
		line := fmt.Sprintf("%s %-20s %s", mark, c.label+":", c.detail)
		if !c.ok && c.fix != "" {
			line += fmt.Sprintf("  ->  %s", c.fix)
		}
		fmt.Fprintln(w, line)
	}
	return passed
}

func shortHash(h string) string {
	if len(h) > 19 {
		return h[:19]
	}
	return h
}
