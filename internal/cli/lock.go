package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/contentlock/internal/lock"
	"github.com/ppiankov/contentlock/internal/model"
	"github.com/ppiankov/contentlock/internal/server"
	"github.com/ppiankov/contentlock/internal/service"
)

var (
	lockDuration         time.Duration
	lockScope            string
	lockPassphrase       string
	lockCooldown         int
	lockNoEarlyUnlock    bool
	lockIncrementOnBlock bool
	lockIncrementMinutes int
	lockStatusFormat     string
)

func init() {
	rootCmd.AddCommand(lockCmd)
	lockCmd.AddCommand(lockStartCmd, lockStatusCmd, lockRequestUnlockCmd, lockConfirmUnlockCmd, lockPassphraseCmd, lockTickCmd)

	lockStartCmd.Flags().DurationVarP(&lockDuration, "duration", "d", 0, "Lock duration, e.g. 2h or 90m (required)")
	lockStartCmd.Flags().StringVar(&lockScope, "scope", string(model.ScopeSexual), "Categories to block: sexual, sexual-violence or all")
	lockStartCmd.Flags().StringVar(&lockPassphrase, "passphrase", "", "Passphrase required to request early unlock")
	lockStartCmd.Flags().IntVar(&lockCooldown, "cooldown", model.DefaultCooldownMinutes, "Minutes between unlock request and confirmation")
	lockStartCmd.Flags().BoolVar(&lockNoEarlyUnlock, "no-early-unlock", false, "Disallow early unlock entirely")
	lockStartCmd.Flags().BoolVar(&lockIncrementOnBlock, "increment-on-block", false, "Extend the lock each time a page is blocked")
	lockStartCmd.Flags().IntVar(&lockIncrementMinutes, "increment-minutes", 0, "Minutes added per blocked page")
	lockStartCmd.MarkFlagRequired("duration")

	lockStatusCmd.Flags().StringVarP(&lockStatusFormat, "format", "f", "text", "Output format (text|json)")
}

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Self-lock operations",
	Long:  "Start a time-boxed self-lock, inspect it, and walk the early-unlock flow.",
}

var lockStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a self-lock",
	Long:  "Starts a self-lock, replacing any running one. While it runs the\nselected categories are blocked and safe-request mode is forced on.",
	RunE:  runLockStart,
}

var lockStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show self-lock and settings PIN status",
	RunE:  runLockStatus,
}

var lockRequestUnlockCmd = &cobra.Command{
	Use:   "request-unlock [passphrase]",
	Short: "Request early unlock and receive the confirmation phrase",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLockRequestUnlock,
}

var lockConfirmUnlockCmd = &cobra.Command{
	Use:   "confirm-unlock <phrase>",
	Short: "Confirm early unlock after the cooldown",
	Long:  "Types back the phrase returned by request-unlock. Quote it: the\nphrase is several words and must match exactly.",
	Args:  cobra.ExactArgs(1),
	RunE:  runLockConfirmUnlock,
}

var lockPassphraseCmd = &cobra.Command{
	Use:   "set-passphrase <passphrase>",
	Short: "Set the passphrase for future self-locks",
	Args:  cobra.ExactArgs(1),
	RunE:  runLockSetPassphrase,
}

var lockTickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one scheduler tick now",
	Long:  "Re-checks the running self-lock for expiry and clock rollback\nwithout waiting for the scheduler.",
	RunE:  runLockTick,
}

func runLockStart(cmd *cobra.Command, args []string) error {
	if lockDuration <= 0 {
		return fmt.Errorf("--duration must be positive")
	}
	allow := !lockNoEarlyUnlock
	req := service.ActivateSelfLockRequest{
		DurationMs:       lockDuration.Milliseconds(),
		RequiresPassword: lockPassphrase != "",
		Passphrase:       lockPassphrase,
		CooldownMinutes:  lockCooldown,
		AllowEarlyUnlock: &allow,
		IncrementOnBlock: lockIncrementOnBlock,
		IncrementMinutes: lockIncrementMinutes,
		Scope:            model.Scope(lockScope),
	}

	var st service.LockStatusResult
	err := withDaemon(func(ctx context.Context, c *server.Client) error {
		if err := c.Call(ctx, req, nil); err != nil {
			return err
		}
		return c.Call(ctx, service.LockStatusRequest{}, &st)
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Self-lock started.")
	if st.LockInfo != nil {
		fmt.Fprintf(out, "  ends:  %s (%s)\n", st.LockInfo.EndsAt, st.LockInfo.RemainingFormatted)
		fmt.Fprintf(out, "  scope: %s\n", st.LockInfo.Scope)
	}
	return nil
}

func runLockStatus(cmd *cobra.Command, args []string) error {
	var st service.LockStatusResult
	var pin lock.PinStatus
	err := withDaemon(func(ctx context.Context, c *server.Client) error {
		if err := c.Call(ctx, service.LockStatusRequest{}, &st); err != nil {
			return err
		}
		return c.Call(ctx, service.CheckPinStatusRequest{}, &pin)
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if lockStatusFormat == "json" {
		return printJSON(out, map[string]any{"lock": st, "pin": pin})
	}
	writeStatus(out, st, pin)
	return nil
}

func writeStatus(w io.Writer, st service.LockStatusResult, pin lock.PinStatus) {
	fmt.Fprintf(w, "self-lock:  %s\n", st.Phase)
	if info := st.LockInfo; info != nil {
		fmt.Fprintf(w, "  ends:     %s (%s left)\n", info.EndsAt, info.RemainingFormatted)
		fmt.Fprintf(w, "  scope:    %s\n", info.Scope)
		if info.CooldownRemainingMs > 0 {
			fmt.Fprintf(w, "  cooldown: %s\n", info.CooldownRemainingFormatted)
		}
		fmt.Fprintf(w, "  can request unlock: %t\n", info.CanRequestUnlock)
	}
	if st.PhraseExpiresAtEpochMs > 0 {
		fmt.Fprintf(w, "  phrase expires: %s\n", formatEpoch(st.PhraseExpiresAtEpochMs))
	}
	fmt.Fprintf(w, "scheduler:  %t\n", st.SchedulerRunning)

	switch {
	case !pin.HasPIN:
		fmt.Fprintln(w, "settings:   no PIN")
	case pin.IsLocked:
		fmt.Fprintln(w, "settings:   locked")
	default:
		fmt.Fprintf(w, "settings:   unlocked (%s left)\n", (time.Duration(pin.RemainingMs) * time.Millisecond).Round(time.Second))
	}
}

func runLockRequestUnlock(cmd *cobra.Command, args []string) error {
	req := service.RequestEarlyUnlockRequest{}
	if len(args) == 1 {
		req.Passphrase = args[0]
	}
	var res service.UnlockRequestResult
	err := withDaemon(func(ctx context.Context, c *server.Client) error {
		return c.Call(ctx, req, &res)
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Unlock phrase: %s\n", res.UnlockPhrase)
	fmt.Fprintf(out, "Confirm after %s, before %s:\n", time.Duration(res.CooldownMs)*time.Millisecond, formatEpoch(res.PhraseExpiresAtEpochMs))
	fmt.Fprintf(out, "  contentlock lock confirm-unlock %q\n", res.UnlockPhrase)
	return nil
}

func runLockConfirmUnlock(cmd *cobra.Command, args []string) error {
	err := withDaemon(func(ctx context.Context, c *server.Client) error {
		return c.Call(ctx, service.ConfirmUnlockRequest{Phrase: args[0]}, nil)
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Self-lock ended.")
	return nil
}

func runLockSetPassphrase(cmd *cobra.Command, args []string) error {
	err := withDaemon(func(ctx context.Context, c *server.Client) error {
		return c.Call(ctx, service.SetPassphraseRequest{Passphrase: args[0]}, nil)
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Passphrase saved.")
	return nil
}

func runLockTick(cmd *cobra.Command, args []string) error {
	var res service.TickResult
	err := withDaemon(func(ctx context.Context, c *server.Client) error {
		return c.Call(ctx, service.TickRequest{}, &res)
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}
