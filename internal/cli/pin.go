package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/contentlock/internal/lock"
	"github.com/ppiankov/contentlock/internal/server"
	"github.com/ppiankov/contentlock/internal/service"
)

var recoveryCount int

func init() {
	rootCmd.AddCommand(pinCmd)
	pinCmd.AddCommand(pinSetCmd, pinUnlockCmd, pinStatusCmd, pinRecoveryCmd, pinRedeemCmd)
	pinRecoveryCmd.Flags().IntVarP(&recoveryCount, "count", "n", 0, "Number of codes (default 5)")
}

var pinCmd = &cobra.Command{
	Use:   "pin",
	Short: "Settings PIN operations",
	Long:  "The settings PIN guards parental settings. Entering it opens a\nshort window during which settings can be changed.",
}

var pinSetCmd = &cobra.Command{
	Use:   "set <pin>",
	Short: "Set or change the settings PIN",
	Long:  "Sets the PIN. Changing an existing PIN requires an open unlock window.",
	Args:  cobra.ExactArgs(1),
	RunE:  runPinSet,
}

var pinUnlockCmd = &cobra.Command{
	Use:   "unlock <pin>",
	Short: "Open the settings unlock window",
	Args:  cobra.ExactArgs(1),
	RunE:  runPinUnlock,
}

var pinStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether settings are locked",
	RunE:  runPinStatus,
}

var pinRecoveryCmd = &cobra.Command{
	Use:   "recovery-codes",
	Short: "Generate single-use recovery codes",
	Long:  "Generates fresh recovery codes, replacing any earlier set. Each code\nopens the settings window once, for when the PIN is forgotten.\nRequires an open unlock window when a PIN is set.",
	RunE:  runPinRecovery,
}

var pinRedeemCmd = &cobra.Command{
	Use:   "redeem <code>",
	Short: "Open the settings window with a recovery code",
	Args:  cobra.ExactArgs(1),
	RunE:  runPinRedeem,
}

func runPinSet(cmd *cobra.Command, args []string) error {
	return pinWindowCommand(cmd, service.SetPINRequest{PIN: args[0]}, "PIN saved.")
}

func runPinUnlock(cmd *cobra.Command, args []string) error {
	return pinWindowCommand(cmd, service.PinUnlockRequest{PIN: args[0]}, "Settings unlocked.")
}

func runPinRedeem(cmd *cobra.Command, args []string) error {
	return pinWindowCommand(cmd, service.RedeemRecoveryCodeRequest{Code: args[0]}, "Recovery code accepted. Set a new PIN now.")
}

func pinWindowCommand(cmd *cobra.Command, req service.Command, msg string) error {
	var res service.PinWindowResult
	err := withDaemon(func(ctx context.Context, c *server.Client) error {
		return c.Call(ctx, req, &res)
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, msg)
	fmt.Fprintf(out, "  unlocked until %s\n", formatEpoch(res.UnlockedUntilEpochMs))
	return nil
}

func runPinStatus(cmd *cobra.Command, args []string) error {
	var pin lock.PinStatus
	err := withDaemon(func(ctx context.Context, c *server.Client) error {
		return c.Call(ctx, service.CheckPinStatusRequest{}, &pin)
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), pin)
}

func runPinRecovery(cmd *cobra.Command, args []string) error {
	var res service.RecoveryCodesResult
	err := withDaemon(func(ctx context.Context, c *server.Client) error {
		return c.Call(ctx, service.GenerateRecoveryCodesRequest{Count: recoveryCount}, &res)
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Recovery codes (each works once; they are not shown again):")
	for _, code := range res.Codes {
		fmt.Fprintf(out, "  %s\n", code)
	}
	return nil
}
