package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/contentlock/internal/server"
	"github.com/ppiankov/contentlock/internal/service"
)

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateGetCmd, stateSetCmd)
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or patch the stored policy record",
}

var stateGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the policy record",
	RunE:  runStateGet,
}

var stateSetCmd = &cobra.Command{
	Use:   "set <key=value>...",
	Short: "Shallow-merge top-level keys into the policy record",
	Long: "Each value is parsed as JSON when it can be, otherwise taken as a\n" +
		"string. Example:\n" +
		"  contentlock state set parental='{\"enabled\":true,\"blockRTA\":true}'",
	Args: cobra.MinimumNArgs(1),
	RunE: runStateSet,
}

func runStateGet(cmd *cobra.Command, args []string) error {
	var res service.StateResult
	err := withDaemon(func(ctx context.Context, c *server.Client) error {
		return c.Call(ctx, service.GetStateRequest{}, &res)
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res.State)
}

func runStateSet(cmd *cobra.Command, args []string) error {
	updates, err := parseAssignments(args)
	if err != nil {
		return err
	}
	err = withDaemon(func(ctx context.Context, c *server.Client) error {
		return c.Call(ctx, service.UpdateStateRequest{Updates: updates}, nil)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated %d key(s).\n", len(updates))
	return nil
}

// parseAssignments turns key=value arguments into an update map.
func parseAssignments(args []string) (map[string]any, error) {
	updates := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q: want key=value", arg)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		updates[key] = v
	}
	return updates, nil
}
