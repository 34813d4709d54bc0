package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/contentlock/internal/model"
	"github.com/ppiankov/contentlock/internal/server"
	"github.com/ppiankov/contentlock/internal/service"
)

var (
	checkSignals  []string
	checkHTMLFile string
	checkFormat   string
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringSliceVarP(&checkSignals, "signal", "s", nil, "Content signal tag, e.g. RTA or ICRA:violence (repeatable)")
	checkCmd.Flags().StringVar(&checkHTMLFile, "html", "", "HTML file to extract meta-tag signals from (- for stdin)")
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "text", "Output format (text|json)")
}

var checkCmd = &cobra.Command{
	Use:   "check <url>",
	Short: "Ask the daemon whether a page would be blocked",
	Long: "Sends the page's content signals to the daemon and prints the verdict.\n" +
		"A blocked verdict is recorded in the audit log like a real visit.\n\n" +
		"Exit code 0 if allowed, 2 if blocked.",
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	req := service.CheckBlockRequest{URL: args[0], Signals: checkSignals}
	if checkHTMLFile != "" {
		html, err := readInput(checkHTMLFile, cmd.InOrStdin())
		if err != nil {
			return err
		}
		req.HTML = html
	}

	var res model.CheckResult
	err := withDaemon(func(ctx context.Context, c *server.Client) error {
		return c.Call(ctx, req, &res)
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if checkFormat == "json" {
		if err := printJSON(out, res); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, formatVerdict(res))
	}

	if res.ShouldBlock {
		os.Exit(2)
	}
	return nil
}

func readInput(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// formatVerdict renders a CheckResult for the terminal.
func formatVerdict(res model.CheckResult) string {
	if !res.ShouldBlock || res.BlockData == nil {
		return "ALLOW\n"
	}
	var b strings.Builder
	d := res.BlockData
	fmt.Fprintf(&b, "BLOCK (%s)\n", d.BlockType)
	for _, r := range d.Reasons {
		fmt.Fprintf(&b, "  reason: %s\n", r)
	}
	if info := d.LockInfo; info != nil {
		fmt.Fprintf(&b, "  self-lock ends %s (%s left)\n", info.EndsAt, info.RemainingFormatted)
	}
	return b.String()
}
