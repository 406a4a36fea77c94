package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/nbenliogludev/go-chat-agent-tester/internal/report"
	"github.com/spf13/cobra"
)

func newReportCmd(a *app) *cobra.Command {
	var open bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the HTML report from the latest run summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			written, sum, err := a.generate()
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), sum, a.logger)
			for _, p := range written {
				fmt.Fprintf(cmd.OutOrStdout(), "Report: %s\n", p)
			}
			if open && len(written) > 0 {
				return report.Open(cmd.Context(), written[len(written)-1])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&open, "open", false, "open the report when done")
	return cmd
}

func (a *app) generate() ([]string, report.RunSummary, error) {
	store := report.NewStore(a.cfg.Artifacts.SummaryDir)
	gen, err := report.NewGenerator(store, a.cfg.Artifacts.Template, a.cfg.Artifacts.ReportOutputs, a.logger)
	if err != nil {
		return nil, report.RunSummary{}, err
	}
	written, sum, err := gen.Generate()
	if errors.Is(err, report.ErrNoSummary) {
		return nil, sum, fmt.Errorf("%w in %s: run a test first", err, store.Dir())
	}
	return written, sum, err
}

func newOpenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "open [report.html]",
		Short: "Open the generated report in the default browser",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := reportToOpen(a.cfg.Artifacts.ReportOutputs)
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("%w: no report output configured", report.ErrReportMissing)
			}
			if err := report.Open(cmd.Context(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Opened %s\n", path)
			return nil
		},
	}
}

// reportToOpen picks the last configured output that exists, or the last
// one when none does.
func reportToOpen(outputs []string) string {
	for i := len(outputs) - 1; i >= 0; i-- {
		if _, err := os.Stat(outputs[i]); err == nil {
			return outputs[i]
		}
	}
	if len(outputs) == 0 {
		return ""
	}
	return outputs[len(outputs)-1]
}
