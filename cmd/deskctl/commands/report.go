package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/deliverydesk/deliverydesk/internal/export"
	"github.com/deliverydesk/deliverydesk/internal/service"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate financial reports",
	}

	var from, to, territory, format, out string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write a sales report to a pdf, xlsx or csv file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}

			svc := service.NewReportService(current.repo, current.repo, current.cache, current.logger, nil, service.ReportOptions{
				Clock:        service.Clock{Location: current.cfg.Location()},
				MaxRangeDays: current.cfg.ReportMaxRangeDays,
				CacheTTL:     current.cfg.ReportCacheTTL,
			})
			report, err := svc.Generate(cmd.Context(), service.ReportQuery{
				StartDate: from,
				EndDate:   to,
				Territory: territory,
			})
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := export.WriteReport(&buf, report, f); err != nil {
				return fmt.Errorf("render report: %w", err)
			}

			path := reportPath(out, export.ReportFileName(report, f))
			if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d orders, net income %s)\n",
				path, report.Summary.Totals.Count, report.Summary.NetIncome.StringFixed(2))
			return nil
		},
	}
	exportCmd.Flags().StringVar(&from, "from", "", "start date YYYY-MM-DD (default today)")
	exportCmd.Flags().StringVar(&to, "to", "", "end date YYYY-MM-DD (default today)")
	exportCmd.Flags().StringVar(&territory, "territory", "", "restrict to one territory")
	exportCmd.Flags().StringVar(&format, "format", "pdf", "pdf, xlsx or csv")
	exportCmd.Flags().StringVarP(&out, "out", "o", "", "output file or directory")

	cmd.AddCommand(exportCmd)
	return cmd
}

// reportPath resolves --out: empty means name in the working directory and
// an existing directory gets name appended. Anything else is a file path.
func reportPath(out, name string) string {
	if out == "" {
		return name
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, name)
	}
	return out
}
