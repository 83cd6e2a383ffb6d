package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/deliverydesk/deliverydesk/internal/service"
)

func customersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "customers",
		Short: "Manage the customer list",
	}

	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Bulk-create customers from an xlsx, xls or csv sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			svc := service.NewCustomerService(current.repo, current.cache, current.emitter, current.logger, nil)
			res, err := svc.Import(cmd.Context(), f, filepath.Base(args[0]))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "created %d customers\n", res.Created)
			for _, rowErr := range res.Errors {
				fmt.Fprintf(out, "  row %d: %s\n", rowErr.Row, rowErr.Error)
			}
			return nil
		},
	}

	cmd.AddCommand(importCmd)
	return cmd
}
