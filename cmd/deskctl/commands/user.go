package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deliverydesk/deliverydesk/internal/service"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage back-office users",
	}

	var username, email, password string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user who can sign in to the dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := service.NewAuthService(current.repo, current.cache, current.cache, current.emitter, current.logger, nil, service.AuthOptions{
				SessionTTL: current.cfg.SessionTTL,
			})
			user, err := svc.CreateUser(cmd.Context(), username, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d)\n", user.Username, user.ID)
			return nil
		},
	}
	create.Flags().StringVar(&username, "username", "", "login name")
	create.Flags().StringVar(&email, "email", "", "contact email")
	create.Flags().StringVar(&password, "password", "", "initial password")
	_ = create.MarkFlagRequired("username")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")

	cmd.AddCommand(create)
	return cmd
}
