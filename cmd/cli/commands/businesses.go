package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agencyos/escrow/internal/types"
)

// GetBusinessesCmd returns the businesses command group
func GetBusinessesCmd() *cobra.Command {
	businessesCmd := &cobra.Command{
		Use:   "businesses",
		Short: "Manage businesses",
	}

	businessesCmd.AddCommand(registerBusinessCmd())

	return businessesCmd
}

func registerBusinessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new business",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")

			business, err := apiClient.RegisterBusiness(context.Background(), types.RegisterBusinessRequest{Name: name})
			if err != nil {
				return fmt.Errorf("error registering business: %w", err)
			}
			return printJSON(business)
		},
	}

	cmd.Flags().StringP("name", "n", "", "Business name")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}
