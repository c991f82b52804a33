package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agencyos/escrow/internal/types"
)

// GetAgenciesCmd returns the agencies command group
func GetAgenciesCmd() *cobra.Command {
	agenciesCmd := &cobra.Command{
		Use:   "agencies",
		Short: "Manage agencies and their payment onboarding",
	}

	agenciesCmd.AddCommand(registerAgencyCmd())
	agenciesCmd.AddCommand(createAccountCmd())
	agenciesCmd.AddCommand(onboardingLinkCmd())

	return agenciesCmd
}

func registerAgencyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new agency",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")

			agency, err := apiClient.RegisterAgency(context.Background(), types.RegisterAgencyRequest{Name: name})
			if err != nil {
				return fmt.Errorf("error registering agency: %w", err)
			}
			return printJSON(agency)
		},
	}

	cmd.Flags().StringP("name", "n", "", "Agency name")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func createAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Create the agency's connected merchant account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			agencyID, _ := cmd.Flags().GetUint("id")

			accountID, err := apiClient.CreateAgencyAccount(context.Background(), agencyID)
			if err != nil {
				return fmt.Errorf("error creating account: %w", err)
			}
			return printJSON(map[string]string{"merchant_account_id": accountID})
		},
	}

	cmd.Flags().UintP("id", "i", 0, "Agency ID")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func onboardingLinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onboarding-link",
		Short: "Create a fresh onboarding URL for the agency",
		RunE: func(cmd *cobra.Command, _ []string) error {
			agencyID, _ := cmd.Flags().GetUint("id")
			returnURL, _ := cmd.Flags().GetString("return-url")
			refreshURL, _ := cmd.Flags().GetString("refresh-url")

			link, err := apiClient.CreateOnboardingLink(context.Background(), agencyID, types.OnboardingLinkRequest{
				ReturnURL:  returnURL,
				RefreshURL: refreshURL,
			})
			if err != nil {
				return fmt.Errorf("error creating onboarding link: %w", err)
			}
			return printJSON(map[string]string{"onboarding_url": link})
		},
	}

	cmd.Flags().UintP("id", "i", 0, "Agency ID")
	cmd.Flags().String("return-url", "", "URL the agency lands on after onboarding")
	cmd.Flags().String("refresh-url", "", "URL the agency lands on when the link expires")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}
