// Package commands implements the escrow CLI commands
package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agencyos/escrow/internal/constants"
	"github.com/agencyos/escrow/pkg/api/v1/client"
	"github.com/agencyos/escrow/pkg/api/v1/routes"
)

// flag names
const (
	flagActorID       = "actor-id"
	flagServerAddress = "server-address"
)

var (
	// apiClient is the shared API client instance
	apiClient client.Client
	// serverAddress holds the target API server address. Flag parsing sets this.
	serverAddress string
	// actorID identifies the acting party for lifecycle commands
	actorID uint
)

// initClient initializes the API client
func initClient() error {
	var err error
	opts := client.DefaultOptions()
	opts.BaseURL = serverAddress

	apiClient, err = client.NewClient(opts)
	return err
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&serverAddress, flagServerAddress, "s", routes.DefaultBaseURL,
		"Address of the escrow API server (env: "+constants.EnvServerAddress+")")
	RootCmd.PersistentFlags().UintVarP(&actorID, flagActorID, "a", 0, "ID of the acting business or agency")

	RootCmd.AddCommand(GetJobsCmd())
	RootCmd.AddCommand(GetAgenciesCmd())
	RootCmd.AddCommand(GetBusinessesCmd())
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "escrow",
	Short: "Escrow CLI - A command line interface for the escrow API",
	Long:  `Escrow CLI is a command line tool for managing jobs, funding and payouts through the escrow API.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// Flag > Env Var > Default
		if !cmd.Flags().Changed(flagServerAddress) {
			if envAddr := os.Getenv(constants.EnvServerAddress); envAddr != "" {
				serverAddress = envAddr
			}
		}

		if serverAddress == "" {
			return fmt.Errorf("server address cannot be empty")
		}
		return initClient()
	},
}

// printJSON renders a command result as indented JSON
func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render response: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// requireActor validates that the actor flag was provided
func requireActor() error {
	if actorID == 0 {
		return fmt.Errorf("--%s is required", flagActorID)
	}
	return nil
}
