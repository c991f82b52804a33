package commands

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/agencyos/escrow/internal/types"
	"github.com/agencyos/escrow/pkg/api/v1/routes"
)

// GetJobsCmd returns the jobs command group
func GetJobsCmd() *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage jobs and their payment lifecycle",
	}

	jobsCmd.AddCommand(createJobCmd())
	jobsCmd.AddCommand(listJobsCmd())
	jobsCmd.AddCommand(getJobCmd())
	jobsCmd.AddCommand(getLedgerCmd())
	jobsCmd.AddCommand(inviteCmd())
	jobsCmd.AddCommand(fundCmd())
	jobsCmd.AddCommand(payoutCmd())

	// Bodyless lifecycle actions share one command shape
	jobsCmd.AddCommand(actionCmd("accept", "Accept a pending job as the invited agency", routes.AcceptJob))
	jobsCmd.AddCommand(actionCmd("confirm-funding", "Confirm a pending funding capture", routes.ConfirmFunding))
	jobsCmd.AddCommand(actionCmd("start", "Mark work as started on a funded job", routes.StartWork))
	jobsCmd.AddCommand(actionCmd("submit", "Submit work for review", routes.SubmitWork))
	jobsCmd.AddCommand(actionCmd("approve", "Approve submitted work and release the payout", routes.ApproveWork))
	jobsCmd.AddCommand(actionCmd("revision", "Request changes on submitted work", routes.RequestRevision))
	jobsCmd.AddCommand(actionCmd("cancel", "Cancel an unfunded job", routes.CancelJob))
	jobsCmd.AddCommand(actionCmd("refund", "Refund a funded job to the business", routes.RefundJob))
	jobsCmd.AddCommand(actionCmd("reconcile", "Re-query the processor and converge job state", routes.ReconcileJob))

	return jobsCmd
}

func createJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireActor(); err != nil {
				return err
			}

			title, _ := cmd.Flags().GetString("title")
			description, _ := cmd.Flags().GetString("description")
			amountStr, _ := cmd.Flags().GetString("amount")
			feeStr, _ := cmd.Flags().GetString("platform-fee")
			currency, _ := cmd.Flags().GetString("currency")

			amount, err := decimal.NewFromString(amountStr)
			if err != nil {
				return fmt.Errorf("invalid amount: %w", err)
			}
			fee, err := decimal.NewFromString(feeStr)
			if err != nil {
				return fmt.Errorf("invalid platform fee: %w", err)
			}

			job, err := apiClient.CreateJob(context.Background(), actorID, types.CreateJobRequest{
				Title:       title,
				Description: description,
				Amount:      amount,
				PlatformFee: fee,
				Currency:    currency,
			})
			if err != nil {
				return fmt.Errorf("error creating job: %w", err)
			}
			return printJSON(job)
		},
	}

	cmd.Flags().StringP("title", "t", "", "Job title")
	cmd.Flags().StringP("description", "d", "", "Job description")
	cmd.Flags().String("amount", "", "Total amount in major units, e.g. 1000.00")
	cmd.Flags().String("platform-fee", "0", "Platform fee in major units")
	cmd.Flags().StringP("currency", "c", "USD", "3-letter ISO currency code")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func listJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs for the acting party",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireActor(); err != nil {
				return err
			}

			queryParams := url.Values{}
			if role, _ := cmd.Flags().GetString("role"); role != "" {
				queryParams.Set("role", role)
			}
			if status, _ := cmd.Flags().GetString("status"); status != "" {
				queryParams.Set("status", status)
			}
			if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 {
				queryParams.Set("limit", strconv.Itoa(limit))
			}

			jobs, err := apiClient.ListJobs(context.Background(), actorID, queryParams)
			if err != nil {
				return fmt.Errorf("error fetching jobs: %w", err)
			}
			return printJSON(jobs)
		},
	}

	cmd.Flags().StringP("role", "r", "", "View side: business (default) or agency")
	cmd.Flags().String("status", "", "Filter jobs by status")
	cmd.Flags().IntP("limit", "l", 0, "Limit the number of jobs returned")

	return cmd
}

func getJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Get a job's detail view",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireActor(); err != nil {
				return err
			}
			jobID, _ := cmd.Flags().GetUint("id")

			detail, err := apiClient.GetJob(context.Background(), actorID, jobID)
			if err != nil {
				return fmt.Errorf("error fetching job: %w", err)
			}
			return printJSON(detail)
		},
	}

	cmd.Flags().UintP("id", "i", 0, "Job ID to fetch")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func getLedgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Show a job's audit trail in causal order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireActor(); err != nil {
				return err
			}
			jobID, _ := cmd.Flags().GetUint("id")

			entries, err := apiClient.GetLedger(context.Background(), actorID, jobID)
			if err != nil {
				return fmt.Errorf("error fetching ledger: %w", err)
			}
			return printJSON(entries)
		},
	}

	cmd.Flags().UintP("id", "i", 0, "Job ID")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func inviteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Invite an agency to a draft job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireActor(); err != nil {
				return err
			}
			jobID, _ := cmd.Flags().GetUint("id")
			agencyID, _ := cmd.Flags().GetUint("agency-id")

			job, err := apiClient.InviteAgency(context.Background(), actorID, jobID, agencyID)
			if err != nil {
				return fmt.Errorf("error inviting agency: %w", err)
			}
			return printJSON(job)
		},
	}

	cmd.Flags().UintP("id", "i", 0, "Job ID")
	cmd.Flags().Uint("agency-id", 0, "Agency to invite")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("agency-id")

	return cmd
}

func fundCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fund",
		Short: "Create a funding intent for a job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireActor(); err != nil {
				return err
			}
			jobID, _ := cmd.Flags().GetUint("id")

			result, err := apiClient.FundJob(context.Background(), actorID, jobID)
			if err != nil {
				return fmt.Errorf("error funding job: %w", err)
			}
			return printJSON(result)
		},
	}

	cmd.Flags().UintP("id", "i", 0, "Job ID")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func payoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payout",
		Short: "Release the escrowed funds of an approved job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireActor(); err != nil {
				return err
			}
			jobID, _ := cmd.Flags().GetUint("id")

			payout, err := apiClient.ReleasePayout(context.Background(), actorID, jobID)
			if err != nil {
				return fmt.Errorf("error releasing payout: %w", err)
			}
			return printJSON(payout)
		},
	}

	cmd.Flags().UintP("id", "i", 0, "Job ID")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func actionCmd(use, short, routeName string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireActor(); err != nil {
				return err
			}
			jobID, _ := cmd.Flags().GetUint("id")

			job, err := apiClient.JobAction(context.Background(), actorID, jobID, routeName)
			if err != nil {
				return fmt.Errorf("error running %s: %w", use, err)
			}
			return printJSON(job)
		},
	}

	cmd.Flags().UintP("id", "i", 0, "Job ID")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}
