package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/leasedesk/reconcile/internal/model"
	"github.com/leasedesk/reconcile/internal/store"
)

var (
	reviewTenant string
	reviewReason string
	reviewLimit  int
	reviewJSON   bool
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Manage the unresolved-candidate review queue",
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List candidates awaiting review",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		items, err := st.ListUnresolved(cmd.Context(), store.UnresolvedFilter{
			TenantID: reviewTenant,
			Reason:   model.UnresolvedReason(reviewReason),
			Limit:    reviewLimit,
		})
		if err != nil {
			return err
		}

		if reviewJSON {
			return json.NewEncoder(os.Stdout).Encode(items)
		}
		for _, u := range items {
			fmt.Printf("%s  %-20s  %-24s  %q = %q  (%s)\n",
				u.ID, u.Reason,
				u.Candidate.TenantID,
				u.Candidate.RawFieldName, u.Candidate.RawValue,
				u.Detail,
			)
		}
		fmt.Printf("%d candidates awaiting review\n", len(items))
		return nil
	},
}

var reviewRetryCmd = &cobra.Command{
	Use:   "retry <id>",
	Short: "Re-run a parked candidate through the pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		item, err := env.Store.GetUnresolved(ctx, args[0])
		if err != nil {
			return err
		}

		resolved, err := env.Pipeline.Reprocess(ctx, item.Candidate)
		if err != nil {
			return eris.Wrapf(err, "retry %s", item.ID)
		}
		if !resolved {
			fmt.Printf("%s: still unresolved, parked again\n", item.ID)
			return nil
		}

		if err := env.Store.DeleteUnresolved(ctx, item.ID); err != nil {
			return eris.Wrapf(err, "remove %s from review queue", item.ID)
		}
		fmt.Printf("%s: resolved\n", item.ID)
		return nil
	},
}

var reviewDismissCmd = &cobra.Command{
	Use:   "dismiss <id>",
	Short: "Remove a candidate from the review queue without resolving it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.DeleteUnresolved(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("%s: dismissed\n", args[0])
		return nil
	},
}

func init() {
	reviewCmd.PersistentFlags().StringVar(&reviewTenant, "tenant", "", "filter by tenant id")
	reviewCmd.PersistentFlags().StringVar(&reviewReason, "reason", "", "filter by reason (no_quorum, propagation_failure)")
	reviewCmd.PersistentFlags().IntVar(&reviewLimit, "limit", 100, "max rows")
	reviewCmd.PersistentFlags().BoolVar(&reviewJSON, "json", false, "JSON output")

	reviewCmd.AddCommand(reviewListCmd, reviewRetryCmd, reviewDismissCmd)
	rootCmd.AddCommand(reviewCmd)
}
