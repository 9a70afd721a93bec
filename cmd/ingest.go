package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leasedesk/reconcile/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Run a capture file through the reconciliation pipeline",
	Long:  "Loads page captures from a JSON, YAML, or XLSX file and processes each through collection, judgment, consensus, and storage.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		captures, err := ingest.Load(args[0])
		if err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var failures int
		for _, in := range captures {
			result, err := env.Pipeline.ProcessCapture(ctx, in)
			if err != nil {
				if ctx.Err() != nil {
					return eris.Wrap(err, "ingest interrupted")
				}
				failures++
				zap.L().Error("capture failed",
					zap.String("page_id", in.PageID),
					zap.Error(err),
				)
				continue
			}
			fmt.Printf("%s/%s: %d candidates, %d resolved (%d created, %d updated, %d unchanged), %d unresolved, %d low-confidence\n",
				result.TenantID, result.PageID,
				result.Candidates, result.Resolved,
				result.Created, result.Updated, result.Unchanged,
				result.Unresolved, result.LowConfidence,
			)
		}

		if failures > 0 {
			return eris.Errorf("%d of %d captures failed", failures, len(captures))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
