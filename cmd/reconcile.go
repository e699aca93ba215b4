package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newReconcileCommand() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one subscription reconciliation and print its report",
		Long: "Expires subscriptions ending today (and, with catch-up, any overdue ones) and publishes\n" +
			"expiring-soon notifications. The run takes the same cluster lock as the scheduled job.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd.Context(), at)
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate as of this RFC3339 instant instead of now")
	return cmd
}

func runReconcile(ctx context.Context, at string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now()
	if at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		now = parsed
	}

	rt, err := bootstrap(ctx, false)
	if err != nil {
		return err
	}
	defer rt.close()

	report, runErr := rt.services.Reconciler.Reconcile(ctx, now)
	if report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	}
	if runErr != nil {
		return fmt.Errorf("reconciliation failed: %w", runErr)
	}
	return nil
}
