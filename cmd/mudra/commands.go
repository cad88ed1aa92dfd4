package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/history"
	"github.com/ayusman/mudra/internal/store"
)

// --- seed ---

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Add sample predictions for a user",
		Long: `Add sample predictions for a user, one day apart going back from now.

Examples:
  mudra seed --user u1
  mudra seed --user u1 --count 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			count, _ := cmd.Flags().GetInt("count")
			if userID == "" {
				return fmt.Errorf("--user is required")
			}

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if _, err := a.Backend().Users().Ensure(ctx, &store.User{ID: userID}); err != nil {
					return fmt.Errorf("ensure user: %w", err)
				}
				samples, err := a.History().AddSamples(ctx, userID, count)
				if err != nil {
					return err
				}
				for _, p := range samples {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%.2f\n", p.ID, p.Label, p.Confidence)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "added %d sample predictions for %s\n", len(samples), userID)
				return nil
			})
		},
	}
	cmd.Flags().String("user", "", "user id to add samples for")
	cmd.Flags().Int("count", history.DefaultSampleCount, "number of samples (capped at 50)")
	return cmd
}

// --- stats ---

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the admin dashboard as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				d, err := a.History().Dashboard(ctx)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(d)
			})
		},
	}
}
