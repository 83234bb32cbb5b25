package root

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newSettleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settle <challenge-id>",
		Short: "Issue the refund for one completed challenge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := uuid.Parse(args[0]); err != nil {
				return fmt.Errorf("invalid challenge id %q", args[0])
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			_, payments, cleanup, err := openServices(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := payments.SettleChallenge(ctx, args[0])
			if err != nil {
				return err
			}

			if res.Skipped {
				fmt.Fprintf(cmd.OutOrStdout(), "challenge %s has nothing to refund, marked as processed\n", res.ChallengeID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "challenge %s refunded %d (refund %s)\n", res.ChallengeID, res.RefundAmount, res.RefundID)
			return nil
		},
	}
}
