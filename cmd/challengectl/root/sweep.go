package root

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dietChallengeAPI/internal/config"
	"dietChallengeAPI/internal/workers"
	"dietChallengeAPI/services"
)

// openServices loads the full configuration because settlement talks to Stripe.
func openServices(ctx context.Context) (*services.ChallengeService, *services.PaymentService, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	pool, err := openPool(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	// Pushes are left to the API server; the CLI only changes state.
	challenges := services.NewChallengeService(pool, nil)
	payments := services.NewPaymentService(pool, services.NewStripeGateway(cfg.Stripe.SecretKey), cfg.Stripe.Currency)
	return challenges, payments, pool.Close, nil
}

func newSweepCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Complete due challenges and settle pending refunds once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			challenges, payments, cleanup, err := openServices(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := workers.RunSweep(ctx, challenges, payments)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "completed: %d\nsettled:   %d\nfailed:    %d\n", report.Completed, report.Settled, report.Failed)
			if report.Failed > 0 {
				return fmt.Errorf("%d settlements failed", report.Failed)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "abort the sweep after this long")
	return cmd
}
