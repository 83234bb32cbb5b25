package root

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"dietChallengeAPI/internal/config"
	"dietChallengeAPI/internal/database"
)

var rootCmd = &cobra.Command{
	Use:           "challengectl",
	Short:         "Operations tool for the diet challenge API",
	Long:          "challengectl applies the schema and runs the challenge sweep and refund settlement by hand.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	rootCmd.AddCommand(
		newMigrateCmd(),
		newSweepCmd(),
		newSettleCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error: "+err.Error())
		os.Exit(1)
	}
}

// openPool connects using DATABASE_URL only, so migrate works without payment credentials.
func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	dbURL := config.Get("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	return database.Connect(ctx, dbURL)
}
