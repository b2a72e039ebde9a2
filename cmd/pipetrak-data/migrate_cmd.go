package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := connectDB(ctx)
			if err != nil {
				return withCode(exitDB, err)
			}
			defer pool.Close()

			app, err := bootstrapApp(pool)
			if err != nil {
				return withCode(exitDB, err)
			}
			if err := app.Migrations().Apply(ctx); err != nil {
				return withCode(exitDB, fmt.Errorf("apply schema: %w", err))
			}
			return writeJSONLine(map[string]string{"status": "migrated"})
		},
	}
}
