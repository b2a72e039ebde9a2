package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pipetrak-data",
		Short:         "Piping component and weld import tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newMigrateCmd())
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}
