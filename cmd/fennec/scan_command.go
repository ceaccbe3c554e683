package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fennec/internal/scanner"
	"fennec/internal/store"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run one scan of the watch folders now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				result, err := scanner.New(st, ctx.logger()).Run(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"Scan complete in %s: %d found, %d new, %d updated, %d skipped, %d missing\n",
					result.Duration.Round(time.Millisecond), result.Found, result.New,
					result.Updated, result.Skipped, result.Missing)
				return nil
			})
		},
	}
}
