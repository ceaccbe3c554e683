package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"fennec/internal/store"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				totals, err := st.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := [][]string{
					{"Files", strconv.FormatInt(totals.Files, 10)},
					{"Scenes", strconv.FormatInt(totals.Scenes, 10)},
					{"Faces", strconv.FormatInt(totals.Faces, 10)},
					{"Video duration", formatDuration(totals.TotalDuration)},
					{"Video storage", formatBytes(totals.TotalSizeBytes)},
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Metric", "Value"}, rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func formatDuration(seconds float64) string {
	total := int64(seconds)
	switch {
	case total < 60:
		return fmt.Sprintf("%ds", total)
	case total < 3600:
		return fmt.Sprintf("%dm %ds", total/60, total%60)
	default:
		return fmt.Sprintf("%dh %dm", total/3600, (total%3600)/60)
	}
}

func formatBytes(size int64) string {
	value := float64(size)
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if value < 1024 {
			return fmt.Sprintf("%.1f %s", value, unit)
		}
		value /= 1024
	}
	return fmt.Sprintf("%.1f PB", value)
}
