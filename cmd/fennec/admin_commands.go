package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fennec/internal/store"
)

func newAdminCommand(ctx *commandContext) *cobra.Command {
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Destructive maintenance actions",
	}

	adminCmd.AddCommand(newPurgeDeletedCommand(ctx))
	adminCmd.AddCommand(newPurgeOrphansCommand(ctx))
	adminCmd.AddCommand(newWipeCommand(ctx))

	return adminCmd
}

func newPurgeDeletedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-deleted",
		Short: "Permanently remove soft-deleted files and their artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				count, err := st.PurgeDeleted(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %d file(s)\n", count)
				return nil
			})
		},
	}
}

func newPurgeOrphansCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-orphans",
		Short: "Remove files outside every current watch folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				folders, err := st.WatchFolders(cmd.Context())
				if err != nil {
					return err
				}
				if len(folders) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No watch folders configured")
					return nil
				}
				count, err := st.PurgeOrphans(cmd.Context(), folders)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %d orphan file(s)\n", count)
				return nil
			})
		},
	}
}

func newWipeCommand(ctx *commandContext) *cobra.Command {
	var confirmed bool
	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete all indexed data (config is preserved)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return fmt.Errorf("wipe deletes every file, scene, face, and embedding; re-run with --yes")
			}
			return ctx.withStore(func(st *store.Store) error {
				counts, err := st.Wipe(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wiped %d files, %d scenes, %d faces\n",
					counts.Files, counts.Scenes, counts.Faces)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm the wipe")
	return cmd
}
