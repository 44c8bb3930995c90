package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nbcache/internal/archive"
	"nbcache/internal/gateway/app"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Copy saved outputs to and from object storage",
}

func archiveApp(cmd *cobra.Command) (*app.App, error) {
	a, err := newApp(cmd.Context())
	if err != nil {
		return nil, err
	}
	if a.Archive == nil {
		_ = a.Close()
		return nil, archive.ErrDisabled
	}
	return a, nil
}

var archivePushCmd = &cobra.Command{
	Use:   "push <doc-id>",
	Short: "Upload a document's saved outputs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := archiveApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		docPath := a.Resolver.DocumentPath(cmd.Context(), args[0])
		n, err := a.Archive.Push(cmd.Context(), docPath, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d files\n", n)
		return nil
	},
}

var archivePullCmd = &cobra.Command{
	Use:   "pull <doc-id>",
	Short: "Restore a document's saved outputs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := archiveApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		n, err := a.RestoreArchive(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "restored %d files\n", n)
		return nil
	},
}

func init() {
	archiveCmd.AddCommand(archivePushCmd, archivePullCmd)
	rootCmd.AddCommand(archiveCmd)
}
