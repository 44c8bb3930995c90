package main

import (
	"github.com/spf13/cobra"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage the document registry",
}

var docsSetCmd = &cobra.Command{
	Use:   "set <doc-id> <path>",
	Short: "Record the on-disk path of a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Documents.Set(cmd.Context(), args[0], args[1])
	},
}

func init() {
	docsCmd.AddCommand(docsSetCmd)
	rootCmd.AddCommand(docsCmd)
}
