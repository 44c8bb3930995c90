package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"nbcache/internal/output"
)

var lsCmd = &cobra.Command{
	Use:   "ls <doc-id> <unit-id>",
	Short: "Print the serialized outputs of a unit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		key := output.UnitKey{DocumentID: args[0], UnitID: args[1]}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if lsFiles {
			loc, names, err := a.Store.ListOutputs(cmd.Context(), key, output.FallbackToSaved)
			if err != nil {
				return err
			}
			return enc.Encode(map[string]any{
				"context_id": loc.ContextID,
				"dir":        loc.Dir,
				"files":      names,
			})
		}
		serializer := output.NewSerializer(a.Resolver, logger)
		loc, outputs := serializer.SerializeUnit(cmd.Context(), key)
		return enc.Encode(map[string]any{
			"context_id":    loc.ContextID,
			"dir":           loc.Dir,
			"chunk_outputs": outputs,
		})
	},
}

var (
	lsFiles       bool
	clearPreserve bool
)

var clearCmd = &cobra.Command{
	Use:   "clear <doc-id> <unit-id>",
	Short: "Remove a unit's outputs in the live context",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.ClearOutputs(cmd.Context(), output.UnitKey{DocumentID: args[0], UnitID: args[1]}, clearPreserve)
	},
}

var writeCmd = &cobra.Command{
	Use:   "write <doc-id> <unit-id> <file>",
	Short: "Store a plot, HTML or error file as the unit's next output",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := output.KindOf(args[2])
		if kind == output.KindNone || kind == output.KindText {
			return fmt.Errorf("unsupported output file %s", filepath.Base(args[2]))
		}
		content, err := os.ReadFile(args[2])
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		path, err := a.WriteOutput(cmd.Context(), output.UnitKey{DocumentID: args[0], UnitID: args[1]}, kind, content)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var appendKind int

var appendCmd = &cobra.Command{
	Use:   "append <doc-id> <unit-id> <text>",
	Short: "Append a console event to the unit's current text output",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		path, err := a.AppendConsole(cmd.Context(), output.UnitKey{DocumentID: args[0], UnitID: args[1]}, appendKind, args[2])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	lsCmd.Flags().BoolVar(&lsFiles, "files", false, "print file names instead of serialized outputs")
	clearCmd.Flags().BoolVar(&clearPreserve, "preserve", false, "keep the emptied directory")
	appendCmd.Flags().IntVar(&appendKind, "kind", output.ConsoleOutput, "console event kind ("+
		strconv.Itoa(output.ConsoleInput)+"=input, "+
		strconv.Itoa(output.ConsoleOutput)+"=output, "+
		strconv.Itoa(output.ConsoleError)+"=error)")
	rootCmd.AddCommand(lsCmd, clearCmd, writeCmd, appendCmd)
}
