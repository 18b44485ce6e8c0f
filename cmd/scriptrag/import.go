package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/scriptrag/internal/app"
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Load parsed content items into the store",
	Long: `Loads content items produced by an upstream screenplay parser. The file
is YAML or JSON with an "items" list; each item has id, type, text and
optional metadata:

  items:
    - id: d12
      type: dialogue
      text: "Another cup of coffee, please."
      metadata: {character: SARAH, scene_id: s3, sequence: 12}

Existing items with the same type and id are replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	items, err := app.ReadContentFile(args[0])
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	n, err := a.ImportContent(cmd.Context(), items)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d items\n", n)
	return nil
}
