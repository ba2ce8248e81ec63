package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/KevTale/hakai/internal/logging"
	"github.com/KevTale/hakai/internal/server"
)

var buildCmd = &cobra.Command{
	Use:     "build <url-path>",
	Aliases: []string{"b"},
	Short:   "Compile one route to a standalone HTML document",
	Long: `Compile the page chain serving a URL path and print the resulting HTML
document, with the page script inlined and no live reload client.

Examples:
  hakai build /                     # Print the root page
  hakai build /docs/api -o api.html # Write the docs_api route to a file`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

var buildOutput string

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVarP(&buildOutput, "out", "o", "", "Write the document to this file instead of stdout")
}

func runBuild(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	op := logging.StartOperation(a.logger, "build")

	pages, err := a.resolver.ResolvePages(ctx, args[0])
	if err != nil {
		op.EndWithError(ctx, err, "path", args[0])
		return err
	}
	page, err := a.compiler.Compile(ctx, pages)
	if err != nil {
		op.EndWithError(ctx, err, "path", args[0])
		return err
	}

	var buf bytes.Buffer
	if err := server.Document(page).Render(ctx, &buf); err != nil {
		return fmt.Errorf("failed to render document: %w", err)
	}
	op.End(ctx, "path", args[0], "pages", len(pages))

	if buildOutput == "" {
		_, err := cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}

	if dir := filepath.Dir(buildOutput); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(buildOutput, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", buildOutput, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", buildOutput)
	return nil
}
