package cmd

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	hakaierrors "github.com/KevTale/hakai/internal/errors"
	"github.com/KevTale/hakai/internal/types"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Compile every route and report errors",
	Long: `Validate the project: page names must be unique across scopes and every
route must compile. Exits non-zero when anything fails.

Examples:
  hakai check            # Check with one worker per CPU
  hakai check --jobs 2   # Limit concurrent compiles`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

var checkJobs int

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().IntVarP(&checkJobs, "jobs", "j", runtime.NumCPU(), "Number of routes compiled concurrently")
}

type checkResult struct {
	url string
	err error
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if err := a.project.ValidateUniquePageNames(ctx); err != nil {
		return err
	}

	routes, err := a.resolver.Routes(ctx)
	if err != nil {
		return err
	}

	results := make([]checkResult, len(routes))
	var group errgroup.Group
	group.SetLimit(max(checkJobs, 1))
	for i, route := range routes {
		group.Go(func() error {
			_, err := a.compiler.Compile(ctx, route.Pages)
			results[i] = checkResult{url: route.URLPath, err: err}
			return nil
		})
	}
	_ = group.Wait()

	failed := renderCheck(cmd.OutOrStdout(), routes, results)
	if failed > 0 {
		return fmt.Errorf("%d of %d routes failed to compile", failed, len(routes))
	}
	return nil
}

func renderCheck(w io.Writer, routes []types.Route, results []checkResult) int {
	table := newTable(w, []string{"Route", "Status", "Detail"})

	failed := 0
	for i, result := range results {
		if result.err != nil {
			failed++
			detail := strings.ReplaceAll(hakaierrors.ClientMessage(result.err), "\n", " ")
			table.Append([]string{result.url, "FAIL", detail})
			continue
		}
		table.Append([]string{result.url, "ok", pluralize(len(routes[i].Pages), "page")})
	}

	table.SetFooter([]string{"", fmt.Sprintf("%d failed", failed), pluralize(len(results), "route")})
	table.Render()
	return failed
}
