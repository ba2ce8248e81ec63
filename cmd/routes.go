package cmd

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/KevTale/hakai/internal/types"
)

var routesCmd = &cobra.Command{
	Use:     "routes",
	Aliases: []string{"r"},
	Short:   "List the routes the project serves",
	Long: `List every URL path the project's pages can serve, with the page chain
and the components compiled into it.

Examples:
  hakai routes           # Table output
  hakai routes -o json   # JSON output`,
	Args: cobra.NoArgs,
	RunE: runRoutes,
}

var routesFlags *StandardFlags

func init() {
	rootCmd.AddCommand(routesCmd)
	routesFlags = AddStandardFlags(routesCmd, "output")
}

type routeView struct {
	URL        string   `json:"url"`
	Pages      []string `json:"pages"`
	Components []string `json:"components"`
}

func runRoutes(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	routes, err := a.resolver.Routes(cmd.Context())
	if err != nil {
		return err
	}

	if routesFlags.OutputFormat == "json" {
		views := make([]routeView, 0, len(routes))
		for _, route := range routes {
			views = append(views, routeView{URL: route.URLPath, Pages: route.Pages, Components: nonNil(route.Components)})
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(views)
	}

	renderRoutes(cmd.OutOrStdout(), routes)
	return nil
}

func renderRoutes(w io.Writer, routes []types.Route) {
	table := newTable(w, []string{"URL", "Pages", "Components"})
	for _, route := range routes {
		table.Append([]string{
			route.URLPath,
			strings.Join(route.Pages, " > "),
			strings.Join(route.Components, ", "),
		})
	}
	table.SetFooter([]string{"", "", pluralize(len(routes), "route")})
	table.Render()
}

// newTable returns a borderless table in the style shared by every command.
func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
