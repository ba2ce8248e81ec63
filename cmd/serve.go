package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KevTale/hakai/internal/hmr"
	"github.com/KevTale/hakai/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the development server with live reload",
	Long: `Start the development server. Pages are compiled on request and every
open browser tab is updated when a .kai file it depends on changes.

Examples:
  hakai serve                    # Serve on localhost:8000
  hakai serve --port 3000        # Serve on another port
  hakai serve --debounce 250ms   # Wait longer before recompiling`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	AddStandardFlags(serveCmd, "server")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.project.ValidateUniquePageNames(ctx); err != nil {
		a.logger.Error(ctx, err, "Project validation failed")
		return err
	}

	factory := hmr.NewWatcherFactory(a.project, a.config.HMR.Debounce, a.logger)
	coordinator := hmr.NewCoordinator(a.compiler, a.resolver, factory, a.logger)
	srv := server.New(a.config, a.compiler, a.resolver, coordinator, a.logger)

	fmt.Fprintf(cmd.OutOrStdout(), "Starting hakai server at http://%s\n", a.config.Server.Address())

	if err := srv.Start(ctx); err != nil {
		return err
	}
	return nil
}
