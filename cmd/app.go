package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/KevTale/hakai/internal/compiler"
	"github.com/KevTale/hakai/internal/config"
	"github.com/KevTale/hakai/internal/logging"
	"github.com/KevTale/hakai/internal/project"
	"github.com/KevTale/hakai/internal/routing"
	"github.com/KevTale/hakai/internal/script"
)

// app holds the components every command builds from the configuration.
type app struct {
	config   *config.Config
	logger   logging.Logger
	project  *project.Project
	compiler *compiler.Compiler
	resolver *routing.Resolver

	closers []io.Closer
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	a := &app{config: cfg}
	if err := a.setupLogger(cmd.ErrOrStderr()); err != nil {
		return nil, err
	}

	a.project, err = project.New(cfg, nil)
	if err != nil {
		a.Close()
		return nil, err
	}

	// One analyzer is shared so the compiler and the resolver hit the same cache.
	analyzer, err := script.NewAnalyzer(script.DefaultCacheSize)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.compiler, err = compiler.New(a.project, analyzer, a.logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.resolver, err = routing.NewResolver(a.project, analyzer)
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *app) setupLogger(stderr io.Writer) error {
	loggerConfig := &logging.LoggerConfig{
		Level:     logging.ParseLevel(a.config.Log.Level),
		Format:    a.config.Log.Format,
		Output:    stderr,
		Component: "hakai",
	}
	console := logging.NewLogger(loggerConfig)

	if a.config.Log.File == "" {
		a.logger = console
		return nil
	}

	file, err := logging.NewFileLogger(loggerConfig, a.config.Log.File, logging.RotationConfig{
		MaxSizeMB:  a.config.Log.MaxSizeMB,
		MaxBackups: a.config.Log.MaxBackups,
		MaxAgeDays: a.config.Log.MaxAgeDays,
		Compress:   a.config.Log.Compress,
	})
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	a.closers = append(a.closers, file)
	a.logger = logging.NewMultiLogger(console, file)
	return nil
}

// Close releases the log file, if any.
func (a *app) Close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
	a.closers = nil
}
