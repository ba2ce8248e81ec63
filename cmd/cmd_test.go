package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/KevTale/hakai/internal/config"
	"github.com/KevTale/hakai/internal/testutils"
	"github.com/KevTale/hakai/internal/version"
)

var site = map[string]string{
	"scopes/home/home.page.kai":      testutils.Page(`<h1>{{ title }}</h1>`, `const title = "Welcome";`),
	"scopes/docs/docs.page.kai":      testutils.Page(`<main><Slot/></main>`, ""),
	"scopes/docs/docs_api.page.kai":  testutils.Page(`<Card/>`, ""),
	"scopes/docs/card.component.kai": testutils.Page(`<div>card</div>`, ""),
}

// execute runs the root command with fresh global state and returns what
// it wrote to stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	viper.Reset()
	cfgFile = ""
	buildOutput = ""
	checkJobs = runtime.NumCPU()
	versionFormat = "text"
	versionShort = false
	if routesFlags != nil {
		routesFlags.OutputFormat = "table"
	}
	t.Cleanup(viper.Reset)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRoutesCommand(t *testing.T) {
	root := testutils.CreateTempProject(t, site)

	t.Run("table", func(t *testing.T) {
		out, _, err := execute(t, "routes", "--root", root)
		require.NoError(t, err)

		assert.Contains(t, out, "/docs/api")
		assert.Contains(t, out, "scopes/docs/docs.page.kai > scopes/docs/docs_api.page.kai")
		assert.Contains(t, out, "scopes/docs/card.component.kai")
	})

	t.Run("json", func(t *testing.T) {
		out, _, err := execute(t, "routes", "--root", root, "-o", "json")
		require.NoError(t, err)

		var views []routeView
		require.NoError(t, json.Unmarshal([]byte(out), &views))

		urls := make([]string, 0, len(views))
		for _, v := range views {
			urls = append(urls, v.URL)
		}
		assert.Equal(t, []string{"/", "/docs", "/docs/api", "/home"}, urls)
		assert.Equal(t, []string{"scopes/docs/card.component.kai"}, views[2].Components)
		assert.Equal(t, []string{}, views[0].Components)
	})

	t.Run("invalid output format", func(t *testing.T) {
		_, _, err := execute(t, "routes", "--root", root, "-o", "xml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid output format xml")
	})
}

func TestBuildCommand(t *testing.T) {
	root := testutils.CreateTempProject(t, site)

	t.Run("stdout", func(t *testing.T) {
		out, _, err := execute(t, "build", "/", "--root", root)
		require.NoError(t, err)

		assert.Contains(t, out, "<!DOCTYPE html>")
		assert.Contains(t, out, `<h1 data-page="home">Welcome</h1>`)
		assert.Contains(t, out, `const home_title = "Welcome";`)
		assert.NotContains(t, out, "/hmr-client.js")
	})

	t.Run("out file", func(t *testing.T) {
		target := filepath.Join(t.TempDir(), "dist", "api.html")
		out, _, err := execute(t, "build", "/docs/api", "--root", root, "--out", target)
		require.NoError(t, err)
		assert.Contains(t, out, "Wrote "+target)

		data, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Contains(t, string(data), `<div data-component="docs/card">card</div>`)
	})

	t.Run("unknown route", func(t *testing.T) {
		_, _, err := execute(t, "build", "/missing", "--root", root)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "No page found for path: /missing")
	})

	t.Run("requires one path", func(t *testing.T) {
		_, _, err := execute(t, "build", "--root", root)
		assert.Error(t, err)
	})
}

func TestCheckCommand(t *testing.T) {
	t.Run("all routes compile", func(t *testing.T) {
		root := testutils.CreateTempProject(t, site)
		out, _, err := execute(t, "check", "--root", root, "--jobs", "2")
		require.NoError(t, err)
		assert.Contains(t, out, "/docs/api")
		assert.NotContains(t, out, "FAIL")
	})

	t.Run("failing route", func(t *testing.T) {
		files := map[string]string{
			"scopes/home/home.page.kai":   testutils.Page(`<h1>ok</h1>`, ""),
			"scopes/home/broken.page.kai": testutils.Page(`<p>{{ nope }}</p>`, ""),
		}
		root := testutils.CreateTempProject(t, files)

		out, _, err := execute(t, "check", "--root", root)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 of 3 routes failed to compile")
		assert.Contains(t, out, "FAIL")
		assert.Contains(t, out, `Template variable "nope" is not defined`)
	})

	t.Run("duplicate page names", func(t *testing.T) {
		files := map[string]string{
			"scopes/home/home.page.kai":  testutils.Page(`<h1>ok</h1>`, ""),
			"scopes/home/about.page.kai": testutils.Page(`<p>a</p>`, ""),
			"scopes/blog/about.page.kai": testutils.Page(`<p>b</p>`, ""),
		}
		root := testutils.CreateTempProject(t, files)

		_, _, err := execute(t, "check", "--root", root)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "about")
	})
}

func TestConfigCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "hakai.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("server:\n  port: 9123\nroot:\n  scope: landing\n  page: welcome\n"), 0o644))

	t.Run("file values", func(t *testing.T) {
		out, _, err := execute(t, "config", "--config", cfgPath)
		require.NoError(t, err)

		var cfg config.Config
		require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
		assert.Equal(t, 9123, cfg.Server.Port)
		assert.Equal(t, "landing", cfg.Root.Scope)
		assert.Equal(t, "welcome", cfg.Root.Page)
		assert.Equal(t, "/hmr", cfg.HMR.Path)
		assert.Contains(t, out, "debounce: 100ms")
	})

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("HAKAI_SERVER_PORT", "9200")
		out, _, err := execute(t, "config", "--config", cfgPath)
		require.NoError(t, err)
		assert.Contains(t, out, "port: 9200")
	})

	t.Run("flags override env", func(t *testing.T) {
		t.Setenv("HAKAI_LOG_LEVEL", "warn")
		out, _, err := execute(t, "config", "--config", cfgPath, "--log-level", "debug")
		require.NoError(t, err)
		assert.Contains(t, out, "level: debug")
	})

	t.Run("config file from env", func(t *testing.T) {
		t.Setenv("HAKAI_CONFIG_FILE", cfgPath)
		out, _, err := execute(t, "config")
		require.NoError(t, err)
		assert.Contains(t, out, "port: 9123")
	})

	t.Run("invalid log level flag", func(t *testing.T) {
		_, _, err := execute(t, "config", "--log-level", "loud")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level loud")
	})
}

func TestVersionCommand(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, out string)
	}{
		{
			name: "text",
			args: []string{"version"},
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "hakai "+version.GetVersion())
			},
		},
		{
			name: "short",
			args: []string{"version", "--short"},
			check: func(t *testing.T, out string) {
				assert.Equal(t, version.GetVersion()+"\n", out)
			},
		},
		{
			name: "json",
			args: []string{"version", "--format", "json"},
			check: func(t *testing.T, out string) {
				var info version.BuildInfo
				require.NoError(t, json.Unmarshal([]byte(out), &info))
				assert.Equal(t, version.GetVersion(), info.Version)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, tt.args...)
			require.NoError(t, err)
			tt.check(t, out)
		})
	}

	_, _, err := execute(t, "version", "--format", "xml")
	assert.Error(t, err)
}

func TestValidators(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(string) error
		value   string
		wantErr bool
	}{
		{"port zero", ValidatePort, "0", false},
		{"port max", ValidatePort, "65535", false},
		{"port too large", ValidatePort, "65536", true},
		{"port not a number", ValidatePort, "http", true},
		{"level", ValidateLogLevel, "WARN", false},
		{"unknown level", ValidateLogLevel, "trace", true},
		{"format", ValidateLogFormat, "json", false},
		{"unknown format", ValidateLogFormat, "xml", true},
		{"output", ValidateOutputFormat, "table", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
