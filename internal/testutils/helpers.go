// Package testutils builds throwaway hakai projects for tests.
package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/KevTale/hakai/internal/config"
)

// CreateTempProject creates a temporary project with the scopes and
// design-system directories, plus the given files keyed by
// project-relative slash path.
func CreateTempProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()

	for _, dir := range []string{"scopes", "design-system/components"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.FromSlash(dir)), 0o755))
	}

	for rel, content := range files {
		WriteFile(t, root, rel, content)
	}

	return root
}

// WriteFile writes content to a project-relative path, creating parents.
func WriteFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// CreateTestConfig returns the default configuration rooted at projectDir
// with a short debounce window.
func CreateTestConfig(projectDir string) *config.Config {
	cfg := config.Default()
	cfg.Project.Root = projectDir
	cfg.Server.Port = 0
	cfg.HMR.Debounce = 20 * time.Millisecond
	return cfg
}

// Page renders a component file from its sections.
func Page(template, script string) string {
	out := "<template>\n" + template + "\n</template>\n"
	if script != "" {
		out += "<script>\n" + script + "\n</script>\n"
	}
	return out
}

// Eventually polls condition until it holds or timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("condition not met within %v", timeout)
}
