package hmr

import (
	"fmt"
	"strings"
	"time"

	"github.com/KevTale/hakai/internal/fingerprint"
	"github.com/KevTale/hakai/internal/types"
)

// ClientContext is what the coordinator remembers about an active client:
// the route it shows, the files backing it and a fingerprint of the last
// output it was sent.
type ClientContext struct {
	types.Route
	Fingerprint uint64
	Failed      bool
}

// Within returns the context's files that are path itself or lie below it.
func (c *ClientContext) Within(path string) []string {
	var out []string
	for _, p := range c.Paths() {
		if p == path || strings.HasPrefix(p, path+"/") {
			out = append(out, p)
		}
	}
	return out
}

// AffectedBy reports whether a create or modify of path requires a
// recompile: the path is one of the context's files or a directory
// holding one, or the last compile failed and path is a source file.
func (c *ClientContext) AffectedBy(path string, isSource bool) bool {
	if c.Failed && isSource {
		return true
	}
	return len(c.Within(path)) > 0
}

// Renamed returns a copy with old replaced by new everywhere. Keys are
// file paths, so a moved directory is passed as one entry per file.
func (c *ClientContext) Renamed(renames map[string]string) *ClientContext {
	next := *c
	next.Pages = substitute(c.Pages, renames)
	next.Components = substitute(c.Components, renames)
	return &next
}

func substitute(paths []string, renames map[string]string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		if renamed, ok := renames[p]; ok {
			p = renamed
		}
		out[i] = p
	}
	return out
}

// outputFingerprint identifies compiled output for change detection.
func outputFingerprint(page types.CompiledPage) uint64 {
	return fingerprint.Sum(page.Content, page.Script, page.Style)
}

// errorStateFingerprint never matches a real compile, so the first
// successful compile after a failure is always sent.
func errorStateFingerprint() uint64 {
	return fingerprint.Sum(fmt.Sprintf("error-state-%d", time.Now().UnixNano()))
}
