// Package script analyzes the JavaScript section of component files with
// tree-sitter: it lists top-level declarations and imports, renames
// top-level bindings without touching shadowed names or property keys, and
// extracts constant literals for template interpolation.
package script

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/KevTale/hakai/internal/fingerprint"
)

// DefaultCacheSize bounds the number of cached analyses.
const DefaultCacheSize = 512

// Analyzer parses scripts and caches the results by content fingerprint, so
// a live reload pass only re-parses the files that changed.
type Analyzer struct {
	cache *lru.Cache[uint64, *Analysis]
}

// NewAnalyzer creates an analyzer holding at most size analyses.
func NewAnalyzer(size int) (*Analyzer, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[uint64, *Analysis](size)
	if err != nil {
		return nil, err
	}
	return &Analyzer{cache: cache}, nil
}

// Analyze parses source. Blank scripts yield an empty analysis. A script that
// does not parse returns a *SyntaxError.
func (a *Analyzer) Analyze(ctx context.Context, source string) (*Analysis, error) {
	if strings.TrimSpace(source) == "" {
		return &Analysis{source: source}, nil
	}

	key := fingerprint.Sum(source)
	if cached, ok := a.cache.Get(key); ok && cached.source == source {
		return cached, nil
	}

	analysis, err := analyze(ctx, source)
	if err != nil {
		return nil, err
	}
	a.cache.Add(key, analysis)
	return analysis, nil
}

// Len returns the number of cached analyses.
func (a *Analyzer) Len() int {
	return a.cache.Len()
}
