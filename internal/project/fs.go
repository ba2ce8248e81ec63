package project

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
)

// FS is the file access the compiler and resolver need. Paths are absolute.
type FS interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	// ListDirs returns the names of the sub-directories of dir, sorted.
	ListDirs(ctx context.Context, dir string) ([]string, error)
	// ListFiles returns the names of the regular files in dir, sorted.
	ListFiles(ctx context.Context, dir string) ([]string, error)
}

// afsFS implements FS on top of viant/afs.
type afsFS struct {
	fs afs.Service
}

// NewFS returns the default afs backed file system.
func NewFS() FS {
	return &afsFS{fs: afs.New()}
}

func (f *afsFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return f.fs.DownloadWithURL(ctx, path)
}

func (f *afsFS) Exists(ctx context.Context, path string) bool {
	ok, err := f.fs.Exists(ctx, path)
	return err == nil && ok
}

func (f *afsFS) ListDirs(ctx context.Context, dir string) ([]string, error) {
	return f.list(ctx, dir, true)
}

func (f *afsFS) ListFiles(ctx context.Context, dir string) ([]string, error) {
	return f.list(ctx, dir, false)
}

func (f *afsFS) list(ctx context.Context, dir string, dirs bool) ([]string, error) {
	objects, err := f.fs.List(ctx, dir)
	if err != nil {
		return nil, err
	}

	self := filepath.Clean(dir)
	var names []string
	for _, obj := range objects {
		// afs lists the directory itself first
		if filepath.Clean(url.Path(obj.URL())) == self {
			continue
		}
		if obj.IsDir() != dirs {
			continue
		}
		names = append(names, obj.Name())
	}
	sort.Strings(names)
	return names, nil
}
