// Package scope has resources that are created eagerly and must be released
// exactly once on every exit path of the operation that owns them.
package scope

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-multierror"
)

const tempDirPattern = "devsbx-*"

// Releaser is a resource that can be released.
type Releaser interface {
	Release() error
}

// Dir is a private temporary directory.
type Dir struct {
	Path string

	once sync.Once
	err  error
}

// TempDir creates a uniquely named temporary directory inside dir (os.TempDir if empty).
func TempDir(dir string) (*Dir, error) {
	path, err := os.MkdirTemp(dir, tempDirPattern)
	if err != nil {
		return nil, fmt.Errorf("could not create temp dir: %w", err)
	}
	return &Dir{Path: path}, nil
}

// Release removes the directory and its contents. Only the first call has effect,
// the next ones return the same result.
func (d *Dir) Release() error {
	d.once.Do(func() {
		if err := os.RemoveAll(d.Path); err != nil {
			d.err = fmt.Errorf("could not remove temp dir %s: %w", d.Path, err)
		}
	})
	return d.err
}

// File is a temporary file living in its own private directory.
type File struct {
	Path string

	dir *Dir
}

// TempFile creates a private temporary directory inside dir and writes content
// to a file named name in it.
func TempFile(dir, name string, content []byte) (*File, error) {
	if name == "" || filepath.Base(name) != name {
		return nil, fmt.Errorf("invalid temp file name %q", name)
	}

	d, err := TempDir(dir)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(d.Path, name)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		_ = d.Release()
		return nil, fmt.Errorf("could not write temp file: %w", err)
	}

	return &File{Path: path, dir: d}, nil
}

// Release removes the file. Safe to call multiple times.
func (f *File) Release() error {
	return f.dir.Release()
}

// Group releases a set of resources together. The zero value is ready to use.
type Group struct {
	mu        sync.Mutex
	releasers []Releaser
}

// Add adds a resource to the group.
func (g *Group) Add(r Releaser) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releasers = append(g.releasers, r)
}

// Release releases all the resources in reverse order, all of them are released
// even if some fail.
func (g *Group) Release() error {
	g.mu.Lock()
	rs := g.releasers
	g.releasers = nil
	g.mu.Unlock()

	var merr *multierror.Error
	for i := len(rs) - 1; i >= 0; i-- {
		if err := rs[i].Release(); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}
