package tobject

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Source is a template's raw markup plus the directory further relative
// paths inside it are resolved against. Path is empty for markup that did
// not come from a loader.
type Source struct {
	Path   string
	Dir    string
	Markup string
}

// Loader fetches template markup for EXTEND and INCLUDE directives.
type Loader interface {
	// Resolve turns name, as written in a directive, into the canonical path
	// used for loading and for cycle detection.
	Resolve(base, name string) string
	// Load returns the source stored at a resolved path, or an error wrapping
	// ErrNotFound.
	Load(path string) (Source, error)
}

// FileSystemLoader loads templates from the operating system's filesystem.
type FileSystemLoader struct{}

// NewFileSystemLoader returns a loader reading plain files.
func NewFileSystemLoader() *FileSystemLoader {
	return &FileSystemLoader{}
}

// Resolve joins name onto base unless it is already absolute and returns the
// absolute, cleaned result.
func (l *FileSystemLoader) Resolve(base, name string) string {
	p := name
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

func (l *FileSystemLoader) Load(p string) (Source, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Source{}, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return Source{}, err
	}
	return Source{Path: p, Dir: filepath.Dir(p), Markup: string(data)}, nil
}

// FSLoader loads templates from an fs.FS using slash-separated paths rooted
// at the top of the file system.
type FSLoader struct {
	fsys fs.FS
}

// NewFSLoader returns a loader reading from fsys.
func NewFSLoader(fsys fs.FS) *FSLoader {
	return &FSLoader{fsys: fsys}
}

func (l *FSLoader) Resolve(base, name string) string {
	return JoinSlash(base, name)
}

func (l *FSLoader) Load(p string) (Source, error) {
	data, err := fs.ReadFile(l.fsys, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			return Source{}, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return Source{}, err
	}
	return Source{Path: p, Dir: path.Dir(p), Markup: string(data)}, nil
}

// JoinSlash resolves a slash-separated name against base for loaders whose
// namespace is rooted at "." rather than the OS root. A leading "/" in name
// restarts from the root.
func JoinSlash(base, name string) string {
	name = filepath.ToSlash(name)
	if strings.HasPrefix(name, "/") {
		return cleanSlash(name)
	}
	return cleanSlash(path.Join(filepath.ToSlash(base), name))
}

func cleanSlash(p string) string {
	p = strings.TrimLeft(path.Clean("/"+p), "/")
	if p == "" {
		return "."
	}
	return p
}
