package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedScheme is returned for document URIs no source can open
var ErrUnsupportedScheme = errors.New("unsupported document URI scheme")

// ErrTooLarge is returned when a document exceeds the configured size limit
var ErrTooLarge = errors.New("document exceeds size limit")

// ErrOutsideRoot is returned for paths that leave a rooted file source
var ErrOutsideRoot = errors.New("document path outside uploads directory")

// Source loads document content from a location
type Source interface {
	Open(ctx context.Context, uri string) (Document, error)
}

// Router dispatches URIs to sources by scheme. Plain paths use the "file" source.
type Router struct {
	sources map[string]Source
}

// NewRouter creates an empty router
func NewRouter() *Router {
	return &Router{sources: make(map[string]Source)}
}

// Handle registers src for scheme
func (r *Router) Handle(scheme string, src Source) *Router {
	r.sources[strings.ToLower(scheme)] = src
	return r
}

// Open loads the document at uri
func (r *Router) Open(ctx context.Context, uri string) (Document, error) {
	scheme := "file"
	if u, err := url.Parse(uri); err == nil && len(u.Scheme) > 1 {
		scheme = strings.ToLower(u.Scheme)
	}
	src, ok := r.sources[scheme]
	if !ok {
		return Document{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
	return src.Open(ctx, uri)
}

// FileSource reads documents from the local filesystem. A rooted source
// only serves files beneath its directory.
type FileSource struct {
	maxBytes int64
	rootDir  string
	root     *os.Root
}

// NewFileSource creates a file source; maxBytes <= 0 means unlimited
func NewFileSource(maxBytes int64) *FileSource {
	return &FileSource{maxBytes: maxBytes}
}

// NewRootedFileSource creates a file source confined to dir. Relative paths
// resolve against dir; absolute paths must lie beneath it. Symlinks that
// escape dir are rejected.
func NewRootedFileSource(dir string, maxBytes int64) (*FileSource, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("uploads directory: %w", err)
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("open uploads directory: %w", err)
	}
	return &FileSource{maxBytes: maxBytes, rootDir: abs, root: root}, nil
}

// Open reads a file path or file:// URI
func (s *FileSource) Open(ctx context.Context, uri string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	path := strings.TrimPrefix(uri, "file://")

	f, err := s.open(path)
	if err != nil {
		return Document{}, err
	}
	defer func() { _ = f.Close() }()

	data, err := readLimited(f, s.maxBytes)
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", path, err)
	}

	return Document{
		URI:         uri,
		Name:        filepath.Base(path),
		ContentType: contentTypeFor(path),
		Data:        data,
	}, nil
}

func (s *FileSource) open(path string) (*os.File, error) {
	if s.root == nil {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open document: %w", err)
		}
		return f, nil
	}

	rel := filepath.Clean(path)
	if filepath.IsAbs(rel) {
		r, err := filepath.Rel(s.rootDir, rel)
		if err != nil {
			return nil, ErrOutsideRoot
		}
		rel = r
	}
	if !filepath.IsLocal(rel) {
		return nil, ErrOutsideRoot
	}
	f, err := s.root.Open(rel)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	return f, nil
}

// Close releases the uploads directory of a rooted source
func (s *FileSource) Close() error {
	if s.root == nil {
		return nil
	}
	return s.root.Close()
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
