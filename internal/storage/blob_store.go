package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// sniffLen is how many leading bytes are inspected to detect the content type.
const sniffLen = 3072

var (
	ErrInvalidID       = errors.New("invalid blob id")
	ErrUnsupportedType = errors.New("unsupported content type")
)

// Upload is a single file received from a client.
type Upload struct {
	Filename string
	Content  io.Reader
}

// BlobInfo describes a stored blob.
type BlobInfo struct {
	ID      string
	Size    int64
	ModTime time.Time
}

// BlobStore defines the interface for uploaded image storage
type BlobStore interface {
	Put(ctx context.Context, r io.Reader, suggestedName string) (string, error)
	Delete(ctx context.Context, id string) (bool, error)
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]BlobInfo, error)
}

// DiskStore keeps blobs as flat files in a single directory of an afero filesystem.
type DiskStore struct {
	fs    afero.Fs
	dir   string
	now   func() time.Time
	sniff bool
}

// Option configures a DiskStore.
type Option func(*DiskStore)

// WithClock overrides the clock used to generate blob ids.
func WithClock(now func() time.Time) Option {
	return func(s *DiskStore) { s.now = now }
}

// WithoutTypeCheck accepts any content instead of images only.
func WithoutTypeCheck() Option {
	return func(s *DiskStore) { s.sniff = false }
}

// NewDiskStore creates the upload directory if needed and returns a store rooted there.
func NewDiskStore(fsys afero.Fs, dir string, opts ...Option) (*DiskStore, error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	s := &DiskStore{fs: fsys, dir: dir, now: time.Now, sniff: true}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the directory blobs are stored in.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Put stores the stream under "<epoch-millis>_<name>" and returns that id.
func (s *DiskStore) Put(ctx context.Context, r io.Reader, suggestedName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	header := make([]byte, sniffLen)
	n, err := io.ReadFull(r, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	header = header[:n]

	if s.sniff {
		mtype := mimetype.Detect(header)
		if !strings.HasPrefix(mtype.String(), "image/") {
			return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
		}
	}

	base := cleanName(suggestedName)
	stamp := s.now().UnixMilli()

	var (
		id string
		f  afero.File
	)
	for {
		id = fmt.Sprintf("%d_%s", stamp, base)
		f, err = s.fs.OpenFile(s.path(id), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("failed to create blob: %w", err)
		}
		stamp++
	}

	_, copyErr := io.Copy(f, io.MultiReader(bytes.NewReader(header), r))
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = s.fs.Remove(s.path(id))
		if copyErr == nil {
			copyErr = closeErr
		}
		return "", fmt.Errorf("failed to write blob: %w", copyErr)
	}

	return id, nil
}

// Delete removes the blob. It reports false when the blob did not exist.
func (s *DiskStore) Delete(ctx context.Context, id string) (bool, error) {
	exists, err := s.Exists(ctx, id)
	if err != nil || !exists {
		return false, err
	}

	if err := s.fs.Remove(s.path(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete blob: %w", err)
	}
	return true, nil
}

// Exists reports whether a blob with the id is stored.
func (s *DiskStore) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !validID(id) {
		return false, ErrInvalidID
	}

	info, err := s.fs.Stat(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat blob: %w", err)
	}
	return !info.IsDir(), nil
}

// List returns every stored blob.
func (s *DiskStore) List(ctx context.Context) ([]BlobInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}

	blobs := make([]BlobInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		blobs = append(blobs, BlobInfo{ID: e.Name(), Size: e.Size(), ModTime: e.ModTime()})
	}
	return blobs, nil
}

func (s *DiskStore) path(id string) string {
	return filepath.Join(s.dir, id)
}

// IDFromURL returns the trailing path segment of a blob URL or path.
func IDFromURL(url string) string {
	url = strings.TrimSpace(url)
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	if i := strings.LastIndex(url, "/"); i >= 0 {
		url = url[i+1:]
	}
	return url
}

func validID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`)
}

func cleanName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" || name == "." || name == "/" || name == ".." {
		return "image"
	}
	return name
}
