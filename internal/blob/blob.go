// Package blob stores meeting attachments.
package blob

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var ErrInvalidName = errors.New("invalid blob name")

// Store persists an object under folder and returns the URL it is reachable
// at. Implementations prefix name with the upload time in unix millis.
type Store interface {
	Upload(ctx context.Context, folder, name string, data []byte, contentType string) (string, error)
}

// FileStore writes blobs below a local directory that is served over HTTP at
// baseURL.
type FileStore struct {
	dir     string
	baseURL string
	now     func() time.Time
}

func NewFileStore(dir, baseURL string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}

	return &FileStore{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		now:     time.Now,
	}, nil
}

func (fs *FileStore) Upload(ctx context.Context, folder, name string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key, err := fs.key(folder, name)
	if err != nil {
		return "", err
	}

	target := filepath.Join(fs.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}

	// write then rename so readers never see a partial file
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("store blob: %w", err)
	}

	return fs.url(key), nil
}

// key builds "<folder>/<unixMillis>_<name>" and rejects anything that could
// escape the folder.
func (fs *FileStore) key(folder, name string) (string, error) {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." || strings.TrimSpace(base) == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	clean := path.Clean("/" + folder)
	if clean == "/" {
		return "", fmt.Errorf("%w: empty folder", ErrInvalidName)
	}

	return fmt.Sprintf("%s/%d_%s", strings.TrimPrefix(clean, "/"), fs.now().UnixMilli(), base), nil
}

func (fs *FileStore) url(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return fs.baseURL + "/" + strings.Join(parts, "/")
}

// Handler serves stored blobs. Mount it under the store's base URL path.
func (fs *FileStore) Handler() http.Handler {
	prefix := fs.baseURL
	if u, err := url.Parse(fs.baseURL); err == nil {
		prefix = u.Path
	}
	return http.StripPrefix(prefix, http.FileServer(http.Dir(fs.dir)))
}
