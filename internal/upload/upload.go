// Package upload stores profile images on the local filesystem under a
// single directory served at /uploads/. Filenames are server-generated so
// client-supplied names never touch the disk.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxImageSize is the largest accepted profile image (1 MiB). The HTTP
// layer enforces it with MaxBytesReader before any store write; the extra
// check here guards direct callers.
const MaxImageSize = 1 << 20

// URLPrefix is the public path uploads are served under.
const URLPrefix = "/uploads/"

var (
	ErrNotImage = errors.New("upload: only image files are allowed")
	ErrTooLarge = errors.New("upload: file exceeds 1 MiB limit")
)

// Store writes uploaded files into Dir.
type Store struct {
	Dir string
}

// NewStore creates the upload directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{Dir: dir}, nil
}

// SaveImage writes the multipart file to disk under a generated name and
// returns the public URL path ("/uploads/<name>"). Only image/* content
// types are accepted.
func (s *Store) SaveImage(file multipart.File, header *multipart.FileHeader) (string, error) {
	if header.Size > MaxImageSize {
		return "", ErrTooLarge
	}
	if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		return "", ErrNotImage
	}

	// Keep the original extension only; the rest of the client filename is
	// discarded to rule out collisions and path traversal.
	ext := filepath.Ext(header.Filename)
	name := fmt.Sprintf("profile-%d-%s%s", time.Now().UnixNano(), uuid.NewString()[:8], ext)

	dst, err := os.Create(filepath.Join(s.Dir, name))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(file, MaxImageSize+1)); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("write upload: %w", err)
	}

	return URLPrefix + name, nil
}

// Remove deletes the file behind a public URL path previously returned by
// SaveImage. Paths outside the upload prefix and missing files are ignored.
func (s *Store) Remove(urlPath string) error {
	name, ok := strings.CutPrefix(urlPath, URLPrefix)
	if !ok || name == "" {
		return nil
	}
	// filepath.Base strips any traversal left in a stored value.
	err := os.Remove(filepath.Join(s.Dir, filepath.Base(name)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}
