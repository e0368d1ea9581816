// Package media stores uploaded post images on the local filesystem.
//
// Files land in <root>/posts/<xid><ext> and are served read-only under
// /media/. The stored path ("posts/<xid><ext>") is what the post row keeps.
package media

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/rs/xid"

	"github.com/sakif/yatube/internal/apperror"
)

const (
	// Dir is the subdirectory of the media root that holds post images.
	Dir = "posts"

	// MaxSize caps a single upload.
	MaxSize = 5 << 20
)

// extensions maps the sniffed content type to the stored file extension.
// Only these types are accepted.
var extensions = map[string]string{
	"image/gif":  ".gif",
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// Store writes images under a root directory.
type Store struct {
	root string
}

// NewStore creates root/posts if needed.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, Dir), 0o755); err != nil {
		return nil, fmt.Errorf("media: creating %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

// Root is the directory served at /media/.
func (s *Store) Root() string { return s.root }

// Save sniffs the content type from the first bytes, rejects anything that is
// not an image and writes the file under a fresh name. It returns the path
// relative to the media root.
func (s *Store) Save(r io.Reader) (string, error) {
	br := bufio.NewReaderSize(r, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", fmt.Errorf("media: reading upload: %w", err)
	}
	if len(head) == 0 {
		return "", apperror.ValidationFailed("image", "the uploaded file is empty")
	}

	ext, ok := extensions[http.DetectContentType(head)]
	if !ok {
		return "", apperror.ValidationFailed("image", "upload a valid image: the file is not an image or is corrupted")
	}

	rel := Dir + "/" + xid.New().String() + ext
	full := filepath.Join(s.root, filepath.FromSlash(rel))

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("media: creating %s: %w", rel, err)
	}

	n, err := io.Copy(f, io.LimitReader(br, MaxSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(full)
		return "", fmt.Errorf("media: writing %s: %w", rel, err)
	}
	if n > MaxSize {
		os.Remove(full)
		return "", apperror.ValidationFailed("image", "the image is larger than 5 MB")
	}

	return rel, nil
}

// Delete removes a previously saved file. A missing file is not an error.
func (s *Store) Delete(rel string) error {
	if rel == "" {
		return nil
	}
	full := filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+rel)))
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("media: deleting %s: %w", rel, err)
	}
	return nil
}

// Handler serves the media root read-only. Mount it with the /media/
// prefix stripped.
func (s *Store) Handler() http.Handler {
	return http.FileServer(http.Dir(s.root))
}
