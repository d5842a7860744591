// Package download offers serialized extraction results as text files.
package download

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ContentType of every offered file.
const ContentType = "text/plain"

var ErrReleased = errors.New("download: handle already released")

// Filename returns extracted-text-<epoch-millis>.txt for now.
func Filename(now time.Time) string {
	return fmt.Sprintf("extracted-text-%d.txt", now.UnixMilli())
}

// File is a temporary download handle. Its content is dropped by Release.
type File struct {
	Name        string
	ContentType string
	Location    string // set by the sink when the file lands somewhere addressable

	mu       sync.Mutex
	content  []byte
	released bool
}

// NewFile creates a handle over content.
func NewFile(name string, content []byte) *File {
	return &File{Name: name, ContentType: ContentType, content: content}
}

// Content returns the bytes, or ErrReleased after Release.
func (f *File) Content() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released {
		return nil, ErrReleased
	}
	return f.content, nil
}

// Release drops the content. It reports whether this call released it.
func (f *File) Release() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released {
		return false
	}
	f.released = true
	f.content = nil
	return true
}

// Released reports whether Release has been called.
func (f *File) Released() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

// Sink receives offered files.
type Sink interface {
	Offer(ctx context.Context, f *File) error
}

// DirSink writes offered files into Dir.
type DirSink struct {
	Dir string
}

func (s DirSink) Offer(ctx context.Context, f *File) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	content, err := f.Content()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("download dir: %w", err)
	}
	out, path, err := createUnique(s.Dir, filepath.Base(f.Name))
	if err != nil {
		return err
	}
	if _, err := out.Write(content); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	f.Location = path
	return nil
}

// maxNameAttempts bounds the numbered suffixes tried for one name.
const maxNameAttempts = 100

// createUnique creates name in dir, or name-1, name-2 and so on when it is
// taken. Existing files are never opened for writing.
func createUnique(dir, name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 0; n < maxNameAttempts; n++ {
		candidate := name
		if n > 0 {
			candidate = fmt.Sprintf("%s-%d%s", stem, n, ext)
		}
		path := filepath.Join(dir, candidate)
		out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return out, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("create %s: %w", path, err)
		}
	}
	return nil, "", fmt.Errorf("create %s: %d names taken: %w", filepath.Join(dir, name), maxNameAttempts, fs.ErrExist)
}

// HTTPSink streams offered files to a browser as an attachment.
type HTTPSink struct {
	W http.ResponseWriter
}

func (s HTTPSink) Offer(ctx context.Context, f *File) error {
	content, err := f.Content()
	if err != nil {
		return err
	}
	h := s.W.Header()
	h.Set("Content-Type", f.ContentType+"; charset=utf-8")
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))
	h.Set("Content-Length", strconv.Itoa(len(content)))
	h.Set("Cache-Control", "no-store")
	s.W.WriteHeader(http.StatusOK)
	_, err = s.W.Write(content)
	return err
}
