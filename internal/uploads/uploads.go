// Package uploads stores rental listing photos in a sandboxed directory
// and serves them back by name.
package uploads

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/google/uuid"

	"github.com/krishisahay/krishisahay-go/internal/errors"
	"github.com/krishisahay/krishisahay-go/internal/logger"
)

// PublicPrefix is the URL path under which stored photos are served.
const PublicPrefix = "/uploads/"

// sniffLen is the number of bytes http.DetectContentType looks at.
const sniffLen = 512

var (
	// ErrTooLarge is returned when a photo exceeds the configured size limit.
	ErrTooLarge = errors.NewStd("photo exceeds the maximum upload size")

	// ErrUnsupportedType is returned for files that are not a supported image format.
	ErrUnsupportedType = errors.NewStd("photo must be a JPEG, PNG, GIF or WebP image")

	// ErrNotFound is returned when a stored photo does not exist.
	ErrNotFound = errors.NewStd("photo not found")
)

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// storedName matches the names Save generates.
var storedName = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.(jpg|png|gif|webp)$`)

var (
	serviceLogger logger.Logger
	loggerOnce    sync.Once
)

// GetLogger returns the uploads package logger.
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		serviceLogger = logger.Global().Module("uploads")
	})
	return serviceLogger
}

// Stored describes a saved photo.
type Stored struct {
	Name string // generated file name
	URL  string // public URL path
	Path string // absolute server-side path
}

// Store writes photos below a base directory. All file access goes through
// an os.Root so names can never escape the directory.
type Store struct {
	baseDir string
	root    *os.Root
	maxSize int64
}

// New creates the directory when missing and opens it.
func New(dir string, maxSize int64) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve uploads path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open uploads directory: %w", err)
	}
	return &Store{baseDir: abs, root: root, maxSize: maxSize}, nil
}

// Dir returns the absolute upload directory.
func (s *Store) Dir() string {
	return s.baseDir
}

// Save validates the uploaded file and writes it under a generated name.
func (s *Store) Save(fh *multipart.FileHeader) (*Stored, error) {
	if s.maxSize > 0 && fh.Size > s.maxSize {
		return nil, limitError(fh.Size, s.maxSize)
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fileError(err, "open_upload")
	}
	defer func() { _ = src.Close() }()

	return s.save(src)
}

func (s *Store) save(src io.Reader) (*Stored, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fileError(err, "read_upload")
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	ext, ok := allowedTypes[contentType]
	if !ok {
		return nil, errors.New(ErrUnsupportedType).
			Component("uploads").
			Category(errors.CategoryValidation).
			Context("content_type", contentType).
			Build()
	}

	name := uuid.NewString() + ext
	dst, err := s.root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return nil, fileError(err, "create_file")
	}

	var reader io.Reader = io.MultiReader(bytes.NewReader(head), src)
	if s.maxSize > 0 {
		// fh.Size comes from the client
		reader = io.LimitReader(reader, s.maxSize+1)
	}
	written, copyErr := io.Copy(dst, reader)
	closeErr := dst.Close()

	switch {
	case copyErr != nil:
		s.removeName(name)
		return nil, fileError(copyErr, "write_file")
	case closeErr != nil:
		s.removeName(name)
		return nil, fileError(closeErr, "close_file")
	case s.maxSize > 0 && written > s.maxSize:
		s.removeName(name)
		return nil, limitError(written, s.maxSize)
	}

	GetLogger().Info("photo stored",
		logger.String("name", name),
		logger.String("content_type", contentType),
		logger.Int64("size", written))

	return &Stored{Name: name, URL: PublicPrefix + name, Path: filepath.Join(s.baseDir, name)}, nil
}

// Path returns the absolute path of a stored photo. Names that Save could
// not have generated are reported as not found.
func (s *Store) Path(name string) (string, error) {
	if !storedName.MatchString(name) {
		return "", notFound(name)
	}
	if _, err := s.root.Stat(name); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", notFound(name)
		}
		return "", fileError(err, "stat_file")
	}
	return filepath.Join(s.baseDir, name), nil
}

// Remove deletes a stored photo by its absolute path. Paths outside the
// upload directory are ignored.
func (s *Store) Remove(path string) {
	rel, err := filepath.Rel(s.baseDir, path)
	if err != nil || !storedName.MatchString(rel) {
		return
	}
	s.removeName(rel)
}

// Close releases the directory handle.
func (s *Store) Close() error {
	return s.root.Close()
}

func (s *Store) removeName(name string) {
	if err := s.root.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		GetLogger().Warn("failed to remove photo", logger.String("name", name), logger.Error(err))
	}
}

func limitError(size, limit int64) error {
	return errors.New(ErrTooLarge).
		Component("uploads").
		Category(errors.CategoryLimit).
		Context("size", size).
		Context("limit", limit).
		Build()
}

func notFound(name string) error {
	return errors.New(ErrNotFound).
		Component("uploads").
		Category(errors.CategoryNotFound).
		Priority(errors.PriorityLow).
		Context("name", name).
		Build()
}

func fileError(err error, operation string) error {
	return errors.New(err).
		Component("uploads").
		Category(errors.CategoryFileIO).
		Context("operation", operation).
		Build()
}
