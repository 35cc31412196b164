package printing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// PDFStorage defines the interface for storing and retrieving PDF files
type PDFStorage interface {
	// Store saves a PDF file and returns its URL/path
	Store(ctx context.Context, req *StoreRequest) (*StoreResult, error)
	// Get retrieves a PDF file by the name it was stored under
	Get(ctx context.Context, name string) (io.ReadCloser, error)
	// GetURL returns the accessible URL for a stored PDF
	GetURL(name string) string
}

// ErrPDFNotFound is wrapped by Get errors when no file is stored under the name
var ErrPDFNotFound = errors.New("PDF not found")

// StoreRequest contains the parameters for storing a PDF
type StoreRequest struct {
	// FileName is the bare file name, e.g. invoice_1001.pdf
	FileName string
	// PDFData is the raw PDF content
	PDFData []byte
}

// StoreResult contains the result of storing a PDF
type StoreResult struct {
	// Path is where the file was written (local path or object key)
	Path string
	// URL is the accessible URL for the PDF
	URL string
	// Size is the file size in bytes
	Size int64
}

// FileWriteError is returned when the output location cannot be written.
type FileWriteError struct {
	Path string
	Err  error
}

func (e *FileWriteError) Error() string {
	return fmt.Sprintf("cannot write %s: %v", e.Path, e.Err)
}

func (e *FileWriteError) Unwrap() error {
	return e.Err
}

// ValidateFileName rejects names that are empty or not a single path element
func ValidateFileName(name string) error {
	if strings.TrimSpace(name) == "" {
		return NewRenderError(ErrCodeStorageFailed, "file name is required", nil)
	}
	if containsDotDot(name) || strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return NewRenderError(ErrCodeStorageFailed, "invalid file name: "+name, nil)
	}
	return nil
}

// FileSystemStorageConfig contains configuration for file system storage
type FileSystemStorageConfig struct {
	// BasePath is the output directory
	// Default: ./invoices
	BasePath string
	// BaseURL is the URL prefix for accessing PDFs
	// Example: https://invoices.example.com/files
	BaseURL string
	// Logger for operations
	Logger *zap.Logger
}

// FileSystemStorage stores PDFs in one local directory
type FileSystemStorage struct {
	config *FileSystemStorageConfig
	logger *zap.Logger
}

// NewFileSystemStorage creates a new file system based PDF storage
func NewFileSystemStorage(config *FileSystemStorageConfig) (*FileSystemStorage, error) {
	if config == nil {
		config = &FileSystemStorageConfig{}
	}

	if config.BasePath == "" {
		config.BasePath = "invoices"
	}
	if config.BaseURL == "" {
		config.BaseURL = "/api/v1/invoices/files"
	}

	if err := os.MkdirAll(config.BasePath, 0o755); err != nil {
		return nil, &FileWriteError{Path: config.BasePath, Err: err}
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FileSystemStorage{
		config: config,
		logger: logger,
	}, nil
}

// BasePath returns the output directory
func (s *FileSystemStorage) BasePath() string {
	return s.config.BasePath
}

// Store writes the PDF to {base}/{file name}. The file appears atomically:
// data goes to a temporary file first and is renamed into place, so a
// failed call leaves nothing behind.
func (s *FileSystemStorage) Store(ctx context.Context, req *StoreRequest) (*StoreResult, error) {
	select {
	case <-ctx.Done():
		return nil, NewRenderError(ErrCodeStorageFailed, "operation cancelled", ctx.Err())
	default:
	}

	if req == nil {
		return nil, NewRenderError(ErrCodeStorageFailed, "store request is nil", nil)
	}
	if err := ValidateFileName(req.FileName); err != nil {
		return nil, err
	}
	if len(req.PDFData) == 0 {
		return nil, NewRenderError(ErrCodeStorageFailed, "PDF data is empty", nil)
	}

	filePath := filepath.Join(s.config.BasePath, req.FileName)
	if err := writeFileAtomic(filePath, req.PDFData); err != nil {
		return nil, &FileWriteError{Path: filePath, Err: err}
	}

	url := s.GetURL(req.FileName)

	s.logger.Info("PDF stored",
		zap.String("path", filePath),
		zap.Int("size", len(req.PDFData)),
		zap.String("url", url))

	return &StoreResult{
		Path: filePath,
		URL:  url,
		Size: int64(len(req.PDFData)),
	}, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

// Get opens a stored PDF by file name
func (s *FileSystemStorage) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, NewRenderError(ErrCodeStorageFailed, "operation cancelled", ctx.Err())
	default:
	}

	if err := ValidateFileName(name); err != nil {
		s.logger.Warn("blocked potentially malicious path", zap.String("path", name))
		return nil, err
	}

	file, err := os.Open(filepath.Join(s.config.BasePath, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewRenderError(ErrCodeStorageFailed, "PDF not found", errors.Join(ErrPDFNotFound, err))
		}
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to open PDF file", err)
	}

	return file, nil
}

// GetURL returns the accessible URL for a stored PDF
func (s *FileSystemStorage) GetURL(name string) string {
	return strings.TrimRight(s.config.BaseURL, "/") + "/" + filepath.ToSlash(filepath.Clean(name))
}

// containsDotDot checks if a path contains ".." components
func containsDotDot(path string) bool {
	// Split on both separators to catch ".." before any normalization
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '\\' || r == filepath.Separator
	})
	return slices.Contains(parts, "..")
}

// Ensure FileSystemStorage implements PDFStorage
var _ PDFStorage = (*FileSystemStorage)(nil)
