package source

import "errors"

// Common source errors
var (
	// ErrEmptyFile is returned when the CSV file is empty
	ErrEmptyFile = errors.New("CSV file is empty")

	// ErrInvalidEncoding is returned when the file is not UTF-8
	ErrInvalidEncoding = errors.New("invalid file encoding")

	// ErrMissingHeader is returned when the source has no header row
	ErrMissingHeader = errors.New("source missing header row")

	// ErrUnknownKind is returned for an unsupported source kind
	ErrUnknownKind = errors.New("unknown source kind")
)
