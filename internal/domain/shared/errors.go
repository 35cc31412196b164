// Package shared holds the error type shared by the domain packages.
package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// ErrInvalidLayout is the base error of a document whose blocks cannot be drawn
var ErrInvalidLayout = NewDomainError("INVALID_LAYOUT", "Document layout is invalid")
