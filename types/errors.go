package types

import (
	"errors"
	"fmt"
)

// ErrorCategory groups failures by how far they are allowed to propagate
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryDecode     ErrorCategory = "decode"
	CategoryQuery      ErrorCategory = "query"
	CategoryIO         ErrorCategory = "io"
	CategoryArgument   ErrorCategory = "argument"
)

// Sentinels for errors.Is checks against a category
var (
	ErrValidation = &CategorizedError{Category: CategoryValidation}
	ErrDecode     = &CategorizedError{Category: CategoryDecode}
	ErrQuery      = &CategorizedError{Category: CategoryQuery}
	ErrIO         = &CategorizedError{Category: CategoryIO}
	ErrArgument   = &CategorizedError{Category: CategoryArgument}
)

// CategorizedError wraps an error with its category and the file it concerns
type CategorizedError struct {
	Category ErrorCategory
	Op       string
	Path     string
	Err      error
}

// NewError wraps err under the given category
func NewError(category ErrorCategory, op, path string, err error) error {
	return &CategorizedError{Category: category, Op: op, Path: path, Err: err}
}

// Errorf builds a categorized error from a format string
func Errorf(category ErrorCategory, op, path, format string, args ...interface{}) error {
	return NewError(category, op, path, fmt.Errorf(format, args...))
}

func (e *CategorizedError) Error() string {
	msg := string(e.Category) + " error"
	if e.Op != "" {
		msg = e.Op
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// Is matches any CategorizedError of the same category
func (e *CategorizedError) Is(target error) bool {
	t, ok := target.(*CategorizedError)
	if !ok {
		return false
	}
	return e.Category == t.Category
}

// CategoryOf returns the category of the outermost categorized error in err's chain
func CategoryOf(err error) (ErrorCategory, bool) {
	var ce *CategorizedError
	if errors.As(err, &ce) {
		return ce.Category, true
	}
	return "", false
}
