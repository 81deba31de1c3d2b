package common

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-desk/constants"
)

// ValidationError is one rejected input value.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	if s, ok := e.Value.(string); ok && s != "" {
		return fmt.Sprintf("%s %q: %s", e.Field, s, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationRule checks a single value; nil means it passed.
type ValidationRule func(field string, value any) *ValidationError

// Validator collects rule failures across several inputs so a form can report
// all of them at once.
type Validator struct {
	failures []ValidationError
}

func NewValidator() *Validator {
	return &Validator{}
}

// Field runs every rule against value and records the failures.
func (v *Validator) Field(field string, value any, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if f := rule(field, value); f != nil {
			v.failures = append(v.failures, *f)
		}
	}
	return v
}

func (v *Validator) HasErrors() bool { return len(v.failures) > 0 }

func (v *Validator) Errors() []ValidationError { return v.failures }

// Error returns nil when every rule passed, otherwise an ErrValidation AppError
// listing each failure.
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	msgs := make([]string, len(v.failures))
	for i, f := range v.failures {
		msgs[i] = f.Error()
	}
	return NewAppError("VALIDATION", strings.Join(msgs, "; "), ErrValidation)
}

// ValidateAndReturnError is v.Error() for call sites that build the validator inline.
func ValidateAndReturnError(v *Validator) error {
	return v.Error()
}

func fail(field string, value any, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: fmt.Sprintf(format, args...)}
}

func Required(field string, value any) *ValidationError {
	switch s := value.(type) {
	case nil:
		return fail(field, value, "is required")
	case string:
		if strings.TrimSpace(s) == "" {
			return fail(field, value, "is required")
		}
	case *string:
		if s == nil || strings.TrimSpace(*s) == "" {
			return fail(field, value, "is required")
		}
	}
	return nil
}

// MaxLength limits a string to max runes.
func MaxLength(max int) ValidationRule {
	return func(field string, value any) *ValidationError {
		if s, ok := value.(string); ok && utf8.RuneCountInString(s) > max {
			return fail(field, value, "must be at most %d characters", max)
		}
		return nil
	}
}

func UUID(field string, value any) *ValidationError {
	s, ok := value.(string)
	if !ok {
		return fail(field, value, "must be a string")
	}
	if _, err := uuid.Parse(s); err != nil {
		return fail(field, value, "must be a valid UUID")
	}
	return nil
}

// PlainFilename rejects names that carry directory components.
func PlainFilename(field string, value any) *ValidationError {
	s, ok := value.(string)
	if !ok {
		return fail(field, value, "must be a string")
	}
	if s != filepath.Base(s) || strings.ContainsAny(s, `/\`) || s == ".." {
		return fail(field, value, "must not contain directories")
	}
	return nil
}

// PDFExtension requires a .pdf file name. The message matches the extraction
// service's own rejection text.
func PDFExtension(field string, value any) *ValidationError {
	s, ok := value.(string)
	if !ok {
		return fail(field, value, "must be a string")
	}
	if _, ok := constants.AllowedExtensions[constants.NormalizeExt(filepath.Ext(s))]; !ok {
		return fail(field, value, "Invalid file type. Only PDF files are supported")
	}
	return nil
}
