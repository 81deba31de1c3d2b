package common

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestValidator(t *testing.T) {
	v := NewValidator().
		Field("filename", "  ", Required).
		Field("upload", "scan.png", PDFExtension).
		Field("path", "../x.pdf", PlainFilename).
		Field("session", uuid.NewString(), UUID).
		Field("note", "abcdef", MaxLength(3))

	assert.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 4)

	err := ValidateAndReturnError(v)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, UserMessage(err), `upload "scan.png": Invalid file type. Only PDF files are supported`)
	assert.Equal(t, err, v.Error())
}

func TestValidator_Clean(t *testing.T) {
	v := NewValidator().
		Field("filename", "invoice.PDF", Required, PlainFilename, PDFExtension, MaxLength(255))

	assert.False(t, v.HasErrors())
	assert.NoError(t, v.Error())
	assert.NoError(t, ValidateAndReturnError(v))
}
