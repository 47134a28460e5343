package pdf

import (
	"bytes"
	"fmt"

	"github.com/lectern-ai/page-reader/internal/domain"
)

var pdfMagic = []byte("%PDF-")

// Validator provides input validation for uploaded PDF bytes
type Validator struct {
	maxBytes int64
}

// NewValidator creates a new validator instance
func NewValidator(maxBytes int64) *Validator {
	return &Validator{maxBytes: maxBytes}
}

// ValidateBytes validates that the uploaded bytes look like a PDF document
func (v *Validator) ValidateBytes(pdfBytes []byte) error {
	if len(pdfBytes) == 0 {
		return domain.ParseError("uploaded file is empty", nil)
	}

	if v.maxBytes > 0 && int64(len(pdfBytes)) > v.maxBytes {
		return domain.ParseError(
			fmt.Sprintf("uploaded file is too large (%d bytes, limit %d)", len(pdfBytes), v.maxBytes), nil)
	}

	if !bytes.HasPrefix(pdfBytes, pdfMagic) {
		return domain.ParseError("uploaded file is not a PDF", nil)
	}

	return nil
}
