// Package parser extracts text from an uploaded PDF page, either from the
// document structure or through a vision-capable model.
package parser

import (
	"context"

	"github.com/lectern-ai/page-reader/internal/domain"
	"github.com/lectern-ai/page-reader/internal/pdf"
)

// Facade dispatches between the structural and vision parser variants.
// Failures in either path propagate unmodified so the caller can distinguish
// a parse error from a successful-but-empty extraction.
type Facade struct {
	validator  *pdf.Validator
	structural domain.TextExtractor
	vision     domain.TextExtractor
}

// NewFacade creates a parser facade over the two variants.
func NewFacade(validator *pdf.Validator, structural, vision domain.TextExtractor) *Facade {
	return &Facade{
		validator:  validator,
		structural: structural,
		vision:     vision,
	}
}

// ParseDocument extracts text from the uploaded PDF bytes.
func (f *Facade) ParseDocument(ctx context.Context, pdfBytes []byte, useLLMParsing bool) (string, error) {
	if err := f.validator.ValidateBytes(pdfBytes); err != nil {
		return "", err
	}

	if useLLMParsing {
		return f.vision.ProduceText(ctx, pdfBytes)
	}
	return f.structural.ProduceText(ctx, pdfBytes)
}
