package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/lectern-ai/page-reader/internal/domain"
	"github.com/lectern-ai/page-reader/internal/observability"
)

// Structural extracts text from the PDF's own content streams, page by page,
// preserving row layout. No model call is involved.
type Structural struct {
	logger *observability.Logger
}

// NewStructural creates a structural parser.
func NewStructural(logger *observability.Logger) *Structural {
	return &Structural{logger: logger}
}

// ProduceText extracts each page in isolation and concatenates the page
// texts in page order. A single bad page does not sink the whole document.
func (s *Structural) ProduceText(ctx context.Context, pdfBytes []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	if err != nil {
		return "", domain.ParseError("failed to open PDF", err)
	}

	totalPages := reader.NumPage()
	if totalPages == 0 {
		return "", domain.ParseError("PDF has no pages", nil)
	}

	var pages []string

	for i := 1; i <= totalPages; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := extractPageText(page)
		if err != nil {
			s.logger.Warn().Int("page", i).Err(err).Msg("Failed to extract page text")
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		pages = append(pages, fmt.Sprintf("# Page %d\n\n%s", i, text))
	}

	if len(pages) == 0 {
		return "", domain.ParseError("no extractable text in PDF", nil)
	}

	return strings.Join(pages, "\n\n"), nil
}

// extractPageText reads a page's text rows in layout order.
func extractPageText(page pdf.Page) (string, error) {
	rows, err := page.GetTextByRow()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, row := range rows {
		for i, word := range row.Content {
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(word.S)
		}
		sb.WriteString("\n")
	}

	return sb.String(), nil
}
