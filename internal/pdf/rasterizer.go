// Package pdf converts uploaded PDF bytes into rendered page images.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"

	"github.com/lectern-ai/page-reader/internal/domain"
	"github.com/lectern-ai/page-reader/internal/observability"
)

// Rasterizer implements PDF to image conversion using go-fitz. Pages are
// rendered to PNG in memory; nothing touches disk.
type Rasterizer struct {
	logger *observability.Logger
}

// NewRasterizer creates a new rasterizer instance
func NewRasterizer(logger *observability.Logger) *Rasterizer {
	return &Rasterizer{logger: logger}
}

// Rasterize converts PDF bytes into one PNG image per page, in page order.
func (r *Rasterizer) Rasterize(ctx context.Context, pdfBytes []byte) ([]domain.PageImage, error) {
	doc, err := fitz.NewFromMemory(pdfBytes)
	if err != nil {
		return nil, domain.ParseError("failed to open PDF", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, domain.ParseError("PDF has no pages", nil)
	}

	images := make([]domain.PageImage, 0, pageCount)

	for pageNum := 0; pageNum < pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		img, err := doc.Image(pageNum)
		if err != nil {
			return nil, domain.ParseError(fmt.Sprintf("failed to render page %d", pageNum+1), err)
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, domain.ParseError(fmt.Sprintf("failed to encode page %d as PNG", pageNum+1), err)
		}

		bounds := img.Bounds()
		images = append(images, domain.PageImage{
			PageNumber: pageNum + 1,
			PNG:        buf.Bytes(),
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
		})
	}

	r.logger.Debug().Int("pages", len(images)).Msg("Rasterized PDF")

	return images, nil
}
