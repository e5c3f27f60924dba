// Package extract turns raw document files into plain text. Extraction is
// best-effort: every failure path degrades to empty text, never an error,
// and the caller decides whether the yield is usable.
package extract

import (
	"context"
	"strings"

	"campus-rag-go/internal/config"
	"campus-rag-go/pkg/log"
)

// Thresholds for the PDF fallback ladder. A stage whose yield clears its
// threshold wins and fully replaces the previous stage's text.
const (
	weakTextLen = 200 // below this, the text layer is considered weak
	weakOCRLen  = 100 // below this, per-page OCR is considered weak
)

// Extractor extracts plain text from supported document formats.
type Extractor struct {
	cfg config.ExtractConfig
}

// New creates an Extractor using the configured OCR tool chain.
func New(cfg config.ExtractConfig) *Extractor {
	if cfg.TesseractBin == "" {
		cfg.TesseractBin = "tesseract"
	}
	if cfg.PdftoppmBin == "" {
		cfg.PdftoppmBin = "pdftoppm"
	}
	if cfg.ConvertBin == "" {
		cfg.ConvertBin = "convert"
	}
	return &Extractor{cfg: cfg}
}

// Extract returns the best-effort plain text for the file. Unsupported
// formats and malformed files yield empty text.
func (e *Extractor) Extract(ctx context.Context, data []byte, fileType string) string {
	switch strings.ToLower(fileType) {
	case "pdf":
		return e.extractPDF(ctx, data)
	case "docx":
		return extractDOCX(data)
	case "txt":
		return string(data)
	case "xml":
		return extractXML(data)
	default:
		log.Warnf("unsupported file type for extraction: %s", fileType)
		return ""
	}
}

// extractPDF walks the fallback ladder: text layer, then page OCR, then a
// rendered-image OCR pass. Each stage replaces the previous stage's output.
func (e *Extractor) extractPDF(ctx context.Context, data []byte) string {
	text := pdfTextLayer(data)
	if len(strings.TrimSpace(text)) >= weakTextLen {
		return text
	}

	ocrText := e.ocrPages(ctx, data)
	if len(strings.TrimSpace(ocrText)) >= weakOCRLen {
		return ocrText
	}

	rendered := e.ocrRendered(ctx, data)
	// Pick the best of the weak stages rather than returning the last one.
	return longest(text, ocrText, rendered)
}

func longest(candidates ...string) string {
	best := ""
	for _, c := range candidates {
		if len(strings.TrimSpace(c)) > len(strings.TrimSpace(best)) {
			best = c
		}
	}
	return best
}
