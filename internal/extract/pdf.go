package extract

import (
	"bytes"
	"strings"

	"campus-rag-go/pkg/log"

	"github.com/ledongthuc/pdf"
)

// pdfTextLayer extracts the embedded text layer page by page, joined with
// newlines. Malformed files yield whatever pages parsed before the failure.
func pdfTextLayer(data []byte) (text string) {
	// The pdf package panics on some malformed inputs; contain it.
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("pdf text extraction panicked: %v", r)
			text = ""
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		log.Warnf("failed to parse pdf: %v", err)
		return ""
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(content) != "" {
			pages = append(pages, content)
		}
	}
	return strings.Join(pages, "\n")
}
