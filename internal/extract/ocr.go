package extract

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"campus-rag-go/pkg/log"
)

// ocrPages renders each PDF page to an image with pdftoppm and runs
// tesseract over every page, concatenating the output. Any tooling failure
// yields empty text.
func (e *Extractor) ocrPages(ctx context.Context, data []byte) string {
	workDir, pdfPath, ok := writeTempPDF(data)
	if !ok {
		return ""
	}
	defer os.RemoveAll(workDir)

	prefix := filepath.Join(workDir, "page")
	cmd := exec.CommandContext(ctx, e.cfg.PdftoppmBin, "-r", "200", "-png", pdfPath, prefix)
	if err := cmd.Run(); err != nil {
		log.Warnf("pdftoppm failed: %v", err)
		return ""
	}

	images, err := filepath.Glob(prefix + "*.png")
	if err != nil || len(images) == 0 {
		return ""
	}
	sort.Strings(images)

	var pages []string
	for _, image := range images {
		text := e.runTesseract(ctx, image)
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n")
}

// ocrRendered is the last rung of the ladder: render the whole document
// through ImageMagick at high density and OCR the rendered images. Catches
// PDFs whose page structure pdftoppm cannot handle.
func (e *Extractor) ocrRendered(ctx context.Context, data []byte) string {
	workDir, pdfPath, ok := writeTempPDF(data)
	if !ok {
		return ""
	}
	defer os.RemoveAll(workDir)

	outPattern := filepath.Join(workDir, "render.png")
	cmd := exec.CommandContext(ctx, e.cfg.ConvertBin, "-density", "300", pdfPath, outPattern)
	if err := cmd.Run(); err != nil {
		log.Warnf("convert render failed: %v", err)
		return ""
	}

	// Multi-page documents render as render-0.png, render-1.png, ...
	images, err := filepath.Glob(filepath.Join(workDir, "render*.png"))
	if err != nil || len(images) == 0 {
		return ""
	}
	sort.Strings(images)

	var pages []string
	for _, image := range images {
		text := e.runTesseract(ctx, image)
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n")
}

func (e *Extractor) runTesseract(ctx context.Context, imagePath string) string {
	cmd := exec.CommandContext(ctx, e.cfg.TesseractBin, imagePath, "stdout")
	out, err := cmd.Output()
	if err != nil {
		log.Warnf("tesseract failed on %s: %v", filepath.Base(imagePath), err)
		return ""
	}
	return string(out)
}

func writeTempPDF(data []byte) (workDir, pdfPath string, ok bool) {
	workDir, err := os.MkdirTemp("", "ocr-")
	if err != nil {
		log.Warnf("failed to create OCR temp dir: %v", err)
		return "", "", false
	}
	pdfPath = filepath.Join(workDir, "input.pdf")
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		log.Warnf("failed to write OCR temp file: %v", err)
		os.RemoveAll(workDir)
		return "", "", false
	}
	return workDir, pdfPath, true
}
