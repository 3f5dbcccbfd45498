package packager

import (
	"bytes"
	"fmt"
	"strings"

	wkhtmltopdf "github.com/SebastiaanKlippert/go-wkhtmltopdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// htmlShell wraps the converted notes in the minimal stylesheet used for the
// downloadable PDF: sans-serif body, monospace code on a light background.
const htmlShell = `<html><head><meta charset="utf-8"><style>body{font-family: Arial, sans-serif;} pre, code {background-color: #f4f4f4; padding: 1em; border-radius: 5px;}</style></head><body>%s</body></html>`

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Table, extension.Strikethrough),
)

// RenderNotesHTML converts the generated Markdown notes (tables and fenced
// code blocks included) into the styled HTML document handed to the PDF
// renderer.
func RenderNotesHTML(notes string) (string, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(notes), &body); err != nil {
		return "", fmt.Errorf("error converting markdown to HTML: %w", err)
	}
	return fmt.Sprintf(htmlShell, body.String()), nil
}

// RenderNotesPDF renders the notes to an in-memory PDF via wkhtmltopdf with
// local file access enabled, matching the download contract: no intermediate
// file on disk.
func RenderNotesPDF(notes string) ([]byte, error) {
	html, err := RenderNotesHTML(notes)
	if err != nil {
		return nil, err
	}

	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("error initializing PDF renderer: %w", err)
	}

	page := wkhtmltopdf.NewPageReader(strings.NewReader(html))
	page.EnableLocalFileAccess.Set(true)
	pdfg.AddPage(page)

	if err := pdfg.Create(); err != nil {
		return nil, fmt.Errorf("error rendering notes PDF: %w", err)
	}

	return pdfg.Bytes(), nil
}
