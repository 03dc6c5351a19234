// Package pdf renders contract text into a paginated PDF file.
package pdf

import (
	"fmt"
	"os"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Renderer writes contract documents to temporary files. The caller owns
// the returned path and must remove it when done.
type Renderer struct{}

// NewRenderer creates a new document renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render writes the contract text to a temp PDF and returns its path.
func (r *Renderer) Render(contractText string) (string, error) {
	tmp, err := os.CreateTemp("", "contract_*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	path := tmp.Name()
	tmp.Close()

	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 11)
	doc.AddPage()

	// gofpdf's core fonts are cp1252 only; translate what they can show.
	tr := doc.UnicodeTranslatorFromDescriptor("")
	for _, line := range strings.Split(contractText, "\n") {
		if strings.TrimSpace(line) == "" {
			doc.Ln(4)
			continue
		}
		doc.MultiCell(0, 6, tr(line), "", "L", false)
	}

	if err := doc.OutputFileAndClose(path); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write pdf: %w", err)
	}
	return path, nil
}
