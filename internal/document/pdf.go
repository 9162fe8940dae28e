package document

import (
	"bytes"
	"errors"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF extracts text from every page of a PDF, skipping pages that
// yield nothing.
func extractPDF(data []byte) (text string, err error) {
	// The pdf package panics on some malformed documents.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = errors.New("pdf parser panicked on malformed input")
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(pageText) == "" {
			continue
		}

		b.WriteString(pageText)
		b.WriteString("\n")
	}

	if b.Len() == 0 {
		return "", errors.New("no extractable text in pdf")
	}
	return b.String(), nil
}
