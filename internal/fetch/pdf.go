package fetch

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/ziadkadry99/doc-qa/internal/chunker"
)

// ExtractPages returns the text of every page of a PDF, numbered from 1.
// Pages are read row by row so line breaks survive for section detection;
// a page whose rows cannot be read falls back to plain-text extraction.
// Blank pages are omitted. A document without any text is an
// ErrExtraction.
func ExtractPages(data []byte) (pages []chunker.Page, err error) {
	// The PDF parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: malformed pdf: %v", ErrExtraction, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := pageText(page)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrExtraction, i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, chunker.Page{Number: i, Text: text})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no text content could be extracted from the PDF", ErrExtraction)
	}
	return pages, nil
}

func pageText(page pdf.Page) (string, error) {
	rows, err := page.GetTextByRow()
	if err == nil && len(rows) > 0 {
		var sb strings.Builder
		for _, row := range rows {
			for j, word := range row.Content {
				if j > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(word.S)
			}
			sb.WriteByte('\n')
		}
		return sb.String(), nil
	}
	return page.GetPlainText(nil)
}
