// Package extract pulls plain text out of uploaded résumé documents.
package extract

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

const pdfMIME = "application/pdf"

// File is a readable, sized document such as a staged upload.
type File interface {
	io.ReaderAt
	Stat() (os.FileInfo, error)
}

// PDF extracts text from PDF documents page by page.
type PDF struct{}

// Extract returns the concatenated text of every page in order.
// Malformed, non-PDF or text-less input yields an *ExtractionError.
func (PDF) Extract(f File) (text string, err error) {
	info, err := f.Stat()
	if err != nil {
		return "", &ExtractionError{Reason: "cannot stat document", Err: err}
	}

	size := info.Size()
	if size == 0 {
		return "", &ExtractionError{Reason: "document is empty"}
	}

	mtype, err := mimetype.DetectReader(io.NewSectionReader(f, 0, size))
	if err != nil {
		return "", &ExtractionError{Reason: "cannot detect content type", Err: err}
	}
	if !mtype.Is(pdfMIME) {
		return "", &ExtractionError{Reason: fmt.Sprintf("content is %s, not a pdf document", mtype.String())}
	}

	// The pdf reader panics on some malformed documents.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &ExtractionError{Reason: "malformed pdf document", Err: fmt.Errorf("%v", r)}
		}
	}()

	reader, err := pdf.NewReader(f, size)
	if err != nil {
		return "", &ExtractionError{Reason: "cannot open pdf document", Err: err}
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", &ExtractionError{Reason: fmt.Sprintf("cannot read page %d", i), Err: err}
		}
		b.WriteString(content)
	}

	text = b.String()
	if strings.TrimSpace(text) == "" {
		return "", &ExtractionError{Reason: "document contains no text"}
	}

	return text, nil
}
