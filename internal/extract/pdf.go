package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"clausewise/internal/domain"
)

// PDF extracts the plain text of every page, one page per line block.
type PDF struct{}

func (PDF) Extract(ctx context.Context, path string) (text string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &domain.ExtractionError{Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", &domain.ExtractionError{Path: path, Err: err}
	}

	// the reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			text, err = "", &domain.ExtractionError{Path: path, Err: fmt.Errorf("malformed pdf: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return "", &domain.ExtractionError{Path: path, Err: err}
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", &domain.ExtractionError{Path: path, Err: fmt.Errorf("page %d: %w", i, err)}
		}
		b.WriteString(pageText)
		b.WriteString("\n")
	}
	return b.String(), nil
}
