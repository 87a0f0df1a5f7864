package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"clausewise/internal/domain"
)

const documentPart = "word/document.xml"

// DOCX reads the main document part of an OOXML file. Paragraphs become lines.
type DOCX struct{}

func (DOCX) Extract(ctx context.Context, path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", &domain.ExtractionError{Path: path, Err: err}
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != documentPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", &domain.ExtractionError{Path: path, Err: err}
		}
		defer rc.Close()
		text, err := paragraphs(ctx, rc)
		if err != nil {
			return "", &domain.ExtractionError{Path: path, Err: err}
		}
		return text, nil
	}
	return "", &domain.ExtractionError{Path: path, Err: fmt.Errorf("missing %s", documentPart)}
}

func paragraphs(ctx context.Context, r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		b      strings.Builder
		inRun  bool
		inText bool
	)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "r":
				inRun = true
			case "t":
				inText = inRun
			case "tab":
				// tab stops in paragraph properties share the element name
				if inRun {
					b.WriteByte('\t')
				}
			case "br", "cr":
				if inRun {
					b.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "r":
				inRun = false
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
