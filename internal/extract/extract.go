// Package extract turns uploaded contract files into plain text.
package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"clausewise/internal/domain"
)

// Router dispatches to a format extractor by file extension.
type Router struct {
	byExt map[string]domain.Extractor
}

// NewRouter returns a router that handles .pdf, .docx and .txt.
func NewRouter() *Router {
	return &Router{byExt: map[string]domain.Extractor{
		".pdf":  PDF{},
		".docx": DOCX{},
		".txt":  Text{},
	}}
}

// Supported reports whether path has an extension the router handles.
func (r *Router) Supported(path string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

func (r *Router) Extract(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	ex, ok := r.byExt[ext]
	if !ok {
		return "", &domain.UnsupportedFormatError{Ext: ext}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return ex.Extract(ctx, path)
}

// Text reads UTF-8 text files.
type Text struct{}

func (Text) Extract(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &domain.ExtractionError{Path: path, Err: err}
	}
	return string(data), nil
}
