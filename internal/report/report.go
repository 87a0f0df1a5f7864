// Package report renders a tagged batch as a paginated plain-text risk report.
package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"

	"clausewise/internal/domain"
)

const (
	// Width is the maximum column of any report line.
	Width = 100
	// DefaultPageLines is the number of lines on a page before a form feed.
	DefaultPageLines = 54

	indent = "  "
	// minClauseLines keeps a clause heading from being stranded at the bottom of a page.
	minClauseLines = 6
)

// Renderer writes reports. The zero value is not usable; use New.
type Renderer struct {
	pageLines int
}

func New(pageLines int) *Renderer {
	if pageLines < minClauseLines*2 {
		pageLines = DefaultPageLines
	}
	return &Renderer{pageLines: pageLines}
}

// page tracks the line position and inserts form feeds between pages.
type page struct {
	w     *bufio.Writer
	limit int
	line  int
	pages int
}

func (p *page) writeLine(s string) {
	if p.line >= p.limit {
		p.breakPage()
	}
	p.w.WriteString(s)
	p.w.WriteByte('\n')
	p.line++
}

func (p *page) breakPage() {
	p.w.WriteString("\f")
	p.line = 0
	p.pages++
}

func (p *page) remaining() int { return p.limit - p.line }

// Render writes the report for batch and returns the number of pages written.
func (r *Renderer) Render(w io.Writer, batch domain.TaggedBatch) (int, error) {
	p := &page{w: bufio.NewWriter(w), limit: r.pageLines, pages: 1}

	for _, l := range wrapped("Contract Risk Report: "+batch.Filename, Width) {
		p.writeLine(l)
	}
	p.writeLine("")

	for i, c := range batch.Clauses {
		if i > 0 && p.remaining() < minClauseLines {
			p.breakPage()
		}
		types := strings.ToUpper(strings.Join(c.Categories, ", "))
		for _, l := range wrapped(fmt.Sprintf("Clause %d - Type: %s | Risk: %d", i+1, types, c.RiskScore), Width) {
			p.writeLine(l)
		}
		for _, l := range wrapped("Summary: "+c.Summary, Width) {
			p.writeLine(l)
		}
		p.writeLine("")
		p.writeLine("Original:")
		for _, l := range wrapped(c.Text, Width-len(indent)) {
			p.writeLine(indent + l)
		}
		if c.Suggestion != "" {
			p.writeLine("Suggested Redline:")
			for _, l := range wrapped(c.Suggestion, Width-len(indent)) {
				p.writeLine(indent + l)
			}
		}
		p.writeLine("")
	}

	if err := p.w.Flush(); err != nil {
		return 0, err
	}
	return p.pages, nil
}

// wrapped splits text into lines no wider than width, breaking at spaces where possible.
func wrapped(text string, width int) []string {
	var out []string
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		para = strings.TrimRight(para, " \t")
		if para == "" {
			out = append(out, "")
			continue
		}
		out = append(out, strings.Split(wrap.String(wordwrap.String(para, width), width), "\n")...)
	}
	if len(out) == 0 {
		out = []string{""}
	}
	return out
}
