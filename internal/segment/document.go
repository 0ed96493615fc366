package segment

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"icpscout/internal/domain"
)

// TextRun is a contiguous piece of text drawn with one font at one position.
type TextRun struct {
	Text     string
	Font     string
	FontSize float64
	X        float64
	Y        float64
	W        float64
}

// Page holds the text runs of one page in content-stream order.
type Page struct {
	Number int
	Runs   []TextRun
}

// Document is one input file reduced to positioned text.
type Document struct {
	Name  string
	Pages []Page
}

func (d *Document) runCount() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Runs)
	}
	return n
}

// LoadPDF reads the text layer of a PDF. Corrupt files that make the reader
// panic are reported as *domain.ParseError like any other read failure.
func LoadPDF(name string, r io.ReaderAt, size int64) (doc *Document, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			doc = nil
			err = &domain.ParseError{Source: name, Err: fmt.Errorf("reading pdf: %v", rec)}
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, &domain.ParseError{Source: name, Err: err}
	}

	doc = &Document{Name: name}
	for i := 1; i <= reader.NumPage(); i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		doc.Pages = append(doc.Pages, Page{Number: i, Runs: collectRuns(p.Content().Text)})
	}
	if doc.runCount() == 0 {
		return nil, &domain.ParseError{Source: name, Err: domain.ErrNoTextLayer}
	}
	return doc, nil
}

// collectRuns joins the per-glyph texts most PDFs produce into runs.
func collectRuns(texts []pdf.Text) []TextRun {
	var runs []TextRun
	for _, t := range texts {
		if t.S == "" {
			continue
		}
		if n := len(runs); n > 0 {
			last := &runs[n-1]
			end := last.X + last.W
			if last.Font == t.Font &&
				math.Abs(last.FontSize-t.FontSize) < 0.01 &&
				math.Abs(last.Y-t.Y) < 0.5 &&
				t.X >= last.X && t.X-end < t.FontSize*0.1 {
				last.Text += t.S
				last.W = t.X + t.W - last.X
				continue
			}
		}
		runs = append(runs, TextRun{Text: t.S, Font: t.Font, FontSize: t.FontSize, X: t.X, Y: t.Y, W: t.W})
	}
	return runs
}

// LoadFile opens and reads one PDF from disk.
func LoadFile(path string) (*Document, error) {
	name := filepath.Base(path)
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.ParseError{Source: name, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &domain.ParseError{Source: name, Err: err}
	}
	return LoadPDF(name, f, info.Size())
}

// LoadDir reads every *.pdf in dir, in name order. Unreadable files are
// returned in skipped; the call only fails when nothing could be read.
func LoadDir(dir string) (docs []Document, skipped []*domain.ParseError, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("segment.LoadDir %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	if len(paths) == 0 {
		return nil, nil, fmt.Errorf("segment.LoadDir %s: %w", dir, domain.ErrNoInput)
	}

	for _, p := range paths {
		doc, err := LoadFile(p)
		if err != nil {
			var pe *domain.ParseError
			if !errors.As(err, &pe) {
				pe = &domain.ParseError{Source: filepath.Base(p), Err: err}
			}
			skipped = append(skipped, pe)
			continue
		}
		docs = append(docs, *doc)
	}
	if len(docs) == 0 {
		return nil, skipped, fmt.Errorf("segment.LoadDir %s: %w", dir, domain.ErrNoReadableInput)
	}
	return docs, skipped, nil
}
