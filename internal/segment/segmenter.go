// Package segment turns positioned PDF text into an ordered sequence of
// role-tagged blocks.
package segment

import (
	"cmp"
	"iter"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"icpscout/internal/domain"
	"icpscout/internal/textutil"
)

// Options tune line grouping and heading detection.
type Options struct {
	// HeadingRatio is the font size multiple of the body size at which a
	// line counts as a heading.
	HeadingRatio float64
	// ColumnGap is the horizontal gap, in points, that splits a line into cells.
	ColumnGap float64
	// LineTolerance is the baseline difference, in points, still treated as one line.
	LineTolerance float64
}

// DefaultOptions returns the tuned defaults.
func DefaultOptions() Options {
	return Options{HeadingRatio: 1.2, ColumnGap: 40, LineTolerance: 2}
}

// Segmenter converts documents into RawBlocks. It holds no per-run state,
// so the same value may be used for any number of passes.
type Segmenter struct {
	opts Options
}

// New creates a Segmenter. Zero options fall back to the defaults.
func New(opts Options) *Segmenter {
	def := DefaultOptions()
	if opts.HeadingRatio <= 1 {
		opts.HeadingRatio = def.HeadingRatio
	}
	if opts.ColumnGap <= 0 {
		opts.ColumnGap = def.ColumnGap
	}
	if opts.LineTolerance <= 0 {
		opts.LineTolerance = def.LineTolerance
	}
	return &Segmenter{opts: opts}
}

// Blocks yields the blocks of docs in reading order: document, page,
// top-to-bottom line, left-to-right cell. Each call to the returned
// sequence starts again from the first block.
func (s *Segmenter) Blocks(docs []Document) iter.Seq[domain.RawBlock] {
	return func(yield func(domain.RawBlock) bool) {
		seq := 0
		for di := range docs {
			doc := &docs[di]
			body := bodySize(doc)
			for _, page := range doc.Pages {
				for li, line := range s.lines(page.Runs) {
					cells := s.cells(line)
					for ci, c := range cells {
						text := textutil.Normalize(c.text)
						if text == "" {
							continue
						}
						b := domain.RawBlock{
							Seq:      seq,
							Text:     text,
							FontSize: c.size,
							Font:     c.font,
							Bold:     isBold(c.font),
							Page:     page.Number,
							X:        c.x,
							Y:        c.y,
							Line:     li,
							Column:   ci,
							Source:   doc.Name,
							DocIndex: di,
						}
						b.Role = s.classify(b, body, len(cells))
						seq++
						if !yield(b) {
							return
						}
					}
				}
			}
		}
	}
}

// Segment collects Blocks into a slice.
func (s *Segmenter) Segment(docs []Document) []domain.RawBlock {
	return slices.Collect(s.Blocks(docs))
}

// lines groups runs sharing a baseline. PDF coordinates grow upwards, so
// the first line has the largest Y.
func (s *Segmenter) lines(runs []TextRun) [][]TextRun {
	sorted := slices.Clone(runs)
	slices.SortStableFunc(sorted, func(a, b TextRun) int { return cmp.Compare(b.Y, a.Y) })

	var out [][]TextRun
	var lineY float64
	for _, r := range sorted {
		if n := len(out); n > 0 && math.Abs(r.Y-lineY) <= s.opts.LineTolerance {
			out[n-1] = append(out[n-1], r)
			continue
		}
		out = append(out, []TextRun{r})
		lineY = r.Y
	}
	for _, line := range out {
		slices.SortStableFunc(line, func(a, b TextRun) int { return cmp.Compare(a.X, b.X) })
	}
	return out
}

type cell struct {
	text string
	font string
	size float64
	x    float64
	y    float64
}

// cells splits a line at gaps wider than ColumnGap and inserts spaces at
// word-sized gaps.
func (s *Segmenter) cells(line []TextRun) []cell {
	var out []cell
	var b strings.Builder
	var cur cell
	var end float64

	flush := func() {
		cur.text = b.String()
		out = append(out, cur)
		b.Reset()
	}

	for i, r := range line {
		gap := r.X - end
		switch {
		case i == 0:
		case gap > s.opts.ColumnGap:
			flush()
		case gap > r.FontSize*0.25:
			b.WriteByte(' ')
		}
		if i == 0 || gap > s.opts.ColumnGap {
			cur = cell{font: r.Font, size: r.FontSize, x: r.X, y: r.Y}
		}
		if r.FontSize > cur.size {
			cur.size = r.FontSize
		}
		b.WriteString(r.Text)
		end = max(end, r.X+runWidth(r))
	}
	if len(line) > 0 {
		flush()
	}
	return out
}

func runWidth(r TextRun) float64 {
	if r.W > 0 {
		return r.W
	}
	return float64(utf8.RuneCountInString(r.Text)) * r.FontSize * 0.5
}

// bodySize is the character-weighted most common font size of a document,
// rounded to half points. Ties go to the smaller size.
func bodySize(doc *Document) float64 {
	weights := map[float64]int{}
	for _, p := range doc.Pages {
		for _, r := range p.Runs {
			weights[math.Round(r.FontSize*2)/2] += utf8.RuneCountInString(strings.TrimSpace(r.Text))
		}
	}
	var best float64
	bestN := -1
	for size, n := range weights {
		if n > bestN || (n == bestN && size < best) {
			best, bestN = size, n
		}
	}
	return best
}

func isBold(font string) bool {
	f := strings.ToLower(font)
	for _, w := range []string{"bold", "black", "heavy", "semibold"} {
		if strings.Contains(f, w) {
			return true
		}
	}
	return false
}
