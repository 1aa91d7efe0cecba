package pdfdoc

import (
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/phuslu/log"

	"github.com/pkukic/margo/pkg/geometry"
)

// TextRun is a horizontal run of text on a page. Rect is in normalized page
// coordinates with the origin at the top-left.
type TextRun struct {
	Text string
	Rect geometry.Rect
}

// baselineEpsilon is the vertical slack, in points, within which two glyphs
// count as sitting on the same line.
const baselineEpsilon = 2.0

func (d *Document) extractRuns(pageNumber int) []TextRun {
	if d.reader == nil || pageNumber < 1 || pageNumber > d.reader.NumPage() {
		return nil
	}
	page := d.reader.Page(pageNumber)
	if page.V.Kind() == pdf.Null {
		return nil
	}

	defer func() {
		// Content parsing panics on some malformed streams.
		if r := recover(); r != nil {
			log.Warn().Int("page", pageNumber).Interface("panic", r).Msg("text extraction failed")
		}
	}()

	return mergeRuns(page.Content().Text, d.PageSize(pageNumber))
}

// mergeRuns groups raw glyph runs into line fragments and converts the PDF's
// bottom-left point coordinates into normalized top-left space.
func mergeRuns(texts []pdf.Text, pageSize geometry.Size) []TextRun {
	if len(texts) == 0 || pageSize.Width <= 0 || pageSize.Height <= 0 {
		return nil
	}

	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if abs(sorted[i].Y-sorted[j].Y) > baselineEpsilon {
			return sorted[i].Y > sorted[j].Y // higher baseline first
		}
		return sorted[i].X < sorted[j].X
	})

	var runs []TextRun
	var sb strings.Builder
	var x0, x1, base, size float64
	flush := func() {
		if sb.Len() == 0 {
			return
		}
		text := strings.TrimSpace(sb.String())
		sb.Reset()
		if text == "" {
			return
		}
		runs = append(runs, TextRun{
			Text: text,
			Rect: geometry.Rect{
				X:      x0 / pageSize.Width,
				Y:      1 - (base+size)/pageSize.Height,
				Width:  (x1 - x0) / pageSize.Width,
				Height: size / pageSize.Height,
			},
		})
	}

	for _, t := range sorted {
		if t.S == "" {
			continue
		}
		h := t.FontSize
		if h <= 0 {
			h = 10
		}
		sameLine := sb.Len() > 0 && abs(t.Y-base) <= baselineEpsilon
		// A gap wider than a third of the glyph height starts a new run.
		adjacent := sameLine && t.X-x1 <= h/3 && t.X >= x0
		if !adjacent {
			flush()
			x0, base, size = t.X, t.Y, h
			x1 = t.X
		}
		sb.WriteString(t.S)
		if t.X+t.W > x1 {
			x1 = t.X + t.W
		}
		if h > size {
			size = h
		}
	}
	flush()
	return runs
}

// RunsInRect returns the page's text runs whose rectangles intersect the
// given normalized region.
func (d *Document) RunsInRect(pageNumber int, region geometry.Rect) []TextRun {
	var hit []TextRun
	for _, run := range d.TextRuns(pageNumber) {
		if run.Rect.Intersects(region) {
			hit = append(hit, run)
		}
	}
	return hit
}

// TextInRect joins the text of all runs intersecting the given normalized
// region, in reading order.
func (d *Document) TextInRect(pageNumber int, region geometry.Rect) string {
	runs := d.RunsInRect(pageNumber, region)
	parts := make([]string, len(runs))
	for i, run := range runs {
		parts[i] = run.Text
	}
	return strings.Join(parts, " ")
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
