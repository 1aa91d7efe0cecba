package pdfdoc

import (
	"github.com/ledongthuc/pdf"
	"github.com/phuslu/log"

	"github.com/pkukic/margo/pkg/geometry"
)

// Link is a link annotation on a page. Rect is normalized. Exactly one of
// URI and PageNumber is meaningful: external links carry a URI, internal
// links a 1-based target page. Internal links whose destination cannot be
// resolved have PageNumber 0 and are skipped by navigation.
type Link struct {
	Rect       geometry.Rect
	URI        string
	PageNumber int
}

func (d *Document) extractLinks(pageNumber int) []Link {
	if d.reader == nil || pageNumber < 1 || pageNumber > d.reader.NumPage() {
		return nil
	}
	page := d.reader.Page(pageNumber)
	if page.V.Kind() == pdf.Null {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			log.Warn().Int("page", pageNumber).Interface("panic", r).Msg("link extraction failed")
		}
	}()

	annots := page.V.Key("Annots")
	if annots.Kind() != pdf.Array {
		return nil
	}

	pageSize := d.PageSize(pageNumber)
	var links []Link
	for i := 0; i < annots.Len(); i++ {
		annot := annots.Index(i)
		if annot.Kind() != pdf.Dict || annot.Key("Subtype").Name() != "Link" {
			continue
		}
		rect, ok := annotRect(annot.Key("Rect"), pageSize)
		if !ok {
			continue
		}

		link := Link{Rect: rect}
		action := annot.Key("A")
		switch {
		case action.Kind() == pdf.Dict && action.Key("S").Name() == "URI":
			link.URI = action.Key("URI").RawString()
		case action.Kind() == pdf.Dict && action.Key("S").Name() == "GoTo":
			link.PageNumber = destPage(action.Key("D"))
		default:
			link.PageNumber = destPage(annot.Key("Dest"))
		}
		if link.URI == "" && link.PageNumber == 0 {
			continue
		}
		links = append(links, link)
	}
	return links
}

// annotRect converts a PDF [llx lly urx ury] rectangle in points to a
// normalized top-left rect.
func annotRect(v pdf.Value, pageSize geometry.Size) (geometry.Rect, bool) {
	if v.Kind() != pdf.Array || v.Len() != 4 || pageSize.Width <= 0 || pageSize.Height <= 0 {
		return geometry.Rect{}, false
	}
	llx, lly := v.Index(0).Float64(), v.Index(1).Float64()
	urx, ury := v.Index(2).Float64(), v.Index(3).Float64()
	if urx < llx {
		llx, urx = urx, llx
	}
	if ury < lly {
		lly, ury = ury, lly
	}
	return geometry.Rect{
		X:      llx / pageSize.Width,
		Y:      1 - ury/pageSize.Height,
		Width:  (urx - llx) / pageSize.Width,
		Height: (ury - lly) / pageSize.Height,
	}, true
}

// destPage resolves an explicit destination array to a 1-based page number.
// Only integer page entries resolve; indirect page references and named
// destinations return 0.
func destPage(dest pdf.Value) int {
	if dest.Kind() != pdf.Array || dest.Len() == 0 {
		return 0
	}
	first := dest.Index(0)
	if first.Kind() != pdf.Integer {
		return 0
	}
	return int(first.Int64()) + 1
}
