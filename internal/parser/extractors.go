package parser

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/citenet/internal/model"
)

// Extractor fills one group of fields of a record from a result block.
// Extractors are independent: each reads the block on its own and leaves
// its fields untouched when it finds nothing.
type Extractor interface {
	Name() string
	Extract(block *html.Node, rec *model.RawRecord)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc struct {
	name string
	fn   func(block *html.Node, rec *model.RawRecord)
}

// NewExtractor returns an Extractor named name that calls fn.
func NewExtractor(name string, fn func(block *html.Node, rec *model.RawRecord)) ExtractorFunc {
	return ExtractorFunc{name: name, fn: fn}
}

// Name implements Extractor.
func (e ExtractorFunc) Name() string { return e.name }

// Extract implements Extractor.
func (e ExtractorFunc) Extract(block *html.Node, rec *model.RawRecord) { e.fn(block, rec) }

// DefaultExtractors returns the extractors for the service's result markup.
func DefaultExtractors() []Extractor {
	return []Extractor{
		NewExtractor("title", extractTitle),
		NewExtractor("source_id", extractSourceID),
		NewExtractor("byline", extractByline),
		NewExtractor("cited_by", extractCitedBy),
		NewExtractor("related", extractRelated),
	}
}

// typeMarker matches leading "[PDF]", "[HTML]", "[CITATION]" style tags.
var typeMarker = regexp.MustCompile(`^(\[[A-Z]+\]\s*)+`)

// extractTitle reads the gs_rt heading, dropping file type tags.
func extractTitle(block *html.Node, rec *model.RawRecord) {
	heading := findFirst(block, withClass("gs_rt"))
	if heading == nil {
		return
	}
	title := textContent(heading, func(n *html.Node) bool {
		return hasClass(n, "gs_ctc") || hasClass(n, "gs_ctg") || hasClass(n, "gs_ctg2") ||
			hasClass(n, "gs_ct1") || hasClass(n, "gs_ct2")
	})
	rec.Title = strings.TrimSpace(typeMarker.ReplaceAllString(title, ""))
}

// extractSourceID prefers the block's data-cid, then a cluster link, then data-did.
func extractSourceID(block *html.Node, rec *model.RawRecord) {
	if cid := getAttr(block, "data-cid"); cid != "" {
		rec.SourceID = cid
		return
	}
	for _, a := range footerLinks(block) {
		if v := queryParam(getAttr(a, "href"), "cluster"); v != "" {
			rec.SourceID = v
			return
		}
	}
	if did := getAttr(block, "data-did"); did != "" {
		rec.SourceID = did
	}
}

// extractByline reads the "authors - venue, year - host" line.
func extractByline(block *html.Node, rec *model.RawRecord) {
	line := findFirst(block, withClass("gs_a"))
	if line == nil {
		return
	}
	text := textContent(line, nil)
	if text == "" {
		return
	}

	segments := splitByline(text)
	rec.AuthorText = segments[0]
	rec.Authors = splitAuthors(segments[0])

	if len(segments) > 1 {
		rec.VenueYearText = segments[1]
		rec.Year = ExtractYear(segments[1])
		rec.Venue = venueOf(segments[1])
	} else {
		// A byline without separators may still carry the year.
		rec.Year = ExtractYear(segments[0])
	}
}

// splitByline splits on " - " while keeping hyphenated names intact.
func splitByline(text string) []string {
	parts := strings.Split(text, " - ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func splitAuthors(s string) []string {
	var authors []string
	for _, a := range strings.Split(ellipsis.Replace(s), ",") {
		if a = strings.TrimSpace(a); a != "" {
			authors = append(authors, a)
		}
	}
	return authors
}

var ellipsis = strings.NewReplacer("…", "", "...", "")

var trailingYear = regexp.MustCompile(`[,\s]*\b[12][0-9]{3}\s*$`)

// venueOf strips the trailing year from "Venue, 2010".
func venueOf(s string) string {
	venue := strings.TrimSpace(trailingYear.ReplaceAllString(s, ""))
	venue = strings.TrimSpace(ellipsis.Replace(venue))
	return strings.Trim(venue, ", ")
}

// extractCitedBy reads the "Cited by N" footer link.
func extractCitedBy(block *html.Node, rec *model.RawRecord) {
	for _, a := range footerLinks(block) {
		ref := queryParam(getAttr(a, "href"), "cites")
		if ref == "" {
			continue
		}
		rec.CitedByRef = ref
		rec.CitationText = textContent(a, nil)
		rec.CitationCount = ExtractCount(rec.CitationText)
		return
	}
}

// extractRelated reads the "related:<id>:" reference of the related-articles link.
func extractRelated(block *html.Node, rec *model.RawRecord) {
	for _, a := range footerLinks(block) {
		q := queryParam(getAttr(a, "href"), "q")
		rest, ok := strings.CutPrefix(q, "related:")
		if !ok {
			continue
		}
		id, _, _ := strings.Cut(rest, ":")
		if id != "" {
			rec.RelatedRef = id
			return
		}
	}
}

// footerLinks returns the anchors of the block's gs_fl rows, or every
// anchor of the block when it has none.
func footerLinks(block *html.Node) []*html.Node {
	var links []*html.Node
	for _, fl := range findAll(block, withClass("gs_fl")) {
		links = append(links, findAll(fl, isElement("a"))...)
	}
	if len(links) == 0 {
		links = findAll(block, isElement("a"))
	}
	return links
}

// queryParam returns the named parameter of a possibly relative href.
func queryParam(href, name string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(html.UnescapeString(href))
	if err != nil {
		return ""
	}
	return u.Query().Get(name)
}
