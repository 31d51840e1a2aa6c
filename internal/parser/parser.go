package parser

import (
	"bytes"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/citenet/internal/model"
)

// zeroResultMarkers are lowercase fragments of the service's empty listing message.
var zeroResultMarkers = []string{
	"did not match any articles",
	"did not match any documents",
	"no results found",
}

// Result is what one page yields.
type Result struct {
	// Records are the publications in page order.
	Records []model.RawRecord

	// NextCursor is the offset of the next page, nil on the last page.
	NextCursor *int

	// Skipped counts result blocks dropped for lack of a title.
	Skipped int
}

// Parser extracts publication records from result pages.
// A Parser holds no per-page state and is safe for concurrent use.
//
// Design decision: the DOM is walked with golang.org/x/net/html rather than
// matched with patterns. The markup is frequently malformed and nested
// patterns would break whenever the service adds a wrapper element.
type Parser struct {
	extractors []Extractor
	logger     *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithExtractors replaces the field extractors.
func WithExtractors(extractors ...Extractor) Option {
	return func(p *Parser) {
		p.extractors = extractors
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) {
		p.logger = l
	}
}

// New creates a Parser with DefaultExtractors.
func New(opts ...Option) *Parser {
	p := &Parser{
		extractors: DefaultExtractors(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts the records and the next-page cursor from page.
// It returns a *model.ParseError when the page is not a result listing.
func (p *Parser) Parse(page *model.RawResultPage) (*Result, error) {
	doc, err := html.Parse(bytes.NewReader(page.Body))
	if err != nil {
		return nil, &model.ParseError{URL: page.URL, Reason: fmt.Sprintf("invalid HTML: %v", err)}
	}

	container := findFirst(doc, func(n *html.Node) bool {
		id := getAttr(n, "id")
		return n.Type == html.ElementNode && (id == "gs_res_ccl" || id == "gs_res_ccl_mid")
	})
	blocks := findAll(doc, isResultBlock)

	if container == nil && len(blocks) == 0 && !hasZeroResultMarker(doc) {
		return nil, &model.ParseError{URL: page.URL, Reason: "no result container"}
	}

	result := &Result{
		Records: make([]model.RawRecord, 0, len(blocks)),
	}
	for _, block := range blocks {
		var rec model.RawRecord
		for _, ex := range p.extractors {
			ex.Extract(block, &rec)
		}
		if strings.TrimSpace(rec.Title) == "" {
			result.Skipped++
			p.logger.Debug("skipping result block without title", "url", page.URL)
			continue
		}
		result.Records = append(result.Records, rec)
	}

	result.NextCursor = nextCursor(doc, page.Query.Cursor)

	return result, nil
}

// isResultBlock matches gs_r elements of the organic (gs_or) or
// citation (gs_scl) listing that carry a title heading.
func isResultBlock(n *html.Node) bool {
	if !hasClass(n, "gs_r") || !(hasClass(n, "gs_or") || hasClass(n, "gs_scl")) {
		return false
	}
	return findFirst(n, withClass("gs_rt")) != nil
}

func hasZeroResultMarker(doc *html.Node) bool {
	text := strings.ToLower(textContent(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style")
	}))
	for _, m := range zeroResultMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// nextCursor returns the smallest start= offset larger than current among
// the navigation links. Links in the gs_n/gs_nm navigation are preferred;
// without navigation every link on the page is considered.
func nextCursor(doc *html.Node, current int) *int {
	var anchors []*html.Node
	for _, id := range []string{"gs_n", "gs_nm", "gs_res_ccl_bot"} {
		if nav := findFirst(doc, withID(id)); nav != nil {
			anchors = append(anchors, findAll(nav, isElement("a"))...)
		}
	}
	if len(anchors) == 0 {
		// Result blocks are matched so their links are not descended into.
		for _, n := range findAll(doc, func(n *html.Node) bool {
			return isElement("a")(n) || isResultBlock(n)
		}) {
			if n.Data == "a" {
				anchors = append(anchors, n)
			}
		}
	}

	var next *int
	for _, a := range anchors {
		v := queryParam(getAttr(a, "href"), "start")
		if v == "" {
			continue
		}
		start, err := strconv.Atoi(v)
		if err != nil || start <= current {
			continue
		}
		if next == nil || start < *next {
			s := start
			next = &s
		}
	}
	return next
}
