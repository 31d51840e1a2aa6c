package fetcher

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/nao1215/citenet/internal/model"
)

// DefaultBaseURL is the public endpoint of the search service.
const DefaultBaseURL = "https://scholar.google.com"

// DefaultPageSize is the number of results requested per page.
// The service caps listings at 20 results per page for most sessions.
const DefaultPageSize = 10

// URLBuilder turns query descriptors into request URLs.
type URLBuilder struct {
	base     *url.URL
	pageSize int
}

// NewURLBuilder validates base and returns a builder.
func NewURLBuilder(base string, pageSize int) (*URLBuilder, error) {
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, base)
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &URLBuilder{base: u, pageSize: pageSize}, nil
}

// PageSize returns the number of results requested per page.
func (b *URLBuilder) PageSize() int {
	return b.pageSize
}

// Build returns the URL for q.
func (b *URLBuilder) Build(q model.QueryDescriptor) string {
	v := url.Values{}
	v.Set("hl", "en")

	switch q.Kind {
	case model.QuerySearch:
		v.Set("q", q.Terms)
		v.Set("as_sdt", "0,5")
	case model.QueryCitations:
		v.Set("cites", q.Ref)
		v.Set("as_sdt", "2005")
		v.Set("sciodt", "0,5")
	case model.QueryCluster:
		v.Set("cluster", q.Ref)
	}

	if q.Kind != model.QueryCluster {
		if q.Cursor > 0 {
			v.Set("start", strconv.Itoa(q.Cursor))
		}
		v.Set("num", strconv.Itoa(b.pageSize))
	}

	u := *b.base
	u.Path = strings.TrimRight(u.Path, "/") + "/scholar"
	u.RawQuery = v.Encode()
	return u.String()
}
