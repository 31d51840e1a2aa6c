package model

import (
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/sha3"
)

// QueryKind identifies what a query asks the search service for.
type QueryKind int

const (
	// QuerySearch is a free-text search for the given terms.
	QuerySearch QueryKind = iota

	// QueryCitations lists the works citing the publication behind Ref.
	QueryCitations

	// QueryCluster fetches a single publication by its service cluster id.
	QueryCluster
)

// String returns the query kind name.
func (k QueryKind) String() string {
	switch k {
	case QuerySearch:
		return "search"
	case QueryCitations:
		return "citations"
	case QueryCluster:
		return "cluster"
	default:
		return "unknown"
	}
}

// QueryDescriptor describes one request to the search service.
type QueryDescriptor struct {
	// Kind selects search terms, a citations listing, or a cluster lookup.
	Kind QueryKind

	// Terms holds the search terms for QuerySearch.
	Terms string

	// Ref holds the cited-by reference (QueryCitations) or cluster id (QueryCluster).
	Ref string

	// Cursor is the result offset of the requested page.
	Cursor int
}

// WithCursor returns a copy of the descriptor pointing at another page.
func (q QueryDescriptor) WithCursor(cursor int) QueryDescriptor {
	q.Cursor = cursor
	return q
}

// String returns a short human-readable form for logs.
func (q QueryDescriptor) String() string {
	switch q.Kind {
	case QuerySearch:
		return fmt.Sprintf("search(%q)@%d", q.Terms, q.Cursor)
	default:
		return fmt.Sprintf("%s(%s)@%d", q.Kind, q.Ref, q.Cursor)
	}
}

// RawResultPage is the payload of one successful fetch.
// It is ephemeral: the parser owns it for a single fetch-parse cycle.
type RawResultPage struct {
	// Query is the descriptor that produced this page.
	Query QueryDescriptor

	// URL is the final URL after redirects.
	URL string

	// StatusCode is the HTTP status of the response.
	StatusCode int

	// Body is the raw response content.
	Body []byte

	// Hash is the hex SHA3-256 digest of Body.
	Hash string

	// Attempts is the number of requests issued, including retries.
	Attempts int

	// FetchedAt is when the response was received.
	FetchedAt time.Time
}

// ComputeHash sets Hash from Body.
func (p *RawResultPage) ComputeHash() {
	if len(p.Body) == 0 {
		p.Hash = ""
		return
	}
	sum := sha3.Sum256(p.Body)
	p.Hash = hex.EncodeToString(sum[:])
}

// FrontierEntry is a publication whose citing works are pending expansion.
type FrontierEntry struct {
	// PublicationID is the canonical id of the cited publication.
	PublicationID int64 `json:"publication_id"`

	// CitedByRef is the reference used to request the citing works.
	CitedByRef string `json:"cited_by_ref"`

	// Title is kept for progress output.
	Title string `json:"title"`

	// CitationCount is the reported citation count, used by percentage caps.
	CitationCount *int `json:"citation_count,omitempty"`

	// Depth is the discovery depth of the publication.
	Depth int `json:"depth"`

	// Seq orders entries of equal depth by discovery.
	Seq uint64 `json:"seq"`
}

// FetchRecord is the audit entry written for every finished fetch.
type FetchRecord struct {
	Query      string        `json:"query"`
	URL        string        `json:"url"`
	Outcome    string        `json:"outcome"`
	StatusCode int           `json:"status_code"`
	Attempts   int           `json:"attempts"`
	Hash       string        `json:"hash,omitempty"`
	Duration   time.Duration `json:"duration"`
	FetchedAt  time.Time     `json:"fetched_at"`
}

// FetchOutcomeOK is the Outcome of a successful fetch; failures use the
// FetchKind name.
const FetchOutcomeOK = "ok"
