package fetcher

import (
	"errors"
	"net/url"
	"testing"

	"github.com/nao1215/citenet/internal/model"
)

func TestURLBuilder(t *testing.T) {
	t.Parallel()

	b, err := NewURLBuilder("https://scholar.example.org/", 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name  string
		query model.QueryDescriptor
		want  map[string]string
	}{
		{
			name:  "search first page",
			query: model.QueryDescriptor{Kind: model.QuerySearch, Terms: "graph neural networks"},
			want:  map[string]string{"q": "graph neural networks", "as_sdt": "0,5", "num": "20", "start": "", "hl": "en"},
		},
		{
			name:  "citations second page",
			query: model.QueryDescriptor{Kind: model.QueryCitations, Ref: "1234", Cursor: 20},
			want:  map[string]string{"cites": "1234", "as_sdt": "2005", "sciodt": "0,5", "start": "20", "num": "20"},
		},
		{
			name:  "cluster",
			query: model.QueryDescriptor{Kind: model.QueryCluster, Ref: "987"},
			want:  map[string]string{"cluster": "987", "num": "", "start": ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			u, err := url.Parse(b.Build(tt.query))
			if err != nil {
				t.Fatalf("built URL does not parse: %v", err)
			}
			if u.Host != "scholar.example.org" || u.Path != "/scholar" {
				t.Errorf("unexpected URL %s", u)
			}
			values := u.Query()
			for key, want := range tt.want {
				if got := values.Get(key); got != want {
					t.Errorf("%s = %q, want %q", key, got, want)
				}
			}
		})
	}
}

func TestNewURLBuilderInvalid(t *testing.T) {
	t.Parallel()

	for _, base := range []string{"ftp://example.org", "not a url", "/relative"} {
		if _, err := NewURLBuilder(base, 10); !errors.Is(err, ErrInvalidBaseURL) {
			t.Errorf("NewURLBuilder(%q) error = %v, want ErrInvalidBaseURL", base, err)
		}
	}

	b, err := NewURLBuilder("", 0)
	if err != nil {
		t.Fatalf("default base: %v", err)
	}
	if b.PageSize() != DefaultPageSize {
		t.Errorf("PageSize = %d", b.PageSize())
	}
}
