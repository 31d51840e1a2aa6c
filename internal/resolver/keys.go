package resolver

import (
	"strings"
	"unicode/utf8"

	"github.com/nao1215/citenet/internal/model"
)

// keys are the normalized matching keys of one publication.
type keys struct {
	sourceID string
	title    string
	author   string
	year     *int
}

func (r *Resolver) keysOf(title string, authors []string, year *int, sourceID string) keys {
	k := keys{
		sourceID: sourceID,
		year:     year,
	}
	if t := model.NormalizeText(title); utf8.RuneCountInString(t) >= r.cfg.MinTitleLength {
		k.title = t
	}
	if len(authors) > 0 {
		k.author = r.authorKey(authors[0])
	}
	return k
}

// authorKey normalizes a display name such as "Y LeCun" or "LeCun, Yann".
func (r *Resolver) authorKey(name string) string {
	if r.cfg.AuthorKey == AuthorKeyFull {
		return model.NormalizeText(name)
	}
	if surname, _, ok := strings.Cut(name, ","); ok {
		return model.NormalizeText(surname)
	}
	fields := strings.Fields(model.NormalizeText(name))
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func titleAuthorKey(k keys) string {
	if k.title == "" || k.author == "" {
		return ""
	}
	return k.title + "\x00" + k.author
}
