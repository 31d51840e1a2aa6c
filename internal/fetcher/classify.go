package fetcher

import (
	"bytes"
	"net/http"
	"slices"
	"strings"

	"github.com/nao1215/citenet/internal/model"
	"golang.org/x/net/html"
)

// blockIDPrefixes are element ids the service uses on its automated access
// pages.
var blockIDPrefixes = []string{"captcha", "gs_captcha"}

// blockPhrases are lowercase sentences of the automated access pages. They
// are only searched in text outside result blocks, since publication titles
// may contain the same words.
var blockPhrases = []string{
	"unusual traffic from your computer network",
	"but your computer or network may be sending automated queries",
	"please show you're not a robot",
	"i'm not a robot",
}

// blockedBody is the body of the service's bare 403 block response.
var blockedBody = []byte("/+/+/+/+/+")

// classification is the verdict on one response.
type classification struct {
	ok     bool
	kind   model.FetchKind
	reason string
}

// classifyResponse decides how a completed HTTP exchange is treated.
// finalPath is the path of the last request after redirects.
func classifyResponse(status int, finalPath string, body []byte) classification {
	if strings.Contains(finalPath, "/sorry") {
		return classification{kind: model.FetchBlocked, reason: "redirected to block page"}
	}

	switch {
	case status == http.StatusForbidden:
		return classification{kind: model.FetchBlocked, reason: "access forbidden"}
	case status == http.StatusTooManyRequests, status == http.StatusServiceUnavailable:
		return classification{kind: model.FetchThrottled, reason: http.StatusText(status)}
	case status == http.StatusNotFound, status == http.StatusGone:
		return classification{kind: model.FetchNotFound, reason: http.StatusText(status)}
	case status >= 500:
		return classification{kind: model.FetchTransient, reason: http.StatusText(status)}
	case status >= 200 && status < 300:
		if marker := findBlockMarker(body); marker != "" {
			return classification{kind: model.FetchBlocked, reason: "block marker " + strconvQuote(marker)}
		}
		return classification{ok: true}
	default:
		// Unexpected 3xx/4xx are not a systemic condition; retry them.
		return classification{kind: model.FetchTransient, reason: "unexpected status " + http.StatusText(status)}
	}
}

// findBlockMarker reports the first sign of an automated access page in body,
// or "" for an ordinary page. Result blocks (class gs_r) are skipped entirely.
func findBlockMarker(body []byte) string {
	if bytes.Contains(body, blockedBody) {
		return string(blockedBody)
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var (
		text   strings.Builder
		marker string
	)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if marker != "" {
			return
		}
		switch n.Type {
		case html.TextNode:
			text.WriteString(n.Data)
			text.WriteByte(' ')
			return
		case html.ElementNode:
			if hasClassToken(n, "gs_r") {
				return
			}
			if m := structuralMarker(n); m != "" {
				marker = m
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if marker != "" {
		return marker
	}

	visible := strings.Join(strings.Fields(strings.ToLower(text.String())), " ")
	visible = strings.ReplaceAll(visible, "’", "'")
	for _, p := range blockPhrases {
		if strings.Contains(visible, p) {
			return p
		}
	}
	return ""
}

// structuralMarker checks one element for captcha ids and reCAPTCHA widgets.
func structuralMarker(n *html.Node) string {
	for _, a := range n.Attr {
		v := strings.ToLower(a.Val)
		switch a.Key {
		case "id":
			for _, p := range blockIDPrefixes {
				if strings.HasPrefix(v, p) {
					return `id="` + p
				}
			}
		case "class":
			if strings.Contains(v, "g-recaptcha") {
				return "g-recaptcha"
			}
		case "src":
			if (n.Data == "script" || n.Data == "iframe") && strings.Contains(v, "recaptcha") {
				return "recaptcha"
			}
		}
	}
	return ""
}

func hasClassToken(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" && slices.Contains(strings.Fields(a.Val), class) {
			return true
		}
	}
	return false
}

func strconvQuote(s string) string {
	return `"` + s + `"`
}
