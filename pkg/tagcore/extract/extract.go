// Package extract obtains the plain text an article is classified from,
// either inline or by fetching the body from blob storage.
package extract

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/entropia/tagcore/pkg/tagcore/internalerr"
)

// DefaultMaxChars bounds how much text is fed to the classifier.
const DefaultMaxChars = 8000

// Downloader fetches an article body from blob storage.
type Downloader interface {
	Download(ctx context.Context, locator string) ([]byte, error)
}

// Input is either inline text, a storage locator, or both. Inline text wins.
type Input struct {
	Text    string
	Locator string
}

// Extractor is a pure fetch-and-truncate: no side effects.
type Extractor struct {
	Downloader Downloader
	MaxChars   int
}

// Extract returns up to MaxChars characters of plain text for the input.
// Fetched bodies are stripped of HTML markup before truncation.
func (e *Extractor) Extract(ctx context.Context, in Input) (string, error) {
	max := e.MaxChars
	if max <= 0 {
		max = DefaultMaxChars
	}

	if text := strings.TrimSpace(in.Text); text != "" {
		return truncate(text, max), nil
	}

	if in.Locator == "" {
		return "", fmt.Errorf("%w: no inline text and no locator", internalerr.ErrContentUnavailable)
	}
	if e.Downloader == nil {
		return "", fmt.Errorf("%w: no downloader configured", internalerr.ErrContentUnavailable)
	}

	body, err := e.Downloader.Download(ctx, in.Locator)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", internalerr.ErrContentUnavailable, in.Locator, err)
	}

	text := strings.TrimSpace(StripHTML(string(body)))
	if text == "" {
		return "", fmt.Errorf("%w: %s resolved to empty content", internalerr.ErrContentUnavailable, in.Locator)
	}
	return truncate(text, max), nil
}

// StripHTML reduces markup to its text content. Non-HTML input passes
// through unchanged apart from whitespace trimming.
func StripHTML(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.TrimSpace(buf.String())
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
