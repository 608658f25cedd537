// Package parser provides HTML parsing and link extraction capabilities.
// It extracts every anchor of a document together with its literal source
// markup, which the relevance scorer uses to locate the link's context.
package parser

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// HTMLParser extracts anchors and metadata from HTML
type HTMLParser struct {
	baseURL        *url.URL
	allowedSchemes []string
}

// ParseResult contains the parsed HTML data
type ParseResult struct {
	Title       string
	ContentHash string
	Anchors     []Anchor
}

// Anchor represents one <a> element of the source document
type Anchor struct {
	Href   string // Raw href attribute value
	URL    string // Absolute, normalized target URL
	Text   string // Visible text, entity-decoded and trimmed
	Markup string // Literal source markup from "<a" through "</a>"
}

// NewHTMLParser creates a new HTML parser with default allowed schemes
func NewHTMLParser(baseURL string) (*HTMLParser, error) {
	return NewHTMLParserWithSchemes(baseURL, []string{"http", "https"})
}

// NewHTMLParserWithSchemes creates a new HTML parser with custom allowed schemes
func NewHTMLParserWithSchemes(baseURL string, allowedSchemes []string) (*HTMLParser, error) {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if !parsedURL.IsAbs() {
		return nil, fmt.Errorf("invalid base URL: %q is not absolute", baseURL)
	}

	if len(allowedSchemes) == 0 {
		allowedSchemes = []string{"http", "https"}
	}

	return &HTMLParser{
		baseURL:        parsedURL,
		allowedSchemes: allowedSchemes,
	}, nil
}

// openAnchor tracks an anchor whose end tag has not been seen yet
type openAnchor struct {
	href  string
	start int
	text  strings.Builder
}

// Parse tokenizes the document and returns its followable anchors in
// document order. Unclosed anchors end where the next anchor starts or at
// end of input, mirroring how browsers recover from such markup.
func (p *HTMLParser) Parse(content []byte) (*ParseResult, error) {
	result := &ParseResult{
		Anchors: []Anchor{},
	}

	z := html.NewTokenizer(bytes.NewReader(content))
	offset := 0
	var current *openAnchor
	inTitle := false

	closeAnchor := func(end int) {
		if current == nil {
			return
		}
		p.appendAnchor(result, current, string(content[current.start:end]))
		current = nil
	}

	for {
		tt := z.Next()
		raw := len(z.Raw())
		start := offset
		offset += raw

		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("failed to tokenize HTML: %w", err)
			}
			closeAnchor(len(content))
			result.ContentHash = fmt.Sprintf("%x", sha256.Sum256(content))
			return result, nil

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "a":
				closeAnchor(start)
				href, ok := attr(tok, "href")
				if !ok {
					continue
				}
				current = &openAnchor{href: href, start: start}
				if tt == html.SelfClosingTagToken {
					closeAnchor(offset)
				}
			case "title":
				inTitle = tt == html.StartTagToken
			}

		case html.EndTagToken:
			tok := z.Token()
			switch tok.Data {
			case "a":
				closeAnchor(offset)
			case "title":
				inTitle = false
			}

		case html.TextToken:
			text := z.Token().Data
			if current != nil {
				current.text.WriteString(text)
			}
			if inTitle && result.Title == "" {
				result.Title = strings.TrimSpace(text)
			}
		}
	}
}

// appendAnchor resolves an anchor's href and keeps it when followable
func (p *HTMLParser) appendAnchor(result *ParseResult, a *openAnchor, markup string) {
	absURL, err := p.resolveURL(a.href)
	if err != nil {
		return
	}
	if !p.IsAllowedScheme(absURL) {
		return
	}

	result.Anchors = append(result.Anchors, Anchor{
		Href:   a.href,
		URL:    absURL,
		Text:   strings.TrimSpace(a.text.String()),
		Markup: markup,
	})
}

// resolveURL converts relative URLs to absolute, normalized URLs
func (p *HTMLParser) resolveURL(href string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return NormalizeURL(p.baseURL.ResolveReference(u).String())
}

// IsAllowedScheme reports whether absURL uses one of the parser's schemes
func (p *HTMLParser) IsAllowedScheme(absURL string) bool {
	u, err := url.Parse(absURL)
	if err != nil {
		return false
	}
	for _, scheme := range p.allowedSchemes {
		if strings.EqualFold(u.Scheme, scheme) {
			return true
		}
	}
	return false
}

func attr(tok html.Token, key string) (string, bool) {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
