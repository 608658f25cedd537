// Package relevance estimates how relevant a link is to a crawl query.
//
// Scoring runs in strict tiers and stops at the first that yields a nonzero
// result: anchor text, then the href, then the words surrounding the link on
// its source page.
package relevance

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/masahif/focuscrawl/internal/parser"
)

const (
	anchorWordScore = 50
	hrefMatchScore  = 40
	nearWeight      = 4
	contextWindow   = 5
)

var punctuation = strings.NewReplacer(",", "", ".", "", "(", "", ")", "", `"`, "")

// Query is a tokenized relevance query
type Query struct {
	words []string
}

// NewQuery lower-cases raw and splits it on whitespace
func NewQuery(raw string) Query {
	return Query{words: strings.Fields(strings.ToLower(raw))}
}

// Words returns the query's tokens
func (q Query) Words() []string {
	return q.words
}

// IsEmpty reports whether the query has no words
func (q Query) IsEmpty() bool {
	return len(q.words) == 0
}

// Score computes the relevance of anchor, found on a page whose raw markup is
// page, to query. It has no side effects and is deterministic.
func Score(anchor parser.Anchor, page string, query Query) int {
	if query.IsEmpty() {
		return 0
	}

	if n := anchorMatches(anchor.Text, query); n > 0 {
		return n * anchorWordScore
	}

	if hrefMatches(anchor.Href, query) {
		return hrefMatchScore
	}

	return contextScore(anchor.Markup, page, query)
}

func anchorMatches(text string, query Query) int {
	text = strings.ToLower(strings.TrimSpace(text))
	count := 0
	for _, word := range query.words {
		if strings.Contains(text, word) {
			count++
		}
	}
	return count
}

func hrefMatches(href string, query Query) bool {
	href = strings.ToLower(href)
	for _, word := range query.words {
		if strings.Contains(href, word) {
			return true
		}
	}
	return false
}

// contextScore rewards query words near the link (u) more than words found
// anywhere else on the page (v): 4u + (v - u).
func contextScore(markup, page string, query Query) int {
	near, all := Context(markup, page)
	nearText := strings.Join(near, " ")
	allText := strings.Join(all, " ")

	u, v := 0, 0
	for _, word := range query.words {
		if strings.Contains(nearText, word) {
			u++
		}
		if strings.Contains(allText, word) {
			v++
		}
	}
	return nearWeight*u + (v - u)
}

// Context splits the lower-cased page at the first literal occurrence of the
// lower-cased link markup and returns the local window (last five tokens
// before the link, first five after) and every token on either side. When
// the markup does not occur, the whole page counts as "before".
func Context(markup, page string) (near, all []string) {
	lowerPage := strings.ToLower(page)
	before, after := lowerPage, ""
	if markup != "" {
		if b, a, found := strings.Cut(lowerPage, strings.ToLower(markup)); found {
			before, after = b, a
		}
	}

	beforeTokens := tokens(before)
	afterTokens := tokens(after)

	near = make([]string, 0, 2*contextWindow)
	near = append(near, beforeTokens[max(0, len(beforeTokens)-contextWindow):]...)
	near = append(near, afterTokens[:min(contextWindow, len(afterTokens))]...)

	all = make([]string, 0, len(beforeTokens)+len(afterTokens))
	all = append(all, beforeTokens...)
	all = append(all, afterTokens...)
	return near, all
}

// tokens strips tags from a markup fragment, drops ,.()" and splits the
// remaining text on whitespace
func tokens(fragment string) []string {
	if strings.TrimSpace(fragment) == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Fields(punctuation.Replace(fragment))
	}
	return strings.Fields(punctuation.Replace(doc.Text()))
}
