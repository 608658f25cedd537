package parser

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// IndexName is the storage name used when a URL has no final path segment
const IndexName = "index.html"

const maxNameLength = 250

// NormalizeURL returns the canonical form of an absolute URL used as the
// frontier key: lower-case scheme and host, no fragment, "/" for an empty path.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("invalid URL: %q is not absolute", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" && u.RawPath == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

// DerivedName maps a URL to a filesystem-safe document name taken from its
// final path segment. Names not ending in .html or .htm get .html appended.
func DerivedName(rawURL string) string {
	name := ""
	if u, err := url.Parse(rawURL); err == nil {
		p := u.Path
		if i := strings.LastIndex(p, "/"); i >= 0 {
			p = p[i+1:]
		}
		name = sanitizeName(p)
	}

	if name == "" {
		return IndexName
	}
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	if !strings.HasSuffix(name, ".html") && !strings.HasSuffix(name, ".htm") {
		name += ".html"
	}
	return name
}

func sanitizeName(name string) string {
	if name == "." || name == ".." {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case strings.ContainsRune(`<>:"/\|?*`, r):
			return '_'
		}
		return r
	}, name)
}
