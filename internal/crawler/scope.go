package crawler

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/masahif/focuscrawl/internal/config"
)

// ScopeFilter limits which discovered links may enter the frontier
type ScopeFilter struct {
	mode       string
	seedSite   string // scheme://host of the seed
	seedDomain string // registrable domain of the seed
}

// NewScopeFilter builds a filter for the given mode relative to seedURL
func NewScopeFilter(mode, seedURL string) (*ScopeFilter, error) {
	u, err := url.Parse(seedURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid seed URL %q", seedURL)
	}

	switch mode {
	case "", config.ScopeAny:
		mode = config.ScopeAny
	case config.ScopeHost, config.ScopeDomain:
	default:
		return nil, config.ErrInvalidScope
	}

	return &ScopeFilter{
		mode:       mode,
		seedSite:   site(u),
		seedDomain: registrableDomain(u.Hostname()),
	}, nil
}

// InScope reports whether rawURL may be crawled
func (s *ScopeFilter) InScope(rawURL string) bool {
	if s.mode == config.ScopeAny {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	switch s.mode {
	case config.ScopeHost:
		return site(u) == s.seedSite
	case config.ScopeDomain:
		return registrableDomain(u.Hostname()) == s.seedDomain
	}
	return false
}

func site(u *url.URL) string {
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

// registrableDomain returns the eTLD+1 of host. IP addresses and hosts
// without a public suffix are returned unchanged.
func registrableDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if net.ParseIP(host) != nil {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}
