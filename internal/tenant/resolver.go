// Package tenant derives the tenant identity of a visiting host and picks the
// application that host loads.
package tenant

import (
	"net"
	"strings"

	"golang.org/x/net/publicsuffix"
)

const localhost = "localhost"

// DefaultPublicSuffixes lists the two-label public suffixes recognized when no
// configuration overrides them.
var DefaultPublicSuffixes = []string{"co.id", "com.au", "org.uk", "gov.uk", "co.uk", "ac.id", "or.id", "go.id", "com.sg"}

// Resolver maps host strings to tenant subdomains and base domains. It holds
// no mutable state and is safe for concurrent use.
type Resolver struct {
	suffixes        map[string]struct{}
	usePublicSuffix bool
}

// Option customizes a Resolver
type Option func(*Resolver)

// WithPublicSuffixes replaces the known two-label public suffix list
func WithPublicSuffixes(suffixes ...string) Option {
	return func(r *Resolver) {
		r.suffixes = make(map[string]struct{}, len(suffixes))
		for _, s := range suffixes {
			s = strings.ToLower(strings.Trim(strings.TrimSpace(s), "."))
			if s != "" {
				r.suffixes[s] = struct{}{}
			}
		}
	}
}

// UsePublicSuffixList consults the ICANN public suffix list for suffixes the
// configured list does not know.
func UsePublicSuffixList(enabled bool) Option {
	return func(r *Resolver) {
		r.usePublicSuffix = enabled
	}
}

// NewResolver creates a resolver with the default suffix list and the given options
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{}
	WithPublicSuffixes(DefaultPublicSuffixes...)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewResolverFromConfig creates a resolver from the tenant configuration
func NewResolverFromConfig(cfg *Config) *Resolver {
	if cfg == nil {
		return NewResolver()
	}
	opts := []Option{UsePublicSuffixList(cfg.UsePublicSuffixList)}
	if len(cfg.PublicSuffixes) > 0 {
		opts = append(opts, WithPublicSuffixes(cfg.PublicSuffixes...))
	}
	return NewResolver(opts...)
}

// SubdomainOf returns the tenant label of host, if any. "www.acme.example.com"
// yields "acme", "www.example.com" and "localhost" yield none.
func (r *Resolver) SubdomainOf(host string) (string, bool) {
	labels := splitLabels(stripPort(host))
	if len(labels) < 2 {
		return "", false
	}
	if labels[0] == "www" {
		if len(labels) > 2 {
			return labels[1], true
		}
		return "", false
	}
	return labels[0], true
}

// BaseDomainOf returns the registrable domain of host with tenant labels
// stripped. Single-label or malformed hosts are returned unchanged.
func (r *Resolver) BaseDomainOf(host string) string {
	bare := stripPort(host)
	if bare == localhost {
		return bare
	}
	labels := splitLabels(bare)
	if len(labels) < 2 {
		return host
	}
	for _, l := range labels {
		if l == "" {
			return host
		}
	}

	lastTwo := strings.Join(labels[len(labels)-2:], ".")
	if _, known := r.suffixes[strings.ToLower(lastTwo)]; known {
		if len(labels) >= 3 {
			return strings.Join(labels[len(labels)-3:], ".")
		}
		return bare
	}

	if r.usePublicSuffix {
		if etld1, err := publicsuffix.EffectiveTLDPlusOne(bare); err == nil {
			return etld1
		}
	}
	return lastTwo
}

func stripPort(host string) string {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func splitLabels(host string) []string {
	if host == "" {
		return nil
	}
	return strings.Split(host, ".")
}
