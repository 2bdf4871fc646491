// Package domainmatch compares a company's website with its admin's email
// domain. Everything here is pure and total: malformed input yields a
// failed extraction or a MANUAL_REVIEW verdict, never a panic.
package domainmatch

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Verdict is the tri-state outcome of a website/email comparison.
type Verdict string

const (
	VerdictMatch        Verdict = "MATCH"
	VerdictMismatch     Verdict = "MISMATCH"
	VerdictManualReview Verdict = "MANUAL_REVIEW"
)

// Comparison carries the verdict and the domains that produced it.
type Comparison struct {
	Verdict       Verdict
	WebsiteDomain string
	EmailDomain   string
}

// Strategy selects how the registrable root of a host is computed.
type Strategy string

const (
	// StrategyLastTwoLabels keeps the last two labels. "acme.co.uk" and
	// "other.co.uk" share the root "co.uk" under this rule.
	StrategyLastTwoLabels Strategy = "last_two_labels"
	// StrategyPublicSuffix uses the public suffix list (eTLD+1).
	StrategyPublicSuffix Strategy = "publicsuffix"
)

// ExtractURLDomain returns the lower-cased host of a website URL without a
// leading "www.". A missing scheme is tolerated.
func ExtractURLDomain(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t\r\n") {
		return "", false
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	host := normalizeHost(u.Hostname())
	if !validHost(host) {
		return "", false
	}
	return host, true
}

// ExtractEmailDomain returns the lower-cased text after the last '@'.
func ExtractEmailDomain(email string) (string, bool) {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "", false
	}
	host := normalizeHost(email[at+1:])
	if !validHost(host) {
		return "", false
	}
	return host, true
}

// RootDomain returns the last two dot-separated labels of domain.
func RootDomain(domain string) string {
	domain = strings.Trim(strings.ToLower(domain), ".")
	labels := strings.Split(domain, ".")
	if len(labels) <= 2 {
		return domain
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// DomainsMatch reports whether both domains share a non-empty root.
func DomainsMatch(a, b string) bool {
	ra, rb := RootDomain(a), RootDomain(b)
	return ra != "" && ra == rb
}

// Compare classifies a website and an email with the default strategy.
func Compare(websiteURL, email string) Comparison {
	return Matcher{}.Compare(websiteURL, email)
}

// Matcher compares domains with a configurable root strategy. The zero
// value uses StrategyLastTwoLabels.
type Matcher struct {
	Strategy Strategy
}

func NewMatcher(strategy Strategy) Matcher {
	return Matcher{Strategy: strategy}
}

// Root returns the registrable root for domain under m's strategy. The
// public suffix strategy falls back to the last two labels for hosts the
// list cannot resolve.
func (m Matcher) Root(domain string) string {
	if m.Strategy == StrategyPublicSuffix {
		if root, err := publicsuffix.EffectiveTLDPlusOne(domain); err == nil {
			return root
		}
	}
	return RootDomain(domain)
}

func (m Matcher) Compare(websiteURL, email string) Comparison {
	site, okSite := ExtractURLDomain(websiteURL)
	mail, okMail := ExtractEmailDomain(email)
	c := Comparison{WebsiteDomain: site, EmailDomain: mail}
	if !okSite || !okMail {
		c.Verdict = VerdictManualReview
		return c
	}
	rs, rm := m.Root(site), m.Root(mail)
	if rs != "" && rs == rm {
		c.Verdict = VerdictMatch
	} else {
		c.Verdict = VerdictMismatch
	}
	return c
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(host, ".")
	return strings.TrimPrefix(host, "www.")
}

// validHost accepts dotted DNS names whose last label contains a letter,
// which rules out bare IPs and single-label hosts.
func validHost(host string) bool {
	if host == "" || len(host) > 253 || !strings.Contains(host, ".") {
		return false
	}
	labels := strings.Split(host, ".")
	for _, label := range labels {
		if label == "" || len(label) > 63 {
			return false
		}
		for _, r := range label {
			if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
				return false
			}
		}
	}
	return strings.ContainsAny(labels[len(labels)-1], "abcdefghijklmnopqrstuvwxyz")
}
