package policy

import (
	"net/url"
	"strings"

	"github.com/ppiankov/contentlock/internal/model"
)

// Hostname returns the lowercase host of rawURL, or "" when it cannot be
// parsed or has no host.
func Hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// MatchList reports whether rawURL matches any entry. Domain entries match
// the hostname exactly or as a dot-suffix; exact entries match the whole
// URL string. Unparseable URLs match nothing.
func MatchList(rawURL string, entries []model.ListEntry) bool {
	host := Hostname(rawURL)
	if host == "" {
		return false
	}
	for _, e := range entries {
		switch e.Kind {
		case model.ListDomain:
			v := strings.ToLower(strings.TrimSpace(e.Value))
			if v == "" {
				continue
			}
			if host == v || strings.HasSuffix(host, "."+v) {
				return true
			}
		case model.ListExact:
			if rawURL == e.Value {
				return true
			}
		}
	}
	return false
}

// InAllowList reports whether rawURL is on the parental allow-list.
func InAllowList(rawURL string, p *model.Parental) bool {
	return MatchList(rawURL, p.AllowList)
}

// InBlockList reports whether rawURL is on the parental block-list.
func InBlockList(rawURL string, p *model.Parental) bool {
	return MatchList(rawURL, p.BlockList)
}
