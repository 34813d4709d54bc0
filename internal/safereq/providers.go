// Package safereq rewrites outbound search and video requests so that
// providers serve their safe variants.
package safereq

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ppiankov/contentlock/internal/model"
)

// Provider names.
const (
	Google  = "google"
	Bing    = "bing"
	Yahoo   = "yahoo"
	DDG     = "ddg"
	YouTube = "youtube"
	Tumblr  = "tumblr"
	Reddit  = "reddit"
)

var (
	googleHost  = regexp.MustCompile(`\.google\.[^/]+$`)
	yahooHost   = regexp.MustCompile(`search\.yahoo\.`)
	youtubeHost = regexp.MustCompile(`(^|\.)((youtube|youtu|ytimg|googlevideo)\.com|youtu\.be)$`)
	tumblrHost  = regexp.MustCompile(`(^|\.)tumblr\.com$`)
	redditHost  = regexp.MustCompile(`(^|\.)reddit\.com$`)
)

// paramRule forces one query parameter to a strict value.
type paramRule struct {
	key     string
	strict  string
	relaxed []string
}

type provider struct {
	name  string
	match func(host string) bool
	paths []string
	param *paramRule
}

// providers is evaluated in order; the first match wins.
var providers = []provider{
	{
		name:  Google,
		match: googleHost.MatchString,
		paths: []string{"/search", "/complete/search"},
		param: &paramRule{key: "safe", strict: "active", relaxed: []string{"off", "images", "moderate"}},
	},
	{
		name:  Bing,
		match: func(h string) bool { return strings.HasSuffix(h, ".bing.com") },
		param: &paramRule{key: "adlt", strict: "strict", relaxed: []string{"off", "moderate"}},
	},
	{
		name:  Yahoo,
		match: yahooHost.MatchString,
		param: &paramRule{key: "vm", strict: "r", relaxed: []string{"s", "off"}},
	},
	{
		name:  DDG,
		match: func(h string) bool { return h == "duckduckgo.com" || h == "www.duckduckgo.com" },
		param: &paramRule{key: "kp", strict: "1", relaxed: []string{"-2", "-1", "0"}},
	},
	{name: YouTube, match: youtubeHost.MatchString},
	{name: Tumblr, match: tumblrHost.MatchString},
	{name: Reddit, match: redditHost.MatchString},
}

// ProviderFor returns the provider name handling rawURL, or "".
func ProviderFor(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if p := providerFor(u); p != nil {
		return p.name
	}
	return ""
}

func providerFor(u *url.URL) *provider {
	host := strings.ToLower(u.Hostname())
	for i := range providers {
		p := &providers[i]
		if !p.match(host) {
			continue
		}
		if len(p.paths) > 0 && !pathMatches(u.Path, p.paths) {
			continue
		}
		return p
	}
	return nil
}

func pathMatches(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}

// paramEnabled reports whether URL parameter enforcement is on for name.
func paramEnabled(name string, ps model.Providers) bool {
	switch name {
	case Google:
		return ps.Google.Enabled && ps.Google.UseParam
	case Bing:
		return ps.Bing.Enabled && ps.Bing.UseParam
	case Yahoo:
		return ps.Yahoo.Enabled && ps.Yahoo.UseParam
	case DDG:
		return ps.DDG.Enabled && ps.DDG.UseParam
	default:
		return false
	}
}

func isRelaxed(v string, relaxed []string) bool {
	if v == "" {
		return true
	}
	v = strings.ToLower(v)
	for _, r := range relaxed {
		if v == r {
			return true
		}
	}
	return false
}
