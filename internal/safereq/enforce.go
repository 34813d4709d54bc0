package safereq

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/ppiankov/contentlock/internal/model"
	"github.com/ppiankov/contentlock/internal/policy"
)

// Header names set by the sanitizer.
const (
	HeaderPrefer          = "Prefer"
	HeaderYouTubeRestrict = "YouTube-Restrict"
)

// Resource types, following the browser's request classification.
const (
	MainFrame = "main_frame"
	SubFrame  = "sub_frame"
	Other     = "other"
)

// Active reports whether rewriting applies: either enabled outright or
// forced by a running self-lock.
func Active(state *model.PolicyState) bool {
	srm := &state.SafeRequestMode
	return srm.Enabled || (state.SelfLock.Active && srm.ForceUnderSelfLock)
}

// ShouldProcess skips extension-internal URLs.
func ShouldProcess(rawURL string) bool {
	return !strings.HasPrefix(rawURL, "moz-extension://") && !strings.HasPrefix(rawURL, "chrome-extension://")
}

// EnforceURL forces the strict query parameter for the matching search
// provider. It returns the possibly rewritten URL and whether it changed.
func EnforceURL(rawURL string, cfg model.SafeRequestMode) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL, false
	}
	p := providerFor(u)
	if p == nil || p.param == nil || !paramEnabled(p.name, cfg.Providers) {
		return rawURL, false
	}

	changed := false
	q := u.Query()
	if isRelaxed(q.Get(p.param.key), p.param.relaxed) {
		q.Set(p.param.key, p.param.strict)
		u.RawQuery = q.Encode()
		changed = true
	}
	if p.name == Bing && cfg.Providers.Bing.UseRedirect && strings.EqualFold(u.Hostname(), "www.bing.com") {
		u.Host = "strict.bing.com"
		if port := u.Port(); port != "" {
			u.Host += ":" + port
		}
		changed = true
	}
	if !changed {
		return rawURL, false
	}
	return u.String(), true
}

// EnforceHeaders sets Prefer: safe and, for YouTube hosts, the
// YouTube-Restrict header. It reports whether h changed.
func EnforceHeaders(h http.Header, rawURL string, cfg model.SafeRequestMode) bool {
	changed := false
	if cfg.AddPreferSafeHeader && h.Get(HeaderPrefer) != "safe" {
		h.Set(HeaderPrefer, "safe")
		changed = true
	}
	yt := cfg.Providers.YouTube
	if yt.Enabled && ProviderFor(rawURL) == YouTube {
		v := "Moderate"
		if yt.HeaderMode == "strict" {
			v = "Strict"
		}
		if h.Get(HeaderYouTubeRestrict) != v {
			h.Set(HeaderYouTubeRestrict, v)
			changed = true
		}
	}
	return changed
}

// Plan is the rewrite to apply to one request.
type Plan struct {
	Apply       bool              `json:"apply"`
	Reason      string            `json:"reason,omitempty"`
	RedirectURL string            `json:"redirectUrl,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	// Filter names the JSON response filter to run, Reddit or Tumblr.
	Filter string `json:"filter,omitempty"`
}

// PlanRequest decides what to do with a request for rawURL of the given
// resource type. It applies the activation rule, the internal-URL skip,
// the allow-list and the per-frame setting before any rewriting.
func PlanRequest(state *model.PolicyState, rawURL, resourceType string) Plan {
	if !Active(state) {
		return Plan{Reason: "inactive"}
	}
	if !ShouldProcess(rawURL) {
		return Plan{Reason: "internal"}
	}
	cfg := state.SafeRequestMode
	underLock := state.SelfLock.Active && cfg.IgnoreAllowlistUnderSelfLock
	if !underLock && policy.InAllowList(rawURL, &state.Parental) {
		return Plan{Reason: "allowlisted"}
	}

	plan := Plan{Apply: true}
	h := http.Header{}
	if EnforceHeaders(h, rawURL, cfg) {
		plan.Headers = make(map[string]string, len(h))
		for k := range h {
			plan.Headers[k] = h.Get(k)
		}
	}

	plan.Filter = responseFilter(rawURL, cfg.Providers)

	if cfg.PerFrameEnforcement == model.FramesTop && resourceType != MainFrame && resourceType != SubFrame {
		return plan
	}
	if next, changed := EnforceURL(rawURL, cfg); changed {
		plan.RedirectURL = next
	}
	return plan
}

// ResourceTypeFromFetchDest maps a Sec-Fetch-Dest header to a resource
// type.
func ResourceTypeFromFetchDest(dest string) string {
	switch strings.ToLower(dest) {
	case "document", "":
		return MainFrame
	case "iframe", "frame":
		return SubFrame
	default:
		return Other
	}
}

func responseFilter(rawURL string, ps model.Providers) string {
	switch ProviderFor(rawURL) {
	case Reddit:
		if ps.Reddit.Enabled && ps.Reddit.FilterOver18 {
			return Reddit
		}
	case Tumblr:
		if ps.Tumblr.Enabled && ps.Tumblr.FilterMature {
			return Tumblr
		}
	}
	return ""
}

// FilterJSON runs the named response filter over body.
func FilterJSON(filter string, body []byte) ([]byte, int, error) {
	switch filter {
	case Reddit:
		return FilterRedditJSON(body)
	case Tumblr:
		return FilterTumblrJSON(body)
	default:
		return body, 0, nil
	}
}
