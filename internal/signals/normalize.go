package signals

import (
	"strings"

	"github.com/ppiankov/contentlock/internal/model"
)

// Normalize trims and dedupes tags, keeping first-seen order. When a
// vendor tag is present the generic adult and mature tags are dropped:
// the vendor detector is more specific than a blanket page rating.
func Normalize(tags []string) []string {
	hasVendor := false
	for _, t := range tags {
		if strings.HasPrefix(strings.TrimSpace(t), model.VendorPrefix) {
			hasVendor = true
			break
		}
	}

	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		if hasVendor && (t == model.TagGenericAdult || t == model.TagGenericMature) {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
