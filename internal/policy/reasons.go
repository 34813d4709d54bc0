package policy

import (
	"github.com/ppiankov/contentlock/internal/model"
)

var tagReasons = []struct {
	tag    string
	reason string
}{
	{model.TagRTA, "RTA Label"},
	{model.TagGenericAdult, "Adult Content"},
	{model.TagGenericMature, "Mature Content"},
	{model.TagICRASexual, "Sexual/Nudity"},
	{model.TagICRAViolence, "Violence"},
	{model.TagICRAProfanity, "Profanity"},
	{model.TagICRADrugs, "Drugs/Alcohol"},
	{model.TagICRAGambling, "Gambling"},
	{model.TagICRAAgeVerify, "Age Verification Required"},
}

var vendorNames = map[string]string{
	"etsy":      "Etsy",
	"redbubble": "Redbubble",
	"teepublic": "TeePublic",
	"zazzle":    "Zazzle",
	"itch.io":   "itch.io",
	"ebay":      "eBay",
	"amazon":    "Amazon",
	"patreon":   "Patreon",
	"shopify":   "Shopify",
}

// Reasons maps signal tags to human-readable labels. Order follows the
// tag category, not the input order, and duplicates collapse.
func Reasons(signals []string) []string {
	set := toSet(signals)
	reasons := make([]string, 0, len(set))
	seen := make(map[string]bool)
	add := func(r string) {
		if !seen[r] {
			seen[r] = true
			reasons = append(reasons, r)
		}
	}

	for _, tr := range tagReasons {
		if set[tr.tag] {
			add(tr.reason)
		}
	}
	for _, s := range signals {
		platform, ok := VendorPlatform(s)
		if !ok {
			continue
		}
		name, known := vendorNames[platform]
		if !known {
			name = platform
		}
		add(name + " Mature Listing")
	}
	if set[model.TagRedditProfile] {
		add("NSFW Reddit Profile")
	}
	if set[model.TagRedditSubreddit] {
		add("NSFW Subreddit")
	}
	return reasons
}
