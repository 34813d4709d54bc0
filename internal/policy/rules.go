package policy

import (
	"strings"

	"github.com/ppiankov/contentlock/internal/model"
)

// scopeTags lists the tags each bounded scope enforces. ScopeAll matches
// any non-empty signal set and has no entry.
var scopeTags = map[model.Scope][]string{
	model.ScopeSexual: {
		model.TagRTA, model.TagGenericAdult, model.TagICRASexual,
	},
	model.ScopeSexualViolence: {
		model.TagRTA, model.TagGenericAdult, model.TagICRASexual, model.TagICRAViolence,
	},
}

// MatchesScope reports whether signals fall inside a self-lock scope.
func MatchesScope(signals []string, scope model.Scope) bool {
	if len(signals) == 0 {
		return false
	}
	if scope == model.ScopeAll {
		return true
	}
	tags, ok := scopeTags[scope]
	if !ok {
		return false
	}
	set := toSet(signals)
	for _, tag := range tags {
		if set[tag] {
			return true
		}
	}
	return false
}

// categoryToggle maps an ICRA tag to its parental toggle.
var categoryToggle = map[string]func(model.Categories) bool{
	model.TagICRASexual:    func(c model.Categories) bool { return c.Sexual },
	model.TagICRAViolence:  func(c model.Categories) bool { return c.Violence },
	model.TagICRAProfanity: func(c model.Categories) bool { return c.Profanity },
	model.TagICRADrugs:     func(c model.Categories) bool { return c.Drugs },
	model.TagICRAGambling:  func(c model.Categories) bool { return c.Gambling },
	model.TagICRAAgeVerify: func(c model.Categories) bool { return c.AgeVerification },
}

// categoryOrder fixes evaluation order so the reported rule is stable.
var categoryOrder = []string{
	model.TagICRASexual,
	model.TagICRAViolence,
	model.TagICRAProfanity,
	model.TagICRADrugs,
	model.TagICRAGambling,
	model.TagICRAAgeVerify,
}

// MatchCategory applies the parental category policy. It returns the
// policy ID of the first rule that blocks, or "".
func MatchCategory(signals []string, p *model.Parental) string {
	if len(signals) == 0 {
		return ""
	}
	set := toSet(signals)

	if set[model.TagRTA] {
		return "parental.category.rta"
	}
	if set[model.TagGenericAdult] {
		return "parental.category.adult"
	}
	for _, tag := range categoryOrder {
		if set[tag] && categoryToggle[tag](p.Categories) {
			return "parental.category." + strings.TrimPrefix(tag, model.ICRAPrefix)
		}
	}
	if p.Categories.AdultProductSales {
		for _, s := range signals {
			platform, ok := VendorPlatform(s)
			if ok && p.Vendors.Enabled(platform) {
				return "parental.vendor." + platform
			}
		}
	}
	if p.PlatformSignals.Reddit && (set[model.TagRedditProfile] || set[model.TagRedditSubreddit]) {
		return "parental.platform.reddit"
	}
	if p.TreatMatureAsAdult && set[model.TagGenericMature] {
		return "parental.category.mature"
	}
	return ""
}

// VendorPlatform extracts <platform> from VENDOR:<platform>:<detail>.
func VendorPlatform(tag string) (string, bool) {
	if !strings.HasPrefix(tag, model.VendorPrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(tag, model.VendorPrefix)
	platform, _, _ := strings.Cut(rest, ":")
	if platform == "" {
		return "", false
	}
	return strings.ToLower(platform), true
}

func toSet(signals []string) map[string]bool {
	set := make(map[string]bool, len(signals))
	for _, s := range signals {
		set[s] = true
	}
	return set
}
