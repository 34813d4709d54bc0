// Package signals extracts maturity signal tags from page markup and
// normalizes tag sets before evaluation.
package signals

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ppiankov/contentlock/internal/model"
)

// Raw holds the meta contents that produced tags, lowercased.
type Raw struct {
	Rating          string `json:"rating,omitempty"`
	PICSLabel       string `json:"picsLabel,omitempty"`
	AgeVerification string `json:"ageVerification,omitempty"`
}

// Result is the output of FromHTML.
type Result struct {
	Signals []string `json:"signals"`
	Raw     Raw      `json:"raw"`
}

var (
	matureKeywords = []string{"mature", "restricted", "18+"}
	ageGateNames   = map[string]bool{"age-verification": true, "age-gate": true, "age-check": true}
	ageGateValues  = []string{"required", "true", "blockify"}
)

// picsRules maps PICS-Label keywords to ICRA tags, in emit order.
var picsRules = []struct {
	keywords []string
	tag      string
}{
	{[]string{"sexual", "nudity"}, model.TagICRASexual},
	{[]string{"violence"}, model.TagICRAViolence},
	{[]string{"profanity", "language"}, model.TagICRAProfanity},
	{[]string{"drugs", "alcohol"}, model.TagICRADrugs},
	{[]string{"gambling"}, model.TagICRAGambling},
}

// FromHTML scans <meta> elements up to the start of <body> and returns
// the signal tags they carry. Matching is case-insensitive.
func FromHTML(r io.Reader) (Result, error) {
	res := Result{Signals: []string{}}
	z := html.NewTokenizer(r)
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return res, nil
			}
			return res, z.Err()
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.DataAtom == atom.Body {
				return res, nil
			}
			if tok.DataAtom != atom.Meta {
				continue
			}
			applyMeta(&res, tok.Attr)
		}
	}
}

func applyMeta(res *Result, attrs []html.Attribute) {
	var name, httpEquiv, content string
	for _, a := range attrs {
		switch strings.ToLower(a.Key) {
		case "name":
			name = strings.ToLower(a.Val)
		case "http-equiv":
			httpEquiv = strings.ToLower(a.Val)
		case "content":
			content = strings.ToLower(a.Val)
		}
	}

	if name == "rating" {
		res.Raw.Rating = content
		if strings.Contains(content, "adult") {
			res.Signals = append(res.Signals, model.TagGenericAdult)
		}
		if strings.HasPrefix(content, "rta") {
			res.Signals = append(res.Signals, model.TagRTA)
		}
		if containsAny(content, matureKeywords) {
			res.Signals = append(res.Signals, model.TagGenericMature)
		}
	}

	if httpEquiv == "pics-label" {
		res.Raw.PICSLabel = content
		for _, rule := range picsRules {
			if containsAny(content, rule.keywords) {
				res.Signals = append(res.Signals, rule.tag)
			}
		}
	}

	if ageGateNames[name] {
		res.Raw.AgeVerification = content
		if containsAny(content, ageGateValues) {
			res.Signals = append(res.Signals, model.TagICRAAgeVerify)
		}
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
