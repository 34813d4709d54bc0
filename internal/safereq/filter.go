package safereq

import (
	"encoding/json"
	"fmt"
)

// FilterRedditJSON removes over-18 posts (kind t3) from every Listing in
// a Reddit API response, including nested reply listings. It returns the
// re-encoded body and how many posts were removed.
func FilterRedditJSON(body []byte) ([]byte, int, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return body, 0, fmt.Errorf("decode reddit response: %w", err)
	}
	n := filterReddit(doc)
	if n == 0 {
		return body, 0, nil
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return body, 0, fmt.Errorf("encode reddit response: %w", err)
	}
	return out, n, nil
}

func filterReddit(v any) int {
	removed := 0
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			removed += filterReddit(item)
		}
	case map[string]any:
		if node["kind"] == "Listing" {
			if data, ok := node["data"].(map[string]any); ok {
				if children, ok := data["children"].([]any); ok {
					kept := children[:0]
					for _, c := range children {
						if isOver18Post(c) {
							removed++
							continue
						}
						kept = append(kept, c)
					}
					data["children"] = kept
				}
			}
		}
		for _, child := range node {
			removed += filterReddit(child)
		}
	}
	return removed
}

func isOver18Post(v any) bool {
	m, ok := v.(map[string]any)
	if !ok || m["kind"] != "t3" {
		return false
	}
	data, ok := m["data"].(map[string]any)
	return ok && data["over_18"] == true
}

var tumblrMatureLabels = map[string]bool{
	"Potentially mature content": true,
	"Adult content":              true,
	"Explicit":                   true,
}

// FilterTumblrJSON removes mature posts from a Tumblr API response, under
// either response.posts or a top-level posts array.
func FilterTumblrJSON(body []byte) ([]byte, int, error) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return body, 0, fmt.Errorf("decode tumblr response: %w", err)
	}

	holder := doc
	if resp, ok := doc["response"].(map[string]any); ok {
		if _, ok := resp["posts"].([]any); ok {
			holder = resp
		}
	}
	posts, ok := holder["posts"].([]any)
	if !ok {
		return body, 0, nil
	}

	kept := make([]any, 0, len(posts))
	for _, p := range posts {
		if isMatureTumblrPost(p) {
			continue
		}
		kept = append(kept, p)
	}
	removed := len(posts) - len(kept)
	if removed == 0 {
		return body, 0, nil
	}
	holder["posts"] = kept
	out, err := json.Marshal(doc)
	if err != nil {
		return body, 0, fmt.Errorf("encode tumblr response: %w", err)
	}
	return out, removed, nil
}

func isMatureTumblrPost(v any) bool {
	post, ok := v.(map[string]any)
	if !ok {
		return false
	}
	if hc, ok := post["headerContext"].(map[string]any); ok {
		if label, ok := hc["label"].(map[string]any); ok {
			if text, ok := label["text"].(string); ok && tumblrMatureLabels[text] {
				return true
			}
		}
	}
	if post["isNsfw"] == true {
		return true
	}
	if c, ok := post["classification"].(string); ok && (c == "adult" || c == "nsfw") {
		return true
	}
	if cl, ok := post["communityLabel"].(map[string]any); ok && cl["isNsfw"] == true {
		return true
	}
	return false
}
