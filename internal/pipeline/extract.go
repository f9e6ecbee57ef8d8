package pipeline

import (
	"regexp"
	"sort"
	"strings"
)

// =============================================================================
// TAG / TOPIC EXTRACTION
// =============================================================================

var hashTagPattern = regexp.MustCompile(`#([\p{L}\p{N}_-]+)`)

// extractTags pulls candidate tags from raw query text: explicit #tag
// tokens first, then topic keywords from the configured vocabulary.
// Order is stable (hashtags in appearance order, topics in first-match
// order) and tags are deduplicated case-insensitively.
func extractTags(query string, topics map[string][]string) []string {
	var tags []string
	seen := make(map[string]bool)

	add := func(tag string) {
		key := strings.ToLower(tag)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		tags = append(tags, tag)
	}

	for _, match := range hashTagPattern.FindAllStringSubmatch(query, -1) {
		add(match[1])
	}

	lower := strings.ToLower(query)
	for _, tag := range sortedTopicTags(topics) {
		for _, phrase := range topics[tag] {
			if strings.Contains(lower, strings.ToLower(phrase)) {
				add(tag)
				break
			}
		}
	}

	return tags
}

// sortedTopicTags returns topic tags in deterministic order so repeated
// extractions of the same query agree.
func sortedTopicTags(topics map[string][]string) []string {
	tags := make([]string, 0, len(topics))
	for tag := range topics {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
