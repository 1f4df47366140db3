package services

import "strings"

// ParseTags splits comma-separated input into normalized tags.
func ParseTags(input string) []string {
	return NormalizeTags(strings.Split(input, ","))
}

// NormalizeTags trims every tag, drops empty ones and collapses exact
// duplicates, keeping the first occurrence and the typed order.
// The result is never nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// distinctTags flattens per-post tag lists in discovery order.
func distinctTags(sets [][]string) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, set := range sets {
		for _, t := range set {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
