package session

import (
	"maps"
	"slices"
)

const DefaultMaxTags = 32

// truncateTags returns a copy of tags holding at most max keys, keeping the
// lexicographically smallest ones, plus the keys that were dropped.
func truncateTags(tags map[string]string, max int) (map[string]string, []string) {
	if len(tags) <= max {
		kept := make(map[string]string, len(tags))
		maps.Copy(kept, tags)
		return kept, nil
	}

	keys := slices.Sorted(maps.Keys(tags))
	kept := make(map[string]string, max)
	for _, k := range keys[:max] {
		kept[k] = tags[k]
	}
	return kept, keys[max:]
}
