package gallery

import (
	"sort"
	"strings"
)

// DefaultExclude lists manifest entries that are housekeeping, not images
var DefaultExclude = []string{"viewer/", "viewer/index.html", "viewer/images.json"}

// PrepareItems drops housekeeping entries and directory markers, then sorts
// the rest newest first.
func PrepareItems(names []string, exclude []string) []string {
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		skip[e] = true
	}

	items := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" || skip[name] || strings.HasSuffix(name, "/") {
			continue
		}
		items = append(items, name)
	}

	SortItems(items)
	return items
}

// SortItems orders items by embedded timestamp, newest first. Equal
// timestamps and items without one fall back to descending name order;
// items without a timestamp come last.
func SortItems(items []string) {
	type keyed struct {
		name string
		ts   int64
		ok   bool
	}

	keys := make([]keyed, len(items))
	for i, name := range items {
		ts, ok := ExtractTimestamp(name)
		keys[i] = keyed{name: name, ts: ts, ok: ok}
	}

	sort.SliceStable(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.ok != b.ok {
			return a.ok
		}
		if a.ok && a.ts != b.ts {
			return a.ts > b.ts
		}
		return a.name > b.name
	})

	for i, k := range keys {
		items[i] = k.name
	}
}
