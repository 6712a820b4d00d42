package groups

// MapExternal translates raw external group labels into internal group
// ids using the catalog's mapping table. A label may map to zero, one or
// several groups; several labels may map to the same group. The result
// is deduplicated and preserves first-match order.
//
// When no label matched anything the fallback list is returned (the
// configured anonymous baseline), so every identity gets at least
// minimal permissions. The fallback applies only to an empty union:
// mixed matched/unmatched labels yield exactly the matched groups.
func (r *Resolved) MapExternal(labels []string, fallback []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(labels))

	for _, label := range labels {
		for _, id := range r.mappings[label] {
			if _, ok := seen[id]; ok {
				continue
			}

			seen[id] = struct{}{}
			out = append(out, id)
		}
	}

	if len(out) > 0 {
		return out
	}

	if len(fallback) == 0 {
		return []string{AnonymousGroupID}
	}

	return append([]string{}, fallback...)
}
