package groups

import (
	"fmt"
	"sort"
	"strings"
)

// CycleError reports a group reachable from itself through inheritance.
// It is a config-load-time error, fatal to catalog loading.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return "group inheritance cycle: " + strings.Join(e.Cycle, " -> ")
}

// Resolved is the catalog after inheritance resolution: per-group
// transitive permission unions plus the external-label mapping index.
// It is immutable after construction and safe for concurrent reads.
type Resolved struct {
	groups map[string]Permissions
	// mappings indexes raw external labels to the ids of all groups
	// that list them.
	mappings map[string][]string
}

// Resolve performs the inheritance walk over the catalog. Each group's
// permissions become the union of its own grants and all ancestors'
// grants; a wildcard anywhere in the chain opens that resource class for
// every descendant. Returns a CycleError if any group is reachable from
// itself, and an error for inherits references to unknown groups.
func (c *Catalog) Resolve() (*Resolved, error) {
	r := &Resolved{
		groups:   make(map[string]Permissions, len(c.Groups)),
		mappings: make(map[string][]string),
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)

	state := make(map[string]int, len(c.Groups))
	stack := make([]string, 0, len(c.Groups))

	var walk func(id string) (Permissions, error)
	walk = func(id string) (Permissions, error) {
		switch state[id] {
		case done:
			return r.groups[id], nil
		case visiting:
			// close the reported cycle at the revisited group
			start := 0
			for i, s := range stack {
				if s == id {
					start = i
					break
				}
			}

			cycle := append(append([]string{}, stack[start:]...), id)

			return Permissions{}, &CycleError{Cycle: cycle}
		}

		def, ok := c.Groups[id]
		if !ok {
			return Permissions{}, fmt.Errorf("group %q inherits from unknown group", id)
		}

		state[id] = visiting
		stack = append(stack, id)

		resolved := def.Permissions

		for _, parent := range def.Inherits {
			if _, ok := c.Groups[parent]; !ok {
				return Permissions{}, fmt.Errorf("group %q inherits from unknown group %q", id, parent)
			}

			parentPerms, err := walk(parent)
			if err != nil {
				return Permissions{}, err
			}

			resolved = resolved.Union(parentPerms)
		}

		stack = stack[:len(stack)-1]
		state[id] = done
		r.groups[id] = resolved

		return resolved, nil
	}

	for id := range c.Groups {
		if _, err := walk(id); err != nil {
			return nil, err
		}
	}

	for id, def := range c.Groups {
		for _, label := range def.Mappings {
			r.mappings[label] = append(r.mappings[label], id)
		}
	}

	return r, nil
}

// Permissions returns the resolved permission union for a single group.
// Unknown groups carry no permissions.
func (r *Resolved) Permissions(id string) (Permissions, bool) {
	p, ok := r.groups[id]
	return p, ok
}

// ResolvePermissions returns the union of the permission closures of the
// given group ids. Unknown ids contribute nothing; they are kept in the
// principal's display list for audit purposes but grant no access.
func (r *Resolved) ResolvePermissions(ids []string) Permissions {
	var out Permissions

	for _, id := range ids {
		if p, ok := r.groups[id]; ok {
			out = out.Union(p)
		}
	}

	return out
}

// Has reports whether a group id exists in the resolved catalog.
func (r *Resolved) Has(id string) bool {
	_, ok := r.groups[id]
	return ok
}

// GroupIDs returns all group ids in the catalog, sorted.
func (r *Resolved) GroupIDs() []string {
	ids := make([]string, 0, len(r.groups))
	for id := range r.groups {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}
