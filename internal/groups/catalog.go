// Package groups implements the group catalog: admin-defined groups with
// inheritance, permission grants and external-name mappings, plus the
// resolution of inheritance closures and external-label mapping.
package groups

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// Wildcard grants unrestricted access to a resource class.
const Wildcard = "*"

// AnonymousGroupID is the baseline group assigned when no external label
// maps to anything. It guarantees every identity carries at least minimal
// permissions and a debuggable placeholder in audit trails.
const AnonymousGroupID = "anonymous"

// ResourceSet is a permission grant for one resource class: either a
// finite id set or the wildcard.
type ResourceSet struct {
	All bool
	IDs []string
}

// UnmarshalJSON accepts either the string "*" or an array of ids.
func (r *ResourceSet) UnmarshalJSON(data []byte) error {
	var star string
	if err := json.Unmarshal(data, &star); err == nil {
		if star != Wildcard {
			return fmt.Errorf("resource set string must be %q, got %q", Wildcard, star)
		}

		r.All = true
		r.IDs = nil

		return nil
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return errors.Wrap(err, "resource set must be \"*\" or a string array")
	}

	r.All = false
	r.IDs = ids

	return nil
}

// MarshalJSON renders the wildcard as "*" and finite grants as arrays.
func (r ResourceSet) MarshalJSON() ([]byte, error) {
	if r.All {
		return json.Marshal(Wildcard)
	}

	return json.Marshal(r.IDs)
}

// Contains reports whether the set grants access to the given id.
func (r ResourceSet) Contains(id string) bool {
	if r.All {
		return true
	}

	for _, v := range r.IDs {
		if v == id {
			return true
		}
	}

	return false
}

// union merges another set into this one. A wildcard on either side wins.
func (r ResourceSet) union(other ResourceSet) ResourceSet {
	if r.All || other.All {
		return ResourceSet{All: true}
	}

	seen := make(map[string]struct{}, len(r.IDs)+len(other.IDs))
	out := make([]string, 0, len(r.IDs)+len(other.IDs))

	for _, set := range [][]string{r.IDs, other.IDs} {
		for _, id := range set {
			if _, ok := seen[id]; ok {
				continue
			}

			seen[id] = struct{}{}
			out = append(out, id)
		}
	}

	return ResourceSet{IDs: out}
}

// Permissions are the grants carried by a group: per-resource-class id
// sets (or wildcard) plus the admin-access flag.
type Permissions struct {
	Apps        ResourceSet `json:"apps"`
	Prompts     ResourceSet `json:"prompts"`
	Models      ResourceSet `json:"models"`
	AdminAccess bool        `json:"adminAccess"`
}

// Union merges two permission sets class-by-class.
func (p Permissions) Union(other Permissions) Permissions {
	return Permissions{
		Apps:        p.Apps.union(other.Apps),
		Prompts:     p.Prompts.union(other.Prompts),
		Models:      p.Models.union(other.Models),
		AdminAccess: p.AdminAccess || other.AdminAccess,
	}
}

// Definition is a single group as configured in the catalog file.
type Definition struct {
	ID          string      `json:"id"`
	Description string      `json:"description,omitempty"`
	Inherits    []string    `json:"inherits,omitempty"`
	Permissions Permissions `json:"permissions"`
	// Mappings are raw external labels (LDAP DNs, OIDC claim values,
	// AD group names) that resolve to this group.
	Mappings []string `json:"mappings,omitempty"`
}

// Catalog is the parsed but unresolved group configuration.
type Catalog struct {
	Groups map[string]Definition `json:"groups"`
}

// LoadCatalog reads and parses the JSON catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read group catalog")
	}

	return ParseCatalog(data)
}

// ParseCatalog parses a JSON catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "failed to parse group catalog")
	}

	// ids inside definitions must agree with their map keys
	for id, def := range c.Groups {
		if def.ID == "" {
			def.ID = id
			c.Groups[id] = def
		} else if def.ID != id {
			return nil, fmt.Errorf("group %q declares mismatching id %q", id, def.ID)
		}
	}

	return &c, nil
}
