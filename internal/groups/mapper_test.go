package groups

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mappingCatalog(t *testing.T) *Resolved {
	t.Helper()

	c := testCatalog(t, `{
		"groups": {
			"anonymous": {"permissions": {"apps": ["chat"], "prompts": [], "models": []}},
			"admin": {
				"permissions": {"apps": "*", "prompts": "*", "models": "*", "adminAccess": true},
				"mappings": ["Admins", "IT-Admin", "SuperUsers"]
			},
			"finance": {
				"permissions": {"apps": ["finance-app"], "prompts": [], "models": []},
				"mappings": ["Finance-Team", "CN=Finance,OU=Groups,DC=example,DC=com"]
			},
			"users": {
				"permissions": {"apps": ["chat"], "prompts": [], "models": []},
				"mappings": ["Finance-Team", "Everyone"]
			}
		}
	}`)

	r, err := c.Resolve()
	require.NoError(t, err)

	return r
}

func TestMapExternalDefaultsToAnonymous(t *testing.T) {
	r := mappingCatalog(t)

	got := r.MapExternal([]string{"UnknownLabel"}, []string{"anonymous"})
	assert.Equal(t, []string{"anonymous"}, got)
}

func TestMapExternalEmptyInputDefaultsToAnonymous(t *testing.T) {
	r := mappingCatalog(t)

	got := r.MapExternal(nil, []string{"anonymous"})
	assert.Equal(t, []string{"anonymous"}, got)
}

func TestMapExternalDedup(t *testing.T) {
	r := mappingCatalog(t)

	got := r.MapExternal([]string{"Admins", "IT-Admin", "SuperUsers"}, []string{"anonymous"})
	assert.Equal(t, []string{"admin"}, got)
}

func TestMapExternalOneLabelManyGroups(t *testing.T) {
	r := mappingCatalog(t)

	got := r.MapExternal([]string{"Finance-Team"}, []string{"anonymous"})
	assert.ElementsMatch(t, []string{"finance", "users"}, got)
}

func TestMapExternalMixedMatchedUnmatched(t *testing.T) {
	r := mappingCatalog(t)

	// the anonymous fallback applies only when nothing matched at all
	got := r.MapExternal([]string{"UnknownLabel", "Everyone"}, []string{"anonymous"})
	assert.Equal(t, []string{"users"}, got)
}

func TestMapExternalFallbackListIsCopied(t *testing.T) {
	r := mappingCatalog(t)

	fallback := []string{"anonymous"}
	got := r.MapExternal(nil, fallback)
	got[0] = "mutated"

	assert.Equal(t, []string{"anonymous"}, fallback)
}
