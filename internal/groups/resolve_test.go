package groups

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T, doc string) *Catalog {
	t.Helper()

	c, err := ParseCatalog([]byte(doc))
	require.NoError(t, err)

	return c
}

func TestResolveInheritanceClosure(t *testing.T) {
	c := testCatalog(t, `{
		"groups": {
			"base": {"permissions": {"apps": ["chat"], "prompts": [], "models": ["gpt-4"]}},
			"hr": {"permissions": {"apps": ["hr-app"], "prompts": ["hr-prompt"], "models": []}},
			"finance": {
				"inherits": ["base", "hr"],
				"permissions": {"apps": ["finance-app"], "prompts": [], "models": []}
			}
		}
	}`)

	r, err := c.Resolve()
	require.NoError(t, err)

	perms, ok := r.Permissions("finance")
	require.True(t, ok)

	// child carries its own grants plus both ancestors' grants
	assert.ElementsMatch(t, []string{"finance-app", "chat", "hr-app"}, perms.Apps.IDs)
	assert.ElementsMatch(t, []string{"hr-prompt"}, perms.Prompts.IDs)
	assert.ElementsMatch(t, []string{"gpt-4"}, perms.Models.IDs)
	assert.False(t, perms.AdminAccess)
}

func TestResolveRecursiveInheritance(t *testing.T) {
	c := testCatalog(t, `{
		"groups": {
			"root": {"permissions": {"apps": ["a"], "prompts": [], "models": []}},
			"mid": {"inherits": ["root"], "permissions": {"apps": ["b"], "prompts": [], "models": []}},
			"leaf": {"inherits": ["mid"], "permissions": {"apps": ["c"], "prompts": [], "models": []}}
		}
	}`)

	r, err := c.Resolve()
	require.NoError(t, err)

	perms, _ := r.Permissions("leaf")
	assert.ElementsMatch(t, []string{"a", "b", "c"}, perms.Apps.IDs)
}

func TestResolveWildcardPropagates(t *testing.T) {
	c := testCatalog(t, `{
		"groups": {
			"admin": {"permissions": {"apps": "*", "prompts": "*", "models": "*", "adminAccess": true}},
			"ops": {"inherits": ["admin"], "permissions": {"apps": ["ops-app"], "prompts": [], "models": []}}
		}
	}`)

	r, err := c.Resolve()
	require.NoError(t, err)

	perms, _ := r.Permissions("ops")

	// wildcard on any ancestor overrides finite sets for the class
	assert.True(t, perms.Apps.All)
	assert.True(t, perms.Prompts.All)
	assert.True(t, perms.Models.All)
	assert.True(t, perms.AdminAccess)
	assert.True(t, perms.Apps.Contains("anything"))
}

func TestResolveCycleFails(t *testing.T) {
	c := testCatalog(t, `{
		"groups": {
			"g1": {"inherits": ["g2"], "permissions": {"apps": [], "prompts": [], "models": []}},
			"g2": {"inherits": ["g1"], "permissions": {"apps": [], "prompts": [], "models": []}}
		}
	}`)

	_, err := c.Resolve()
	require.Error(t, err)

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.GreaterOrEqual(t, len(cycleErr.Cycle), 3)
}

func TestResolveSelfCycleFails(t *testing.T) {
	c := testCatalog(t, `{
		"groups": {
			"g1": {"inherits": ["g1"], "permissions": {"apps": [], "prompts": [], "models": []}}
		}
	}`)

	_, err := c.Resolve()

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
}

func TestResolveUnknownParentFails(t *testing.T) {
	c := testCatalog(t, `{
		"groups": {
			"g1": {"inherits": ["nope"], "permissions": {"apps": [], "prompts": [], "models": []}}
		}
	}`)

	_, err := c.Resolve()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown group")
}

func TestResolvePermissionsUnion(t *testing.T) {
	c := testCatalog(t, `{
		"groups": {
			"finance": {"permissions": {"apps": ["finance-app"], "prompts": [], "models": []}},
			"users": {"permissions": {"apps": ["chat"], "prompts": [], "models": ["gpt-4"]}},
			"marketing": {"permissions": {"apps": ["campaigns"], "prompts": [], "models": []}}
		}
	}`)

	r, err := c.Resolve()
	require.NoError(t, err)

	perms := r.ResolvePermissions([]string{"finance", "users", "does-not-exist"})

	assert.True(t, perms.Apps.Contains("finance-app"))
	assert.True(t, perms.Apps.Contains("chat"))
	// apps exclusive to an unrelated group stay excluded
	assert.False(t, perms.Apps.Contains("campaigns"))
}
