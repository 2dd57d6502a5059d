package rbac

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRolesFullForm(t *testing.T) {
	data := []byte(`
roles:
  viewer:
    permissions: ["read:*"]
    description: read-only access
  editor:
    permissions: ["write:articles"]
    inherits: ["viewer"]
`)
	roles, err := ParseRoles(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"read:*"}, roles["viewer"].Permissions)
	assert.Equal(t, []string{"viewer"}, roles["editor"].Inherits)
	assert.Equal(t, "read-only access", roles["viewer"].Description)
}

func TestParseRolesShorthand(t *testing.T) {
	data := []byte(`
roles:
  viewer: ["read:*"]
  admin: ["*"]
`)
	roles, err := ParseRoles(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"read:*"}, roles["viewer"].Permissions)
	assert.Equal(t, []string{"*"}, roles["admin"].Permissions)
}

func TestParseRolesBareMap(t *testing.T) {
	data := []byte(`
viewer:
  permissions: ["read:articles"]
`)
	roles, err := ParseRoles(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"read:articles"}, roles["viewer"].Permissions)
}

func TestLoadRoleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roles:\n  ops: [\"deploy:*\"]\n"), 0o644))

	roles, err := LoadRoleFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"deploy:*"}, roles["ops"].Permissions)

	_, err = LoadRoleFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
