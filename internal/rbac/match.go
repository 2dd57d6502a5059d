package rbac

import "strings"

// MatchesPermission reports whether a held permission pattern satisfies a
// required permission.
//
// Pattern syntax:
//   - exact:            "read:users" matches "read:users"
//   - action wildcard:  "read:*" matches "read:users", "read:articles"
//   - resource wildcard:"*:users" matches "read:users", "write:users"
//   - global wildcard:  "*" matches everything
func MatchesPermission(pattern, permission string) bool {
	if pattern == "*" || pattern == permission {
		return true
	}

	patternAction, patternResource, patternOK := strings.Cut(pattern, ":")
	permAction, permResource, permOK := strings.Cut(permission, ":")
	if !patternOK || !permOK {
		return false
	}

	if patternAction == "*" {
		return patternResource == permResource || patternResource == "*"
	}
	if patternResource == "*" {
		return patternAction == permAction
	}
	return false
}

// MatchesPermissionSet reports whether any held pattern satisfies required.
// O(1) average for exact hits, O(n) worst case over wildcard patterns.
func MatchesPermissionSet(permissions map[string]struct{}, required string) bool {
	if _, ok := permissions[required]; ok {
		return true
	}
	if _, ok := permissions["*"]; ok {
		return true
	}
	for pattern := range permissions {
		if MatchesPermission(pattern, required) {
			return true
		}
	}
	return false
}
