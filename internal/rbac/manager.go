package rbac

import (
	"fmt"
	"sync"

	"github.com/gatewarden/gatewarden/internal/config"
	"github.com/gatewarden/gatewarden/internal/models"
)

// RoleDefinition is a role with its direct permissions and inheritance.
// Roles form a directed graph; cycles are a configuration error caught at
// load time.
type RoleDefinition struct {
	Name        string
	Permissions []string
	Inherits    []string
	Description string
}

// state is the immutable role table plus its fully flattened permission
// cache. Reload builds a fresh state and swaps the pointer, so concurrent
// readers never observe a partially-rebuilt cache.
type state struct {
	roles map[string]RoleDefinition
	flat  map[string]map[string]struct{}
}

// Manager resolves roles to flattened permission sets and answers
// permission checks. Read-mostly; reloads swap the whole state.
type Manager struct {
	mu          sync.RWMutex
	state       *state
	defaultRole string
	gen         uint64
}

// NewManager validates the role graph (undefined references, inheritance
// cycles) and precomputes the flattened permission set per role.
func NewManager(specs map[string]config.RoleSpec, defaultRole string) (*Manager, error) {
	st, err := buildState(specs)
	if err != nil {
		return nil, err
	}
	if defaultRole != "" {
		if _, ok := st.roles[defaultRole]; !ok {
			return nil, fmt.Errorf("default role %q is not defined", defaultRole)
		}
	}
	return &Manager{state: st, defaultRole: defaultRole}, nil
}

// Reload replaces all role definitions. On error the previous definitions
// stay in effect.
func (m *Manager) Reload(specs map[string]config.RoleSpec) error {
	st, err := buildState(specs)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.defaultRole != "" {
		if _, ok := st.roles[m.defaultRole]; !ok {
			return fmt.Errorf("default role %q is not defined", m.defaultRole)
		}
	}
	m.state = st
	m.gen++
	return nil
}

// Generation increments whenever role definitions change. Callers that
// cache resolved permissions key on it to invalidate across reloads.
func (m *Manager) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen
}

func buildState(specs map[string]config.RoleSpec) (*state, error) {
	roles := make(map[string]RoleDefinition, len(specs))
	for name, spec := range specs {
		roles[name] = RoleDefinition{
			Name:        name,
			Permissions: append([]string(nil), spec.Permissions...),
			Inherits:    append([]string(nil), spec.Inherits...),
			Description: spec.Description,
		}
	}

	for name, def := range roles {
		for _, inherited := range def.Inherits {
			if _, ok := roles[inherited]; !ok {
				return nil, fmt.Errorf("role %q inherits from undefined role %q", name, inherited)
			}
		}
	}
	if err := detectCycles(roles); err != nil {
		return nil, err
	}

	flat := make(map[string]map[string]struct{}, len(roles))
	for name := range roles {
		flat[name] = flatten(roles, name, flat)
	}
	return &state{roles: roles, flat: flat}, nil
}

// detectCycles runs a DFS over the inheritance graph. A role reachable
// from itself is rejected.
func detectCycles(roles map[string]RoleDefinition) error {
	visited := make(map[string]bool, len(roles))
	var visit func(name string, path map[string]bool) error
	visit = func(name string, path map[string]bool) error {
		if path[name] {
			return fmt.Errorf("inheritance cycle detected involving role %q", name)
		}
		if visited[name] {
			return nil
		}
		visited[name] = true
		path[name] = true
		for _, inherited := range roles[name].Inherits {
			if err := visit(inherited, path); err != nil {
				return err
			}
		}
		delete(path, name)
		return nil
	}
	for name := range roles {
		if err := visit(name, make(map[string]bool)); err != nil {
			return err
		}
	}
	return nil
}

// flatten accumulates direct and inherited permissions depth-first,
// memoizing into flat. Safe because the graph is known acyclic here.
func flatten(roles map[string]RoleDefinition, name string, flat map[string]map[string]struct{}) map[string]struct{} {
	if cached, ok := flat[name]; ok {
		return cached
	}
	perms := make(map[string]struct{})
	def := roles[name]
	for _, p := range def.Permissions {
		perms[p] = struct{}{}
	}
	for _, inherited := range def.Inherits {
		for p := range flatten(roles, inherited, flat) {
			perms[p] = struct{}{}
		}
	}
	flat[name] = perms
	return perms
}

func (m *Manager) snapshot() *state {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// RolePermissions returns the flattened permission set for a role,
// including everything inherited. Unknown roles yield an empty set.
func (m *Manager) RolePermissions(role string) map[string]struct{} {
	if perms, ok := m.snapshot().flat[role]; ok {
		return perms
	}
	return map[string]struct{}{}
}

// UserPermissions returns the union of the user's role-derived and direct
// permission claims. Users with no roles receive the default role, when
// one is configured.
func (m *Manager) UserPermissions(user *models.AuthenticatedUser) map[string]struct{} {
	st := m.snapshot()
	perms := make(map[string]struct{})
	for _, role := range user.Roles {
		for p := range st.flat[role] {
			perms[p] = struct{}{}
		}
	}
	if len(user.Roles) == 0 && m.defaultRole != "" {
		for p := range st.flat[m.defaultRole] {
			perms[p] = struct{}{}
		}
	}
	for _, p := range user.Permissions {
		perms[p] = struct{}{}
	}
	return perms
}

// HasPermission checks a single permission for the user, wildcards included.
func (m *Manager) HasPermission(user *models.AuthenticatedUser, permission string) bool {
	return MatchesPermissionSet(m.UserPermissions(user), permission)
}

// RoleHasPermission checks a permission against one role's flattened set.
func (m *Manager) RoleHasPermission(role, permission string) bool {
	return MatchesPermissionSet(m.RolePermissions(role), permission)
}

// AddRole registers a new role at runtime. Inherited roles must already
// exist; the flattened cache is rebuilt.
func (m *Manager) AddRole(def RoleDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.state.roles[def.Name]; exists {
		return fmt.Errorf("role %q already exists", def.Name)
	}
	specs := m.toSpecsLocked()
	specs[def.Name] = config.RoleSpec{
		Permissions: def.Permissions,
		Inherits:    def.Inherits,
		Description: def.Description,
	}
	st, err := buildState(specs)
	if err != nil {
		return err
	}
	m.state = st
	m.gen++
	return nil
}

// RemoveRole deletes a role. Roles still inherited by others are protected.
func (m *Manager) RemoveRole(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.state.roles[name]; !exists {
		return fmt.Errorf("role %q does not exist", name)
	}
	for other, def := range m.state.roles {
		for _, inherited := range def.Inherits {
			if inherited == name {
				return fmt.Errorf("cannot remove role %q: inherited by %q", name, other)
			}
		}
	}
	specs := m.toSpecsLocked()
	delete(specs, name)
	st, err := buildState(specs)
	if err != nil {
		return err
	}
	m.state = st
	m.gen++
	return nil
}

func (m *Manager) toSpecsLocked() map[string]config.RoleSpec {
	specs := make(map[string]config.RoleSpec, len(m.state.roles))
	for name, def := range m.state.roles {
		specs[name] = config.RoleSpec{
			Permissions: append([]string(nil), def.Permissions...),
			Inherits:    append([]string(nil), def.Inherits...),
			Description: def.Description,
		}
	}
	return specs
}

// Stats reports role and permission counts for diagnostics.
func (m *Manager) Stats() map[string]interface{} {
	st := m.snapshot()
	unique := make(map[string]struct{})
	perRole := make(map[string]interface{}, len(st.roles))
	for name, def := range st.roles {
		for _, p := range def.Permissions {
			unique[p] = struct{}{}
		}
		perRole[name] = map[string]interface{}{
			"direct_permissions": len(def.Permissions),
			"inherited_from":     def.Inherits,
			"total_permissions":  len(st.flat[name]),
		}
	}
	return map[string]interface{}{
		"total_roles":              len(st.roles),
		"total_unique_permissions": len(unique),
		"roles":                    perRole,
		"default_role":             m.defaultRole,
	}
}
