package capability

import (
	"errors"
	"sort"
	"sync"
)

// RoleManager defines a public type used by backoffice APIs.
//
// Unlike the capability registry, roles stay editable after boot: the
// roles screen replaces them through SetRole and readers watch Version to
// invalidate cached affordances.
type RoleManager struct {
	registry *Registry

	mu      sync.RWMutex
	roles   map[string]Mask64
	version uint64
}

// NewRoleManager describes the newrolemanager operation and its observable behavior.
//
// NewRoleManager may return an error when input validation, dependency calls, or security checks fail.
// NewRoleManager does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[string]Mask64),
	}
}

// DefaultRoles returns the console's stock role assignments, keyed by the
// role string carried in the JWT role claim.
func DefaultRoles() map[string][]string {
	return map[string][]string{
		"administrator": {RootCapability},
		"manager": {
			CapUsersView, CapUsersManage, CapRolesManage,
			CapProgramsView, CapProgramsManage,
			CapDecisionsView, CapReferenceManage,
		},
		"credit-officer": {
			CapUsersView, CapProgramsView, CapProgramsManage,
			CapDecisionsView,
		},
		"auditor": {
			CapUsersView, CapProgramsView, CapDecisionsView,
		},
	}
}

// SetRole creates or replaces a role's capability set and bumps the
// version counter. Unknown capability names reject the whole edit.
func (rm *RoleManager) SetRole(roleName string, capabilities []string) error {
	if roleName == "" {
		return errors.New("role name empty")
	}

	mask, err := rm.registry.MaskOf(capabilities...)
	if err != nil {
		return err
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.roles[roleName] = mask
	rm.version++
	return nil
}

// RemoveRole describes the removerole operation and its observable behavior.
//
// RemoveRole may return an error when input validation, dependency calls, or security checks fail.
// RemoveRole does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (rm *RoleManager) RemoveRole(roleName string) bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, exists := rm.roles[roleName]; !exists {
		return false
	}
	delete(rm.roles, roleName)
	rm.version++
	return true
}

/*
====================================
GET MASK FOR ROLE
*/

// Mask describes the mask operation and its observable behavior.
//
// Mask may return an error when input validation, dependency calls, or security checks fail.
// Mask does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (rm *RoleManager) Mask(roleName string) (Mask64, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	mask, ok := rm.roles[roleName]
	return mask, ok
}

/*
====================================
CAPABILITY CHECKS
*/

// Allows reports whether the role holds the named capability. Unknown
// roles and unknown capabilities both deny.
func (rm *RoleManager) Allows(roleName, capability string) bool {
	bit, ok := rm.registry.Bit(capability)
	if !ok {
		return false
	}
	_, rootReserved := rm.registry.RootBit()

	rm.mu.RLock()
	defer rm.mu.RUnlock()
	mask, exists := rm.roles[roleName]
	if !exists {
		return false
	}
	return mask.Has(bit, rootReserved)
}

// AllowsAll reports whether the role holds every named capability.
func (rm *RoleManager) AllowsAll(roleName string, capabilities ...string) bool {
	for _, capability := range capabilities {
		if !rm.Allows(roleName, capability) {
			return false
		}
	}
	return true
}

/*
====================================
INTROSPECTION
*/

// Roles returns the registered role names, sorted.
func (rm *RoleManager) Roles() []string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	names := make([]string, 0, len(rm.roles))
	for name := range rm.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Capabilities expands a role's mask into sorted capability names.
func (rm *RoleManager) Capabilities(roleName string) ([]string, bool) {
	mask, ok := rm.Mask(roleName)
	if !ok {
		return nil, false
	}
	return rm.registry.Names(mask), true
}

// Version describes the version operation and its observable behavior.
//
// Version may return an error when input validation, dependency calls, or security checks fail.
// Version does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (rm *RoleManager) Version() uint64 {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.version
}

// Count describes the count operation and its observable behavior.
//
// Count may return an error when input validation, dependency calls, or security checks fail.
// Count does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}

// NewConsoleRoleManager builds a role manager over the given registry
// preloaded with [DefaultRoles].
func NewConsoleRoleManager(registry *Registry) (*RoleManager, error) {
	rm := NewRoleManager(registry)
	for roleName, capabilities := range DefaultRoles() {
		if err := rm.SetRole(roleName, capabilities); err != nil {
			return nil, err
		}
	}
	return rm, nil
}
