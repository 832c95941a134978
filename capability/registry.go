package capability

import (
	"errors"
	"sort"
	"sync"
)

// RootCapability is the virtual capability mapped to the reserved root
// bit. A role holding it passes every capability check.
const RootCapability = "console.root"

// Console capability names, mirroring the screens they gate.
const (
	CapUsersView       = "users.view"
	CapUsersManage     = "users.manage"
	CapRolesManage     = "roles.manage"
	CapProgramsView    = "programs.view"
	CapProgramsManage  = "programs.manage"
	CapDecisionsView   = "decisions.view"
	CapReferenceManage = "reference.manage"
)

// Defaults returns the console's capability vocabulary in registration
// order.
func Defaults() []string {
	return []string{
		CapUsersView,
		CapUsersManage,
		CapRolesManage,
		CapProgramsView,
		CapProgramsManage,
		CapDecisionsView,
		CapReferenceManage,
	}
}

// Registry maps capability names to bit positions within a [Mask64].
//
//	Docs: docs/capability.md
type Registry struct {
	rootReserved bool
	rootBit      int

	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName map[int]string
	frozen    bool
}

// NewRegistry creates a capability [Registry]. rootReserved reserves the
// highest bit for [RootCapability], the super-admin grant.
//
//	Docs: docs/capability.md
func NewRegistry(rootReserved bool) *Registry {
	r := &Registry{
		rootReserved: rootReserved,
		nameToBit:    make(map[string]int),
		bitToName:    make(map[int]string),
	}

	if rootReserved {
		r.rootBit = 63
	}

	return r
}

// NewConsoleRegistry builds a frozen registry preloaded with [Defaults]
// and the reserved root bit. This is the registry the console boots with.
func NewConsoleRegistry() *Registry {
	r := NewRegistry(true)
	for _, name := range Defaults() {
		// Defaults are unique and well under the limit.
		_, _ = r.Register(name)
	}
	r.Freeze()
	return r
}

// Register assigns the next available bit to the named capability.
// Returns the assigned bit index. Must be called before [Registry.Freeze].
//
//	Docs: docs/capability.md
func (r *Registry) Register(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, errors.New("registry frozen")
	}

	if name == "" {
		return -1, errors.New("capability name cannot be empty")
	}

	if name == RootCapability {
		return -1, errors.New("capability name reserved")
	}

	if _, exists := r.nameToBit[name]; exists {
		return -1, errors.New("capability already registered")
	}

	nextBit := len(r.nameToBit)

	if r.rootReserved && nextBit >= r.rootBit {
		return -1, errors.New("capability limit exceeded (root bit reserved)")
	}

	if !r.rootReserved && nextBit >= 64 {
		return -1, errors.New("capability limit exceeded")
	}

	r.nameToBit[name] = nextBit
	r.bitToName[nextBit] = name

	return nextBit, nil
}

// Bit returns the bit index for the named capability, or false if not
// registered. [RootCapability] maps to the reserved root bit.
func (r *Registry) Bit(name string) (int, bool) {
	if r.rootReserved && name == RootCapability {
		return r.rootBit, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Name returns the capability name for the given bit index, or false if
// unassigned.
func (r *Registry) Name(bit int) (string, bool) {
	if r.rootReserved && bit == r.rootBit {
		return RootCapability, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.bitToName[bit]
	return name, ok
}

// Freeze prevents further registrations. Must be called before the
// registry is used for checks.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered capabilities, excluding the
// reserved root bit.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}

// RootBit returns the reserved root bit, or false if root-bit reservation
// is disabled.
func (r *Registry) RootBit() (int, bool) {
	if !r.rootReserved {
		return -1, false
	}
	return r.rootBit, true
}

// MaskOf expands capability names into a [Mask64]. Unknown names are an
// error; the roles screen validates its input through this.
func (r *Registry) MaskOf(names ...string) (Mask64, error) {
	var mask Mask64
	for _, name := range names {
		bit, ok := r.Bit(name)
		if !ok {
			return 0, errors.New("capability not registered: " + name)
		}
		mask.Set(bit)
	}
	return mask, nil
}

// Names expands a mask back into sorted capability names. The root bit
// expands to [RootCapability].
func (r *Registry) Names(mask Mask64) []string {
	var names []string
	for bit := 0; bit < 64; bit++ {
		if mask&(1<<bit) == 0 {
			continue
		}
		if name, ok := r.Name(bit); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Diff reports which capability names were added and removed going from
// old to next. Used by the roles screen to preview an edit.
func (r *Registry) Diff(old, next Mask64) (added, removed []string) {
	return r.Names(next.Without(old)), r.Names(old.Without(next))
}
