package auth

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Role is the staff role carried inside a member token.
type Role string

const (
	RoleStaff      Role = "staff"
	RoleManagement Role = "management"
)

// ParseRole converts a role name into a Role.
func ParseRole(name string) (Role, error) {
	switch name {
	case "staff":
		return RoleStaff, nil
	case "management":
		return RoleManagement, nil
	}
	return "", fmt.Errorf("%w: invalid role %q", ErrMalformed, name)
}

// AccessorKind discriminates the two identity shapes a token can carry.
type AccessorKind string

const (
	// KindSystem is a service identity with full trust within its issuing
	// domain. A system token acts as a guarantor for delegated authorization.
	KindSystem AccessorKind = "system"
	// KindMember is an end-user identity scoped to a fixed set of apps.
	KindMember AccessorKind = "member"
)

// Accessor is the identity embedded in every issued token. The set of
// authorized apps is fixed at signing time; apps discovered later in a
// session are unlocked through delegated tokens, never by mutating this.
type Accessor struct {
	Kind           AccessorKind `json:"kind"`
	UserID         uint64       `json:"user_id,omitempty"`
	AuthorizedApps []uuid.UUID  `json:"authorized_apps,omitempty"`
	Role           Role         `json:"role,omitempty"`
}

// System returns the system accessor.
func System() Accessor {
	return Accessor{Kind: KindSystem}
}

// Member returns a member accessor for the given user, authorized for the
// given apps. The app list is copied and canonicalised so two accessors
// built from the same set compare equal.
func Member(userID uint64, apps []uuid.UUID, role Role) Accessor {
	sorted := slices.Clone(apps)
	slices.SortFunc(sorted, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	return Accessor{
		Kind:           KindMember,
		UserID:         userID,
		AuthorizedApps: sorted,
		Role:           role,
	}
}

// IsSystem reports whether the accessor is the system identity.
func (a Accessor) IsSystem() bool {
	return a.Kind == KindSystem
}

// HasApp reports whether appID is in the accessor's authorized set.
// Always false for the system accessor; callers grant system access
// unconditionally before consulting the set.
func (a Accessor) HasApp(appID uuid.UUID) bool {
	return slices.Contains(a.AuthorizedApps, appID)
}
