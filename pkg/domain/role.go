package domain

import (
	"strings"

	dErrors "civictrust/pkg/domain-errors"
)

// Role is the civic role a citizen holds on the platform.
// Invariant: the value must be one of the seven supported roles.
//
// Usage: construct via ParseRole at trust boundaries; direct casting
// bypasses validation and resolves to the degraded privilege posture.
type Role string

// Supported roles, from least to most privileged.
const (
	RoleAnonymousCitizen  Role = "ANONYMOUS_CITIZEN"
	RoleActiveCitizen     Role = "ACTIVE_CITIZEN"
	RoleJournalist        Role = "JOURNALIST"
	RoleCommunityLeader   Role = "COMMUNITY_LEADER"
	RolePublicOfficial    Role = "PUBLIC_OFFICIAL"
	RoleRegionalModerator Role = "REGIONAL_MODERATOR"
	RolePlatformEngineer  Role = "PLATFORM_ENGINEER"
)

// validRoles is the single source of truth for valid roles.
var validRoles = map[Role]bool{
	RoleAnonymousCitizen:  true,
	RoleActiveCitizen:     true,
	RoleJournalist:        true,
	RoleCommunityLeader:   true,
	RolePublicOfficial:    true,
	RoleRegionalModerator: true,
	RolePlatformEngineer:  true,
}

// AllRoles lists every role in privilege order.
func AllRoles() []Role {
	return []Role{
		RoleAnonymousCitizen,
		RoleActiveCitizen,
		RoleJournalist,
		RoleCommunityLeader,
		RolePublicOfficial,
		RoleRegionalModerator,
		RolePlatformEngineer,
	}
}

// ParseRole constructs a Role from external input. Case-insensitive.
//
// Errors: returns CodeValidation when the value is empty or unsupported.
func ParseRole(s string) (Role, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "role is required")
	}
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unsupported role")
	}
	return r, nil
}

// IsValid checks if the role is one of the supported enum values.
func (r Role) IsValid() bool {
	return validRoles[r]
}

func (r Role) String() string {
	return string(r)
}
