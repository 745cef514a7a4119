// Package privilege derives what a citizen may do from their role,
// reputation and identity assurance.
package privilege

import "civictrust/pkg/domain"

// SanctionThreshold is the reputation below which a citizen is sanctioned.
const SanctionThreshold = 0

// ModerationReputationFloor is the reputation a community leader needs
// before they may moderate regional entropy.
const ModerationReputationFloor = 500

// CapabilityAttributes are recomputed on every read and never persisted.
type CapabilityAttributes struct {
	CanPublishOriginalContent          bool `json:"can_publish_original_content"`
	CanEndorsePublicComplaints         bool `json:"can_endorse_public_complaints"`
	CanModerateRegionalEntropy         bool `json:"can_moderate_regional_entropy"`
	IsImmuneToAutoModeration           bool `json:"is_immune_to_auto_moderation"`
	VotingWeightMultiplier             int  `json:"voting_weight_multiplier"`
	IsOperatingInDegradedPrivilegeMode bool `json:"is_operating_in_degraded_privilege_mode"`
}

// roleRule is one row of the role table.
type roleRule struct {
	publish  bool
	endorse  bool
	moderate func(reputation int) bool
	immune   bool
	base     int
	// sanctionImmune roles keep their capabilities below the threshold.
	sanctionImmune bool
}

func always(int) bool { return true }
func never(int) bool  { return false }

var roleTable = map[domain.Role]roleRule{
	domain.RoleAnonymousCitizen: {moderate: never, base: 1},
	domain.RoleActiveCitizen:    {publish: true, endorse: true, moderate: never, base: 1},
	domain.RoleJournalist:       {publish: true, endorse: true, moderate: never, base: 1},
	domain.RoleCommunityLeader: {
		publish: true, endorse: true, base: 2,
		moderate: func(rep int) bool { return rep >= ModerationReputationFloor },
	},
	domain.RolePublicOfficial:    {publish: true, endorse: true, moderate: never, immune: true, base: 2},
	domain.RoleRegionalModerator: {publish: true, endorse: true, moderate: always, immune: true, base: 2},
	domain.RolePlatformEngineer:  {publish: true, endorse: true, moderate: always, immune: true, base: 1, sanctionImmune: true},
}

// Degraded is the posture of a sanctioned citizen, and of any role the
// table does not know.
func Degraded() CapabilityAttributes {
	return CapabilityAttributes{VotingWeightMultiplier: 1, IsOperatingInDegradedPrivilegeMode: true}
}

// Resolve is total and pure. It never fails: anything it cannot classify
// resolves to the degraded posture.
//
// Rule order:
//  1. Role table lookup (unknown role: degraded)
//  2. Assurance bonus on the voting weight
//  3. Sanction override below the threshold, except for the sanction-immune role
func Resolve(role domain.Role, reputation int, assurance domain.AssuranceLevel) CapabilityAttributes {
	rule, ok := roleTable[role]
	if !ok {
		return Degraded()
	}

	if reputation < SanctionThreshold && !rule.sanctionImmune {
		return Degraded()
	}

	return CapabilityAttributes{
		CanPublishOriginalContent:  rule.publish,
		CanEndorsePublicComplaints: rule.endorse,
		CanModerateRegionalEntropy: rule.moderate(reputation),
		IsImmuneToAutoModeration:   rule.immune,
		VotingWeightMultiplier:     rule.base * assuranceBonus(assurance),
	}
}

// assuranceBonus reads the canonical weight table. An unmapped level gets
// the lowest weight rather than an error.
func assuranceBonus(level domain.AssuranceLevel) int {
	if w, ok := level.Weight(); ok {
		return w
	}
	return 1
}
