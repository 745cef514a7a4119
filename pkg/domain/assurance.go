package domain

import (
	"strings"

	dErrors "civictrust/pkg/domain-errors"
)

// AssuranceLevel is the strength of a citizen's identity proof, modeled on
// NIST 800-63A identity assurance levels.
type AssuranceLevel string

const (
	AssuranceUnverified        AssuranceLevel = "UNVERIFIED"
	AssuranceDocumentVerified  AssuranceLevel = "DOCUMENT_VERIFIED"
	AssuranceSovereignVerified AssuranceLevel = "SOVEREIGN_VERIFIED"
)

// assuranceWeights is the canonical assurance weight table. It drives both
// the voting weight bonus in privilege resolution and the weight a signature
// contributes to a pool. Historical pools were weighted with it, so entries
// must never change in place.
var assuranceWeights = map[AssuranceLevel]int{
	AssuranceUnverified:        1,
	AssuranceDocumentVerified:  5,
	AssuranceSovereignVerified: 20,
}

// AllAssuranceLevels lists the levels from weakest to strongest.
func AllAssuranceLevels() []AssuranceLevel {
	return []AssuranceLevel{AssuranceUnverified, AssuranceDocumentVerified, AssuranceSovereignVerified}
}

// ParseAssuranceLevel constructs an AssuranceLevel from external input.
func ParseAssuranceLevel(s string) (AssuranceLevel, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "assurance_level is required")
	}
	a := AssuranceLevel(s)
	if !a.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unsupported assurance_level")
	}
	return a, nil
}

// IsValid checks if the level is one of the supported enum values.
func (a AssuranceLevel) IsValid() bool {
	_, ok := assuranceWeights[a]
	return ok
}

// Weight returns the canonical weight for the level. Unmapped levels report
// ok=false; callers decide whether that is a ConfigurationGap or a floor of 1.
func (a AssuranceLevel) Weight() (weight int, ok bool) {
	weight, ok = assuranceWeights[a]
	return weight, ok
}

func (a AssuranceLevel) String() string {
	return string(a)
}
