package standing

import (
	"slices"
	"strings"
	"sync"

	dErrors "civictrust/pkg/domain-errors"
)

// ImpactType names a kind of citizen action that moves reputation.
type ImpactType string

const (
	ImpactComplaintVerified  ImpactType = "COMPLAINT_VERIFIED"
	ImpactSupportReceived    ImpactType = "SUPPORT_RECEIVED"
	ImpactSupportGiven       ImpactType = "SUPPORT_GIVEN"
	ImpactSeniorityMilestone ImpactType = "SENIORITY_MILESTONE"
	ImpactEntropyDetected    ImpactType = "ENTROPY_DETECTED"
	ImpactFakeNewsConfirmed  ImpactType = "FAKE_NEWS_CONFIRMED"
)

var defaultWeights = map[ImpactType]int{
	ImpactComplaintVerified:  50,
	ImpactSupportReceived:    5,
	ImpactSupportGiven:       1,
	ImpactSeniorityMilestone: 10,
	ImpactEntropyDetected:    -100,
	ImpactFakeNewsConfirmed:  -500,
}

// Registry maps impact types to base weights. It is safe for concurrent use
// and may be extended at startup.
type Registry struct {
	mu      sync.RWMutex
	weights map[ImpactType]int
}

// NewRegistry returns a registry seeded with the default weights.
func NewRegistry() *Registry {
	r := &Registry{weights: make(map[ImpactType]int, len(defaultWeights))}
	for t, w := range defaultWeights {
		r.weights[t] = w
	}
	return r
}

// Register adds or replaces the weight for an impact type.
func (r *Registry) Register(t ImpactType, weight int) error {
	name := strings.TrimSpace(string(t))
	if name == "" {
		return dErrors.New(dErrors.CodeValidation, "impact type is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.weights[ImpactType(strings.ToUpper(name))] = weight
	return nil
}

// Weight returns the base weight and whether the type is mapped.
func (r *Registry) Weight(t ImpactType) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.weights[t]
	return w, ok
}

// Types lists the registered impact types in lexical order.
func (r *Registry) Types() []ImpactType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ImpactType, 0, len(r.weights))
	for t := range r.weights {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Parse resolves external input to a registered impact type. Unknown types
// are a configuration gap, not a validation error: the caller named
// something the engine has no weight for.
func (r *Registry) Parse(s string) (ImpactType, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "" {
		return "", dErrors.New(dErrors.CodeValidation, "impact_type is required")
	}
	t := ImpactType(name)
	if _, ok := r.Weight(t); !ok {
		return "", dErrors.Newf(dErrors.CodeConfigurationGap, "impact type %s has no registered weight", name).
			WithRemediation("register a weight for this impact type")
	}
	return t, nil
}
