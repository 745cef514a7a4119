package governance

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POSTWithHeaders(path string, body any, headers map[string]string) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (any, error)
	StatusCode() int
	Body() []byte
	AdminHeaders() map[string]string
	Save(key, value string)
	Saved(key string) (string, error)
}

// RegisterSteps registers citizen, endorsement and sealing steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &governanceSteps{tc: tc}

	ctx.Step(`^a new complaint "([^"]*)"$`, steps.newComplaint)
	ctx.Step(`^a citizen "([^"]*)" with role "([^"]*)" and assurance "([^"]*)" living in "([^"]*)", "([^"]*)"$`, steps.registerAnchoredCitizen)
	ctx.Step(`^a citizen "([^"]*)" with role "([^"]*)" and assurance "([^"]*)" without a geo anchor$`, steps.registerUnanchoredCitizen)
	ctx.Step(`^"([^"]*)" receives impact "([^"]*)" with multiplier ([\d.]+)$`, steps.applyImpact)
	ctx.Step(`^"([^"]*)" endorses complaint "([^"]*)"$`, steps.endorse)
	ctx.Step(`^"([^"]*)" endorses complaint "([^"]*)" with region hint "([^"]*)"$`, steps.endorseWithHint)
	ctx.Step(`^"([^"]*)" endorses complaint "([^"]*)" without a token$`, steps.endorseAnonymously)
	ctx.Step(`^the operator seals pool "([^"]*)"$`, steps.seal)
	ctx.Step(`^I fetch pool "([^"]*)"$`, steps.fetchPool)
	ctx.Step(`^I request the proof of "([^"]*)" in pool "([^"]*)"$`, steps.requestProof)
}

type governanceSteps struct {
	tc TestContext
}

func newUUID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16]), nil
}

func (s *governanceSteps) newComplaint(_ context.Context, name string) error {
	id, err := newUUID()
	if err != nil {
		return err
	}
	s.tc.Save("complaint:"+name, id)
	return nil
}

func (s *governanceSteps) registerAnchoredCitizen(ctx context.Context, name, role, assurance, country, locality string) error {
	return s.register(ctx, name, map[string]any{
		"role":            role,
		"assurance_level": assurance,
		"geo_anchor":      map[string]string{"country": country, "locality": locality},
	})
}

func (s *governanceSteps) registerUnanchoredCitizen(ctx context.Context, name, role, assurance string) error {
	return s.register(ctx, name, map[string]any{
		"role":            role,
		"assurance_level": assurance,
	})
}

// register creates the citizen and issues it a token through the admin API.
func (s *governanceSteps) register(_ context.Context, name string, body map[string]any) error {
	if err := s.tc.POSTWithHeaders("/v1/citizens", body, s.tc.AdminHeaders()); err != nil {
		return err
	}
	if s.tc.StatusCode() != 201 {
		return fmt.Errorf("register %s: status %d: %s", name, s.tc.StatusCode(), s.tc.Body())
	}
	id, err := s.tc.GetResponseField("citizen_id")
	if err != nil {
		return err
	}
	s.tc.Save("citizen:"+name, fmt.Sprint(id))

	if err := s.tc.POSTWithHeaders("/v1/admin/tokens", map[string]any{"citizen_id": id}, s.tc.AdminHeaders()); err != nil {
		return err
	}
	if s.tc.StatusCode() != 201 {
		return fmt.Errorf("issue token for %s: status %d: %s", name, s.tc.StatusCode(), s.tc.Body())
	}
	token, err := s.tc.GetResponseField("access_token")
	if err != nil {
		return err
	}
	s.tc.Save("token:"+name, fmt.Sprint(token))
	return nil
}

func (s *governanceSteps) applyImpact(_ context.Context, name, impact string, multiplier float64) error {
	id, err := s.tc.Saved("citizen:" + name)
	if err != nil {
		return err
	}
	return s.tc.POSTWithHeaders("/v1/citizens/"+id+"/impacts", map[string]any{
		"impact_type":       impact,
		"neural_multiplier": multiplier,
	}, s.tc.AdminHeaders())
}

func (s *governanceSteps) endorse(ctx context.Context, name, complaint string) error {
	return s.endorseWith(ctx, name, complaint, nil, true)
}

func (s *governanceSteps) endorseWithHint(ctx context.Context, name, complaint, hint string) error {
	return s.endorseWith(ctx, name, complaint, map[string]string{"region_hint": hint}, true)
}

func (s *governanceSteps) endorseAnonymously(ctx context.Context, name, complaint string) error {
	return s.endorseWith(ctx, name, complaint, nil, false)
}

func (s *governanceSteps) endorseWith(_ context.Context, name, complaint string, body any, withToken bool) error {
	complaintID, err := s.tc.Saved("complaint:" + complaint)
	if err != nil {
		return err
	}
	headers := map[string]string{}
	if withToken {
		token, err := s.tc.Saved("token:" + name)
		if err != nil {
			return err
		}
		headers["Authorization"] = "Bearer " + token
	}
	if err := s.tc.POSTWithHeaders("/v1/complaints/"+complaintID+"/endorsements", body, headers); err != nil {
		return err
	}
	if s.tc.StatusCode() == 201 {
		poolID, err := s.tc.GetResponseField("pool.pool_id")
		if err != nil {
			return err
		}
		s.tc.Save("pool:"+complaint, fmt.Sprint(poolID))
	}
	return nil
}

func (s *governanceSteps) seal(_ context.Context, complaint string) error {
	poolID, err := s.tc.Saved("pool:" + complaint)
	if err != nil {
		return err
	}
	return s.tc.POSTWithHeaders("/v1/pools/"+poolID+"/seal", nil, s.tc.AdminHeaders())
}

func (s *governanceSteps) fetchPool(_ context.Context, complaint string) error {
	poolID, err := s.tc.Saved("pool:" + complaint)
	if err != nil {
		return err
	}
	return s.tc.GET("/v1/pools/"+poolID, nil)
}

func (s *governanceSteps) requestProof(_ context.Context, name, complaint string) error {
	poolID, err := s.tc.Saved("pool:" + complaint)
	if err != nil {
		return err
	}
	citizenID, err := s.tc.Saved("citizen:" + name)
	if err != nil {
		return err
	}
	return s.tc.GET("/v1/pools/"+poolID+"/proofs/"+citizenID, nil)
}
