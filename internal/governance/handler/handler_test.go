package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civictrust/internal/geography"
	"civictrust/internal/governance/adapters"
	"civictrust/internal/governance/models"
	"civictrust/internal/governance/service"
	poolstore "civictrust/internal/governance/store/pool"
	identitymodels "civictrust/internal/identity/models"
	citizenstore "civictrust/internal/identity/store/citizen"
	"civictrust/internal/ledger/merkle"
	"civictrust/pkg/domain"
	"civictrust/pkg/testutil"
)

var fixedNow = time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	router    http.Handler
	citizens  *citizenstore.InMemory
	complaint domain.ComplaintID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	citizens := citizenstore.NewInMemory()
	svc, err := service.New(poolstore.NewInMemory(),
		service.WithCitizenDirectory(adapters.NewIdentityDirectory(citizens)),
		service.WithRegionResolver(geography.NewStaticResolver(nil)),
		service.WithLogger(logger),
	)
	require.NoError(t, err)

	h := New(svc, logger)
	r := chi.NewRouter()
	h.Register(r)
	h.RegisterCitizen(r)
	h.RegisterAdmin(r)
	return &fixture{router: r, citizens: citizens, complaint: domain.ComplaintID(uuid.New())}
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	return testutil.DoRequest(f.router, testutil.WithRequestMetadata(req, "req-handler", fixedNow))
}

func (f *fixture) citizen(t *testing.T, role domain.Role, level domain.AssuranceLevel, anchor *identitymodels.GeoAnchor) string {
	t.Helper()
	c, err := identitymodels.NewCitizen(domain.CitizenID(uuid.New()), role, level, anchor, fixedNow)
	require.NoError(t, err)
	require.NoError(t, f.citizens.Create(context.Background(), c))
	return c.ID.String()
}

func (f *fixture) ingestBody(t *testing.T, region string, level domain.AssuranceLevel) map[string]any {
	t.Helper()
	citizen := domain.CitizenID(uuid.New())
	leaf, err := models.LeafHash(citizen, f.complaint, domain.RegionSlug(region), level, fixedNow)
	require.NoError(t, err)
	return map[string]any{
		"citizen_id":          citizen.String(),
		"assurance_level":     string(level),
		"region_slug":         region,
		"target_complaint_id": f.complaint.String(),
		"leaf_hash":           leaf.String(),
	}
}

func (f *fixture) poolPath(region string) string {
	return "/v1/pools/" + domain.PoolIDFor(domain.RegionSlug(region), f.complaint).String()
}

func TestIngestAndSeal(t *testing.T) {
	f := newFixture(t)
	path := f.poolPath("pt-lisboa")
	first := f.ingestBody(t, "pt-lisboa", domain.AssuranceSovereignVerified)

	t.Run("an open pool takes its first signature", func(t *testing.T) {
		rr := f.do(t, testutil.NewJSONRequest(t, http.MethodPost, path+"/signatures", first))
		testutil.AssertStatus(t, rr, http.StatusCreated)
		snap := testutil.UnmarshalResponse[models.Snapshot](t, rr)
		assert.Equal(t, 20, snap.TotalWeight)
		assert.Equal(t, models.StatusOpen, snap.Status)
	})

	t.Run("the same citizen cannot sign again", func(t *testing.T) {
		rr := f.do(t, testutil.NewJSONRequest(t, http.MethodPost, path+"/signatures", first))
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "duplicate_endorsement")
	})

	t.Run("sealing publishes the root", func(t *testing.T) {
		rr := f.do(t, testutil.NewRequest(t, http.MethodPost, path+"/seal"))
		testutil.AssertStatusOK(t, rr)
		resp := testutil.UnmarshalResponse[SealResponse](t, rr)
		assert.Equal(t, first["leaf_hash"], resp.MerkleRoot)
		assert.Equal(t, 1, resp.LeafCount)
		assert.True(t, resp.SealedAt.Equal(fixedNow))

		rr = f.do(t, testutil.NewRequest(t, http.MethodPost, path+"/seal"))
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "illegal_state_transition")

		rr = f.do(t, testutil.NewJSONRequest(t, http.MethodPost, path+"/signatures", f.ingestBody(t, "pt-lisboa", domain.AssuranceUnverified)))
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "illegal_state_transition")
	})
}

func TestIngestRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	path := f.poolPath("pt-lisboa")

	tests := []struct {
		name       string
		path       string
		mutate     func(body map[string]any)
		wantStatus int
		wantCode   string
	}{
		{name: "malformed pool id", path: "/v1/pools/not-a-uuid/signatures", wantStatus: http.StatusBadRequest, wantCode: "validation_error"},
		{name: "pool of another region", path: f.poolPath("pt-porto") + "/signatures", wantStatus: http.StatusBadRequest, wantCode: "validation_error"},
		{name: "short leaf", mutate: func(b map[string]any) { b["leaf_hash"] = "abcd" }, wantStatus: http.StatusBadRequest, wantCode: "validation_error"},
		{name: "bad region", mutate: func(b map[string]any) { b["region_slug"] = "pt lisboa" }, wantStatus: http.StatusBadRequest, wantCode: "validation_error"},
		{name: "unmapped assurance", mutate: func(b map[string]any) { b["assurance_level"] = "BIOMETRIC" }, wantStatus: http.StatusUnprocessableEntity, wantCode: "configuration_gap"},
		{name: "unknown field", mutate: func(b map[string]any) { b["weight"] = 1000 }, wantStatus: http.StatusBadRequest, wantCode: "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := f.ingestBody(t, "pt-lisboa", domain.AssuranceUnverified)
			if tt.mutate != nil {
				tt.mutate(body)
			}
			p := tt.path
			if p == "" {
				p = path + "/signatures"
			}
			rr := f.do(t, testutil.NewJSONRequest(t, http.MethodPost, p, body))
			testutil.AssertStatusAndError(t, rr, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestEndorse(t *testing.T) {
	f := newFixture(t)
	path := "/v1/complaints/" + f.complaint.String() + "/endorsements"
	anchor := &identitymodels.GeoAnchor{Country: "Brazil", Locality: "Belo Horizonte"}

	t.Run("requires a citizen", func(t *testing.T) {
		rr := f.do(t, testutil.NewRequest(t, http.MethodPost, path))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("anchored citizen without body", func(t *testing.T) {
		id := f.citizen(t, domain.RoleActiveCitizen, domain.AssuranceDocumentVerified, anchor)
		rr := f.do(t, testutil.WithCitizen(testutil.NewRequest(t, http.MethodPost, path), id))
		testutil.AssertStatus(t, rr, http.StatusCreated)
		res := testutil.UnmarshalResponse[service.EndorsementResult](t, rr)
		assert.Equal(t, domain.RegionSlug("br-belo-horizonte"), res.Pool.RegionSlug)
		assert.Equal(t, 5, res.Weight)

		rr = f.do(t, testutil.WithCitizen(testutil.NewRequest(t, http.MethodPost, path), id))
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "duplicate_endorsement")
	})

	t.Run("region hint in body", func(t *testing.T) {
		id := f.citizen(t, domain.RoleJournalist, domain.AssuranceUnverified, nil)
		req := testutil.NewJSONRequest(t, http.MethodPost, path, map[string]string{"region_hint": " MX-Puebla "})
		rr := f.do(t, testutil.WithCitizen(req, id))
		testutil.AssertStatus(t, rr, http.StatusCreated)
		res := testutil.UnmarshalResponse[service.EndorsementResult](t, rr)
		assert.Equal(t, domain.RegionSlug("mx-puebla"), res.Pool.RegionSlug)
	})

	t.Run("overlong region hint is rejected before the service", func(t *testing.T) {
		id := f.citizen(t, domain.RoleJournalist, domain.AssuranceUnverified, nil)
		req := testutil.NewJSONRequest(t, http.MethodPost, path, map[string]string{"region_hint": "mx-" + strings.Repeat("a", 62)})
		rr := f.do(t, testutil.WithCitizen(req, id))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
	})

	t.Run("anonymous role is forbidden", func(t *testing.T) {
		id := f.citizen(t, domain.RoleAnonymousCitizen, domain.AssuranceSovereignVerified, anchor)
		rr := f.do(t, testutil.WithCitizen(testutil.NewRequest(t, http.MethodPost, path), id))
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
	})

	t.Run("unknown citizen", func(t *testing.T) {
		rr := f.do(t, testutil.WithCitizen(testutil.NewRequest(t, http.MethodPost, path), uuid.NewString()))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})
}

func TestReadEndpoints(t *testing.T) {
	f := newFixture(t)
	lisboa := f.poolPath("pt-lisboa")
	signer := f.ingestBody(t, "pt-lisboa", domain.AssuranceDocumentVerified)
	testutil.AssertStatus(t, f.do(t, testutil.NewJSONRequest(t, http.MethodPost, lisboa+"/signatures", signer)), http.StatusCreated)
	testutil.AssertStatus(t, f.do(t, testutil.NewJSONRequest(t, http.MethodPost, lisboa+"/signatures", f.ingestBody(t, "pt-lisboa", domain.AssuranceUnverified))), http.StatusCreated)
	testutil.AssertStatus(t, f.do(t, testutil.NewJSONRequest(t, http.MethodPost, f.poolPath("pt-porto")+"/signatures", f.ingestBody(t, "pt-porto", domain.AssuranceUnverified))), http.StatusCreated)

	t.Run("get pool lists signatures in order", func(t *testing.T) {
		rr := f.do(t, testutil.NewRequest(t, http.MethodGet, lisboa))
		testutil.AssertStatusOK(t, rr)
		resp := testutil.UnmarshalResponse[PoolResponse](t, rr)
		require.Len(t, resp.Signatures, 2)
		assert.Equal(t, signer["citizen_id"], resp.Signatures[0].CitizenID)
		assert.Equal(t, 6, resp.TotalWeight)
	})

	t.Run("list filters by repeated region", func(t *testing.T) {
		rr := f.do(t, testutil.NewRequest(t, http.MethodGet, "/v1/pools?region=PT-LISBOA&region=pt-lisboa&status=open"))
		testutil.AssertStatusOK(t, rr)
		resp := testutil.UnmarshalResponse[PoolListResponse](t, rr)
		require.Equal(t, 1, resp.Count)
		assert.Equal(t, domain.RegionSlug("pt-lisboa"), resp.Pools[0].RegionSlug)
	})

	t.Run("list rejects bad filters", func(t *testing.T) {
		for _, q := range []string{"status=pending", "limit=0", "limit=x", "region=a%20b"} {
			rr := f.do(t, testutil.NewRequest(t, http.MethodGet, "/v1/pools?"+q))
			testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
		}
	})

	t.Run("proof requires a sealed pool", func(t *testing.T) {
		rr := f.do(t, testutil.NewRequest(t, http.MethodGet, lisboa+"/proofs/"+signer["citizen_id"].(string)))
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "illegal_state_transition")
	})

	t.Run("proof verifies after seal", func(t *testing.T) {
		testutil.AssertStatusOK(t, f.do(t, testutil.NewRequest(t, http.MethodPost, lisboa+"/seal")))
		rr := f.do(t, testutil.NewRequest(t, http.MethodGet, lisboa+"/proofs/"+signer["citizen_id"].(string)))
		testutil.AssertStatusOK(t, rr)
		resp := testutil.UnmarshalResponse[service.ProofResult](t, rr)
		ok, err := merkle.Verify(resp.LeafHash, resp.Proof)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("missing pool", func(t *testing.T) {
		rr := f.do(t, testutil.NewRequest(t, http.MethodGet, "/v1/pools/"+uuid.NewString()))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})
}
