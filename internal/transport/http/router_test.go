package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	govhandler "civictrust/internal/governance/handler"
	"civictrust/internal/governance/service"
	poolstore "civictrust/internal/governance/store/pool"
	jwttoken "civictrust/internal/jwt_token"
	"civictrust/internal/standing"
	standinghandler "civictrust/internal/standing/handler"
	"civictrust/pkg/platform/middleware/admin"
	"civictrust/pkg/platform/middleware/auth"
	"civictrust/pkg/platform/middleware/request"
	"civictrust/pkg/testutil"
)

type routerFixture struct {
	router http.Handler
}

func newRouterFixture(t *testing.T, writesPerMinute int, health map[string]HealthCheck) *routerFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hash, err := bcrypt.GenerateFromPassword([]byte("ops-token"), bcrypt.MinCost)
	require.NoError(t, err)

	pools, err := service.New(poolstore.NewInMemory(), service.WithLogger(logger))
	require.NoError(t, err)
	gov := govhandler.New(pools, logger)
	tokens := jwttoken.NewJWTService("router-key", "civictrust", "civictrust-api")

	router := NewRouter(Config{
		Logger:          logger,
		Registry:        prometheus.NewRegistry(),
		Public:          []Module{standinghandler.New(standing.NewCalculator(nil), logger), gov},
		Citizen:         []CitizenModule{gov},
		Admin:           []AdminModule{gov, jwttoken.NewHandler(tokens, nil, logger)},
		CitizenAuth:     auth.RequireCitizen(jwttoken.NewMiddlewareAdapter(tokens), nil, logger),
		AdminAuth:       admin.RequireAdminToken(string(hash), logger),
		WritesPerMinute: writesPerMinute,
		Health:          health,
	})
	return &routerFixture{router: router}
}

func TestRouterPlumbing(t *testing.T) {
	f := newRouterFixture(t, 0, map[string]HealthCheck{"postgres": func(context.Context) error { return nil }})

	t.Run("health", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "status", "ok")
		assert.NotEmpty(t, rr.Header().Get(request.HeaderRequestID))
		assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	})

	t.Run("public route", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/v1/standing/impact-types"))
		testutil.AssertStatusOK(t, rr)
	})

	t.Run("unknown route is json", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/v2/nothing"))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})

	t.Run("metrics", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
		testutil.AssertStatusOK(t, rr)
		assert.True(t, strings.Contains(rr.Body.String(), `route="/healthz"`))
	})
}

func TestRouterHealthDegraded(t *testing.T) {
	f := newRouterFixture(t, 0, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	testutil.AssertJSONContains(t, rr, "status", "degraded")
}

func TestRouterAudiences(t *testing.T) {
	f := newRouterFixture(t, 0, nil)
	complaint := uuid.NewString()
	endorse := "/v1/complaints/" + complaint + "/endorsements"

	t.Run("citizen routes need a token", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodPost, endorse))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("admin routes need the admin token", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodPost, "/v1/pools/"+uuid.NewString()+"/seal")
		req.Header.Set(admin.HeaderAdminToken, "wrong")
		rr := testutil.DoRequest(f.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("admin issues a token the citizen group accepts", func(t *testing.T) {
		citizen := uuid.NewString()
		req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/admin/tokens", map[string]any{"citizen_id": citizen})
		req.Header.Set(admin.HeaderAdminToken, "ops-token")
		rr := testutil.DoRequest(f.router, req)
		testutil.AssertStatus(t, rr, http.StatusCreated)
		issued := testutil.UnmarshalResponse[jwttoken.IssuedToken](t, rr)

		req = testutil.NewRequest(t, http.MethodPost, endorse)
		req.Header.Set("Authorization", "Bearer "+issued.Token)
		rr = testutil.DoRequest(f.router, req)
		// The token is accepted; the pool service has no citizen directory
		// wired, so the request fails past authentication.
		testutil.AssertStatus(t, rr, http.StatusInternalServerError)
	})
}

func TestRouterRateLimitsWrites(t *testing.T) {
	f := newRouterFixture(t, 2, nil)

	var last int
	for i := 0; i < 3; i++ {
		req := testutil.NewRequest(t, http.MethodPost, "/v1/pools/"+uuid.NewString()+"/seal")
		req.Header.Set(admin.HeaderAdminToken, "ops-token")
		last = testutil.DoRequest(f.router, req).Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
