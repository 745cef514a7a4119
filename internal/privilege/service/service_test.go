package service

//go:generate mockgen -source=../ports/citizens.go -destination=mocks/mocks.go -package=mocks CitizenLookup

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/mock/gomock"

	"civictrust/internal/privilege/metrics"
	"civictrust/internal/privilege/ports"
	"civictrust/internal/privilege/service/mocks"
	"civictrust/pkg/domain"
	dErrors "civictrust/pkg/domain-errors"
	"civictrust/pkg/platform/audit"
	"civictrust/pkg/platform/audit/publisher"
	auditmemory "civictrust/pkg/platform/audit/store/memory"
	"civictrust/pkg/requestcontext"
	ctestutil "civictrust/pkg/testutil"
)

type PrivilegeServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	citizens   *mocks.MockCitizenLookup
	auditStore *auditmemory.InMemoryStore
	metrics    *metrics.Metrics
	service    *Service
	ctx        context.Context
}

func TestPrivilegeServiceSuite(t *testing.T) {
	suite.Run(t, new(PrivilegeServiceSuite))
}

func (s *PrivilegeServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.citizens = mocks.NewMockCitizenLookup(s.ctrl)
	s.auditStore = auditmemory.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = New(s.citizens,
		WithAuditor(publisher.NewPublisher(s.auditStore, publisher.WithLogger(logger))),
		WithLogger(logger),
		WithMetrics(s.metrics),
	)
	s.ctx = requestcontext.WithRequestID(context.Background(), "req-priv")
}

func (s *PrivilegeServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *PrivilegeServiceSuite) TestResolveForCitizen() {
	s.Run("resolves stored standing", func() {
		id := domain.CitizenID(uuid.New())
		s.citizens.EXPECT().Lookup(gomock.Any(), id).Return(&ports.CitizenStanding{
			CitizenID:       id,
			Role:            domain.RoleCommunityLeader,
			ReputationScore: 600,
			AssuranceLevel:  domain.AssuranceSovereignVerified,
		}, nil)

		res, err := s.service.ResolveForCitizen(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(id, *res.CitizenID)
		s.True(res.Capabilities.CanModerateRegionalEntropy)
		s.Equal(40, res.Capabilities.VotingWeightMultiplier)
	})

	s.Run("sanctioned citizen is degraded and audited", func() {
		id := domain.CitizenID(uuid.New())
		s.citizens.EXPECT().Lookup(gomock.Any(), id).Return(&ports.CitizenStanding{
			CitizenID:       id,
			Role:            domain.RoleActiveCitizen,
			ReputationScore: -50,
			AssuranceLevel:  domain.AssuranceUnverified,
		}, nil)

		res, err := s.service.ResolveForCitizen(s.ctx, id)
		s.Require().NoError(err)
		s.True(res.Capabilities.IsOperatingInDegradedPrivilegeMode)
		s.False(res.Capabilities.CanEndorsePublicComplaints)

		events, err := s.auditStore.ListByOperation(s.ctx, audit.OpDegradedPrivilege)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(id.String(), events[0].Subject)
		s.Equal("req-priv", events[0].CorrelationID)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.DegradedResolutions.WithLabelValues("sanctioned")))
	})

	s.Run("lookup errors carry the correlation id", func() {
		id := domain.CitizenID(uuid.New())
		s.citizens.EXPECT().Lookup(gomock.Any(), id).Return(nil, dErrors.New(dErrors.CodeNotFound, "citizen not found"))

		_, err := s.service.ResolveForCitizen(s.ctx, id)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		de, ok := dErrors.As(err)
		s.Require().True(ok)
		s.Equal("req-priv", de.CorrelationID)
	})
}

func (s *PrivilegeServiceSuite) TestResolveForCitizenSpans() {
	tracer := &ctestutil.RecordingTracer{}
	svc := New(s.citizens, WithTracer(tracer), WithMetrics(s.metrics),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	found := domain.CitizenID(uuid.New())
	s.citizens.EXPECT().Lookup(gomock.Any(), found).Return(&ports.CitizenStanding{
		CitizenID:       found,
		Role:            domain.RoleActiveCitizen,
		ReputationScore: -200,
		AssuranceLevel:  domain.AssuranceUnverified,
	}, nil)
	_, err := svc.ResolveForCitizen(s.ctx, found)
	s.Require().NoError(err)

	missing := domain.CitizenID(uuid.New())
	s.citizens.EXPECT().Lookup(gomock.Any(), missing).Return(nil, dErrors.New(dErrors.CodeNotFound, "citizen not found"))
	_, err = svc.ResolveForCitizen(s.ctx, missing)
	s.Require().Error(err)

	spans := tracer.Spans()
	s.Require().Len(spans, 2)
	s.Equal("privilege.ResolveForCitizen", spans[0].Name)
	s.Equal(found.String(), spans[0].Attributes["citizen_id"].AsString())
	s.True(spans[0].Attributes["degraded"].AsBool())
	s.Equal(codes.Unset, spans[0].StatusCode)
	s.True(spans[0].Ended)

	s.Equal(codes.Error, spans[1].StatusCode)
	s.Equal(string(dErrors.CodeNotFound), spans[1].Description)
	s.Len(spans[1].Errors, 1)
	s.True(spans[1].Ended)
}

func (s *PrivilegeServiceSuite) TestResolve() {
	s.Run("healthy posture is not audited", func() {
		res := s.service.Resolve(s.ctx, domain.RoleJournalist, 10, domain.AssuranceDocumentVerified)
		s.False(res.Capabilities.IsOperatingInDegradedPrivilegeMode)
		s.Equal(5, res.Capabilities.VotingWeightMultiplier)

		events, err := s.auditStore.ListAll(s.ctx)
		s.Require().NoError(err)
		s.Empty(events)
	})

	s.Run("unknown role is degraded with its own reason", func() {
		res := s.service.Resolve(s.ctx, domain.Role("ARCHON"), 100, domain.AssuranceUnverified)
		s.True(res.Capabilities.IsOperatingInDegradedPrivilegeMode)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.DegradedResolutions.WithLabelValues("unknown_role")))
	})

	s.Run("platform engineer stays privileged below the threshold", func() {
		res := s.service.Resolve(s.ctx, domain.RolePlatformEngineer, -900, domain.AssuranceUnverified)
		s.False(res.Capabilities.IsOperatingInDegradedPrivilegeMode)
		s.True(res.Capabilities.CanModerateRegionalEntropy)
	})
}
