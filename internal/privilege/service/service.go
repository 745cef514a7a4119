// Package service resolves privileges for stored citizens and audits every
// degraded outcome.
package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"civictrust/internal/privilege"
	"civictrust/internal/privilege/metrics"
	"civictrust/internal/privilege/ports"
	"civictrust/pkg/domain"
	dErrors "civictrust/pkg/domain-errors"
	"civictrust/pkg/platform/audit"
	"civictrust/pkg/requestcontext"
)

const tracerName = "civictrust/internal/privilege/service"

const (
	reasonSanctioned  = "sanctioned"
	reasonUnknownRole = "unknown_role"
)

type Service struct {
	citizens  ports.CitizenLookup
	auditor   audit.Sink
	formatter *audit.Formatter
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Service)

func WithAuditor(a audit.Sink) Option {
	return func(s *Service) {
		if a != nil {
			s.auditor = a
		}
	}
}

func WithFormatter(f *audit.Formatter) Option {
	return func(s *Service) { s.formatter = f }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func New(citizens ports.CitizenLookup, opts ...Option) *Service {
	s := &Service{
		citizens:  citizens,
		auditor:   audit.NopSink{},
		formatter: audit.NewFormatter("en"),
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolution pairs resolved capabilities with the inputs that produced them.
type Resolution struct {
	CitizenID       *domain.CitizenID              `json:"citizen_id,omitempty"`
	Role            domain.Role                    `json:"role"`
	ReputationScore int                            `json:"reputation_score"`
	AssuranceLevel  domain.AssuranceLevel          `json:"assurance_level"`
	Capabilities    privilege.CapabilityAttributes `json:"capabilities"`
}

// Resolve wraps the pure resolver with metrics and degraded-posture auditing.
func (s *Service) Resolve(ctx context.Context, role domain.Role, reputation int, assurance domain.AssuranceLevel) *Resolution {
	caps := privilege.Resolve(role, reputation, assurance)
	s.observe(ctx, "", role, reputation, caps)
	return &Resolution{
		Role:            role,
		ReputationScore: reputation,
		AssuranceLevel:  assurance,
		Capabilities:    caps,
	}
}

// ResolveForCitizen loads a citizen's standing and resolves it.
func (s *Service) ResolveForCitizen(ctx context.Context, id domain.CitizenID) (*Resolution, error) {
	ctx, span := s.tracer.Start(ctx, "privilege.ResolveForCitizen", trace.WithAttributes(
		attribute.String("citizen_id", id.String()),
	))
	defer span.End()

	if s.citizens == nil {
		err := dErrors.New(dErrors.CodeInternal, "citizen lookup not configured")
		markSpan(span, err)
		return nil, err
	}
	standing, err := s.citizens.Lookup(ctx, id)
	if err != nil {
		markSpan(span, err)
		return nil, dErrors.Correlate(err, requestcontext.RequestID(ctx))
	}
	caps := privilege.Resolve(standing.Role, standing.ReputationScore, standing.AssuranceLevel)
	span.SetAttributes(attribute.Bool("degraded", caps.IsOperatingInDegradedPrivilegeMode))
	s.observe(ctx, id.String(), standing.Role, standing.ReputationScore, caps)
	return &Resolution{
		CitizenID:       &standing.CitizenID,
		Role:            standing.Role,
		ReputationScore: standing.ReputationScore,
		AssuranceLevel:  standing.AssuranceLevel,
		Capabilities:    caps,
	}, nil
}

func (s *Service) observe(ctx context.Context, subject string, role domain.Role, reputation int, caps privilege.CapabilityAttributes) {
	s.metrics.IncResolution(string(role))
	if !caps.IsOperatingInDegradedPrivilegeMode {
		return
	}

	reason := reasonSanctioned
	if !role.IsValid() {
		reason = reasonUnknownRole
	}
	s.metrics.IncDegraded(reason)

	correlationID := requestcontext.RequestID(ctx)
	s.logger.WarnContext(ctx, "degraded privilege posture resolved",
		"citizen_id", subject,
		"role", role,
		"reputation_score", reputation,
		"reason", reason,
		"request_id", correlationID,
	)
	s.auditor.Emit(ctx, audit.Event{
		Severity:      audit.SeverityWarning,
		Operation:     audit.OpDegradedPrivilege,
		CorrelationID: correlationID,
		Subject:       subject,
		Message:       s.formatter.DegradedPrivilege(string(role), reputation),
		Metadata: map[string]any{
			"role":             string(role),
			"reputation_score": reputation,
			"reason":           reason,
		},
	})
}

func markSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
}
