// Package service owns citizen identities and is the only writer of
// reputation.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"civictrust/internal/identity/metrics"
	"civictrust/internal/identity/models"
	"civictrust/internal/privilege"
	"civictrust/internal/standing"
	"civictrust/pkg/domain"
	dErrors "civictrust/pkg/domain-errors"
	"civictrust/pkg/platform/audit"
	"civictrust/pkg/platform/sentinel"
	"civictrust/pkg/platform/tx"
	"civictrust/pkg/requestcontext"
)

// Store is the identity persistence port.
type Store interface {
	Create(ctx context.Context, c *models.Citizen) error
	FindByID(ctx context.Context, id domain.CitizenID) (*models.Citizen, error)
	FindByIDForUpdate(ctx context.Context, id domain.CitizenID) (*models.Citizen, error)
	UpdateStanding(ctx context.Context, c *models.Citizen, expectedVersion int64) error
}

const (
	defaultMaxCASAttempts = 3
	tracerName            = "civictrust/internal/identity/service"
)

type Service struct {
	citizens    Store
	calculator  *standing.Calculator
	tx          tx.Runner
	auditor     audit.Sink
	formatter   *audit.Formatter
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	maxAttempts int
}

type Option func(*Service)

func WithTxRunner(r tx.Runner) Option {
	return func(s *Service) {
		if r != nil {
			s.tx = r
		}
	}
}

func WithAuditor(a audit.Sink) Option {
	return func(s *Service) {
		if a != nil {
			s.auditor = a
		}
	}
}

func WithFormatter(f *audit.Formatter) Option {
	return func(s *Service) {
		s.formatter = f
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func New(citizens Store, calculator *standing.Calculator, opts ...Option) (*Service, error) {
	if citizens == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "citizen store is required")
	}
	s := &Service{
		citizens:    citizens,
		calculator:  calculator,
		tx:          tx.NewShardedRunner(),
		auditor:     audit.NopSink{},
		formatter:   audit.NewFormatter("en"),
		logger:      slog.Default(),
		tracer:      otel.Tracer(tracerName),
		maxAttempts: defaultMaxCASAttempts,
	}
	if s.calculator == nil {
		s.calculator = standing.NewCalculator(nil)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RegisterCommand describes a new citizen.
type RegisterCommand struct {
	ID        domain.CitizenID
	Role      domain.Role
	Assurance domain.AssuranceLevel
	GeoAnchor *models.GeoAnchor
}

// Register creates a citizen. A nil ID gets a fresh one.
func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*models.Citizen, error) {
	id := cmd.ID
	if id.IsNil() {
		id = domain.CitizenID(uuid.New())
	}
	ctx, span := s.tracer.Start(ctx, "identity.Register", trace.WithAttributes(
		attribute.String("citizen_id", id.String()),
		attribute.String("role", string(cmd.Role)),
	))
	defer span.End()

	c, err := models.NewCitizen(id, cmd.Role, cmd.Assurance, cmd.GeoAnchor, requestcontext.Now(ctx))
	if err != nil {
		markSpan(span, err)
		return nil, s.correlate(ctx, err)
	}
	if err := s.citizens.Create(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrDuplicate) {
			err = dErrors.New(dErrors.CodeConflict, "citizen already registered")
		} else {
			err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to register citizen")
		}
		markSpan(span, err)
		return nil, s.correlate(ctx, err)
	}
	s.logger.InfoContext(ctx, "citizen registered",
		"citizen_id", c.ID.String(),
		"role", c.Role,
		"assurance_level", c.AssuranceLevel,
	)
	return c, nil
}

// Get loads a citizen.
func (s *Service) Get(ctx context.Context, id domain.CitizenID) (*models.Citizen, error) {
	c, err := s.citizens.FindByID(ctx, id)
	if err != nil {
		return nil, s.correlate(ctx, translateStoreErr(err, "failed to load citizen"))
	}
	return c, nil
}

// ImpactOutcome is the result of a persisted standing change.
type ImpactOutcome struct {
	CitizenID        domain.CitizenID               `json:"citizen_id"`
	ImpactType       standing.ImpactType            `json:"impact_type"`
	PreviousScore    int                            `json:"previous_score"`
	Score            int                            `json:"score"`
	Delta            int                            `json:"delta"`
	Saturated        bool                           `json:"saturated"`
	ConfigurationGap bool                           `json:"configuration_gap"`
	Version          int64                          `json:"version"`
	Capabilities     privilege.CapabilityAttributes `json:"capabilities"`
}

// ApplyImpact runs the standing calculator against the stored score and
// persists the result with a version compare-and-swap, retrying a bounded
// number of times when a concurrent writer wins.
func (s *Service) ApplyImpact(ctx context.Context, id domain.CitizenID, ev standing.ImpactEvent) (*ImpactOutcome, error) {
	start := time.Now()
	defer s.metrics.ObserveApplyImpact(start)
	ctx, span := s.tracer.Start(ctx, "identity.ApplyImpact", trace.WithAttributes(
		attribute.String("citizen_id", id.String()),
		attribute.String("impact_type", string(ev.Type)),
	))
	defer span.End()

	var (
		outcome *ImpactOutcome
		err     error
	)
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		outcome, err = s.applyOnce(ctx, id, ev)
		if !errors.Is(err, sentinel.ErrConflict) {
			break
		}
		s.metrics.IncCASRetry()
		s.logger.WarnContext(ctx, "standing update lost race, retrying",
			"citizen_id", id.String(),
			"attempt", attempt,
		)
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			err = dErrors.New(dErrors.CodeConflict, "citizen standing changed concurrently").
				WithRemediation("retry the impact")
		}
		err = translateStoreErr(err, "failed to apply impact")
		markSpan(span, err)
		return nil, s.correlate(ctx, err)
	}

	span.SetAttributes(attribute.Int("score", outcome.Score), attribute.Int("delta", outcome.Delta))
	s.recordOutcome(ctx, outcome, ev)
	return outcome, nil
}

func (s *Service) applyOnce(ctx context.Context, id domain.CitizenID, ev standing.ImpactEvent) (*ImpactOutcome, error) {
	var outcome *ImpactOutcome
	err := s.tx.RunInTx(ctx, id.String(), func(ctx context.Context) error {
		c, err := s.citizens.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		res := s.calculator.Apply(c.ReputationScore, ev)
		if err := c.CanApplyStanding(res.Score); err != nil {
			return err
		}
		if res.Score != c.ReputationScore {
			expected := c.Version
			c.ApplyStanding(res.Score, requestcontext.Now(ctx))
			if err := s.citizens.UpdateStanding(ctx, c, expected); err != nil {
				return err
			}
		}
		outcome = &ImpactOutcome{
			CitizenID:        c.ID,
			ImpactType:       ev.Type,
			PreviousScore:    res.Previous,
			Score:            res.Score,
			Delta:            res.Delta,
			Saturated:        res.Saturated,
			ConfigurationGap: res.Gap,
			Version:          c.Version,
			Capabilities:     privilege.Resolve(c.Role, res.Score, c.AssuranceLevel),
		}
		return nil
	})
	return outcome, err
}

func (s *Service) recordOutcome(ctx context.Context, o *ImpactOutcome, ev standing.ImpactEvent) {
	correlationID := requestcontext.RequestID(ctx)
	if o.ConfigurationGap {
		s.metrics.IncConfigurationGap()
		s.logger.WarnContext(ctx, "impact type has no registered weight",
			"citizen_id", o.CitizenID.String(),
			"impact_type", ev.Type,
			"request_id", correlationID,
		)
		s.auditor.Emit(ctx, audit.Event{
			Severity:      audit.SeverityWarning,
			Operation:     audit.OpConfigurationGap,
			CorrelationID: correlationID,
			Subject:       o.CitizenID.String(),
			Message:       string(ev.Type) + " has no registered weight",
			Metadata:      map[string]any{"impact_type": string(ev.Type)},
		})
		return
	}

	s.metrics.IncImpactApplied(string(ev.Type))
	s.auditor.Emit(ctx, audit.Event{
		Severity:      audit.SeverityInfo,
		Operation:     audit.OpImpactApplied,
		CorrelationID: correlationID,
		Subject:       o.CitizenID.String(),
		Message:       s.formatter.ImpactApplied(string(ev.Type), o.PreviousScore, o.Score),
		Metadata: map[string]any{
			"impact_type":       string(ev.Type),
			"neural_multiplier": strconv.FormatFloat(ev.NeuralMultiplier, 'f', -1, 64),
			"previous_score":    o.PreviousScore,
			"score":             o.Score,
			"saturated":         o.Saturated,
		},
	})

	if o.PreviousScore >= privilege.SanctionThreshold && o.Score < privilege.SanctionThreshold {
		s.metrics.IncSanctioned()
		s.logger.WarnContext(ctx, "citizen fell below sanction threshold",
			"citizen_id", o.CitizenID.String(),
			"score", o.Score,
		)
	}
}

func (s *Service) correlate(ctx context.Context, err error) error {
	return dErrors.Correlate(err, requestcontext.RequestID(ctx))
}

func translateStoreErr(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "citizen not found")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

func markSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
}
