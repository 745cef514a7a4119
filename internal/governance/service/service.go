// Package service orchestrates regional signature pools: it admits weighted
// signatures, seals pools under a Merkle root and serves inclusion proofs.
//
// The orchestrator holds no locks of its own. Every state change goes
// through the store's atomic primitives (Append and CompareAndSeal), so the
// same code is correct over the in-memory, Redis and PostgreSQL stores.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"civictrust/internal/geography"
	"civictrust/internal/governance/metrics"
	"civictrust/internal/governance/models"
	"civictrust/internal/governance/ports"
	"civictrust/internal/ledger/merkle"
	"civictrust/pkg/domain"
	dErrors "civictrust/pkg/domain-errors"
	"civictrust/pkg/platform/audit"
	"civictrust/pkg/platform/sentinel"
	"civictrust/pkg/requestcontext"
)

const tracerName = "civictrust/internal/governance/service"

const defaultMaxSealAttempts = 3

// Why an ingest asked for a seal.
const (
	sealReasonQuorum  = "quorum_reached"
	sealReasonFull    = "leaf_ceiling"
	sealReasonRecheck = "quorum_recheck"
)

// Store is the pool persistence port.
type Store interface {
	// Append adds rec to the pool for (rec.RegionSlug, rec.TargetComplaintID),
	// opening it at openedAt if needed, and returns the pool as it stood
	// right after rec landed. ErrInvalidState means the pool is sealed,
	// ErrDuplicate that the citizen already signed the target, ErrCapacity
	// that the pool already holds maxLeaves signatures (maxLeaves <= 0 means
	// no cap).
	Append(ctx context.Context, rec models.SignatureRecord, openedAt time.Time, maxLeaves int) (*models.Pool, error)
	FindByID(ctx context.Context, id domain.PoolID) (*models.Pool, error)
	List(ctx context.Context, filter models.ListFilter) ([]models.Snapshot, error)
	// CompareAndSeal seals the pool only if it is open and still holds
	// expectedLeafCount signatures. ErrConflict means a signature landed
	// after the root was computed.
	CompareAndSeal(ctx context.Context, id domain.PoolID, expectedLeafCount int, root domain.HexDigest, sealedAt time.Time) (*models.Pool, error)
}

type Service struct {
	pools     Store
	sealer    *merkle.Sealer
	citizens  ports.CitizenDirectory
	regions   geography.Resolver
	scheduler ports.SealScheduler
	announcer ports.SealAnnouncer
	auditor   audit.Sink
	formatter *audit.Formatter
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer

	quorum          int
	maxSealAttempts int
}

type Option func(*Service)

func WithSealer(sealer *merkle.Sealer) Option {
	return func(s *Service) {
		if sealer != nil {
			s.sealer = sealer
		}
	}
}

// WithCitizenDirectory and WithRegionResolver are required for Endorse.
func WithCitizenDirectory(d ports.CitizenDirectory) Option {
	return func(s *Service) {
		s.citizens = d
	}
}

func WithRegionResolver(r geography.Resolver) Option {
	return func(s *Service) {
		s.regions = r
	}
}

// WithQuorum enables auto-sealing: the signature that brings a pool's total
// weight to weight schedules a seal, as does the one that fills the pool to
// the sealer's leaf ceiling.
func WithQuorum(weight int, scheduler ports.SealScheduler) Option {
	return func(s *Service) {
		if weight > 0 && scheduler != nil {
			s.quorum = weight
			s.scheduler = scheduler
		}
	}
}

func WithSealAnnouncer(a ports.SealAnnouncer) Option {
	return func(s *Service) {
		s.announcer = a
	}
}

func WithMaxSealAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSealAttempts = n
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

func New(pools Store, opts ...Option) (*Service, error) {
	if pools == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "pool store is required")
	}
	s := &Service{
		pools:           pools,
		sealer:          merkle.NewSealer(),
		auditor:         audit.NopSink{},
		formatter:       audit.NewFormatter("en"),
		logger:          slog.Default(),
		tracer:          otel.Tracer(tracerName),
		maxSealAttempts: defaultMaxSealAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IngestSignature admits one weighted signature into poolID. The pool id
// must be the one derived from the intent's region and target.
func (s *Service) IngestSignature(ctx context.Context, poolID domain.PoolID, intent models.SignatureIntent) (*models.Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "governance.IngestSignature", trace.WithAttributes(
		attribute.String("pool_id", poolID.String()),
		attribute.String("region_slug", string(intent.RegionSlug)),
	))
	defer span.End()

	rec, err := intent.Record()
	if err != nil {
		return nil, s.rejectIngest(ctx, span, poolID, intent.CitizenID, err)
	}
	if want := domain.PoolIDFor(rec.RegionSlug, rec.TargetComplaintID); want != poolID {
		err := dErrors.New(dErrors.CodeValidation, "pool id does not match region and target").
			WithRemediation("address the pool derived from region_slug and target_complaint_id: " + want.String())
		return nil, s.rejectIngest(ctx, span, poolID, intent.CitizenID, err)
	}

	pool, err := s.pools.Append(ctx, rec, requestcontext.Now(ctx).UTC(), s.sealer.Ceiling())
	if err != nil {
		return nil, s.rejectIngest(ctx, span, poolID, intent.CitizenID, translateAppendErr(err, s.sealer.Ceiling()))
	}
	signed, _ := pool.SignatureOf(rec.CitizenID)

	s.metrics.IncIngest("accepted")
	s.logger.InfoContext(ctx, "signature ingested",
		"pool_id", pool.ID.String(),
		"citizen_id", rec.CitizenID.String(),
		"weight", rec.Weight,
		"total_weight", pool.TotalWeight,
		"seq", signed.Seq,
	)
	s.auditor.Emit(ctx, audit.Event{
		Operation:     audit.OpSignatureIngested,
		CorrelationID: requestcontext.RequestID(ctx),
		Subject:       pool.ID.String(),
		Message:       s.formatter.SignatureIngested(string(pool.RegionSlug), rec.Weight, pool.TotalWeight, pool.LeafCount()),
		Metadata: map[string]any{
			"citizen_id":   rec.CitizenID.String(),
			"leaf_hash":    rec.LeafHash.String(),
			"weight":       rec.Weight,
			"total_weight": pool.TotalWeight,
		},
	})

	if reason, ok := s.sealTrigger(pool, rec.Weight); ok {
		s.scheduleSeal(ctx, pool, reason)
	}

	snap := pool.Snapshot()
	span.SetAttributes(attribute.Int("total_weight", snap.TotalWeight))
	return &snap, nil
}

func (s *Service) rejectIngest(ctx context.Context, span trace.Span, poolID domain.PoolID, citizen domain.CitizenID, err error) error {
	code := dErrors.CodeOf(err)
	s.metrics.IncIngest(string(code))
	markSpan(span, err)

	level := slog.LevelWarn
	if code == dErrors.CodeInternal || code == dErrors.CodeUnavailable {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "signature rejected",
		"pool_id", poolID.String(),
		"citizen_id", citizen.String(),
		"code", code,
		"error", err,
	)
	if code == dErrors.CodeDuplicateEndorsement || code == dErrors.CodeIllegalStateTransition || code == dErrors.CodeConfigurationGap {
		s.auditor.Emit(ctx, audit.Event{
			Severity:      audit.SeverityWarning,
			Operation:     audit.OpSignatureRejected,
			CorrelationID: requestcontext.RequestID(ctx),
			Subject:       poolID.String(),
			Message:       err.Error(),
			Metadata:      map[string]any{"citizen_id": citizen.String(), "code": string(code)},
		})
	}
	return s.correlate(ctx, err)
}

// sealTrigger decides whether the ingest that produced pool should queue a
// seal. pool is the state right after the ingest, so exactly one ingest sees
// the quorum crossing. Every later ingest on an open pool past quorum asks
// again; the scheduler dedupes per pool, which gives a failed enqueue
// another chance.
func (s *Service) sealTrigger(pool *models.Pool, weight int) (string, bool) {
	if s.scheduler == nil {
		return "", false
	}
	reached := s.quorum > 0 && pool.TotalWeight >= s.quorum
	switch {
	case reached && pool.TotalWeight-weight < s.quorum:
		return sealReasonQuorum, true
	case pool.LeafCount() >= s.sealer.Ceiling():
		return sealReasonFull, true
	case reached:
		return sealReasonRecheck, true
	}
	return "", false
}

func (s *Service) scheduleSeal(ctx context.Context, pool *models.Pool, reason string) {
	if err := s.scheduler.ScheduleSeal(ctx, pool.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to schedule seal",
			"pool_id", pool.ID.String(),
			"total_weight", pool.TotalWeight,
			"reason", reason,
			"error", err,
		)
		return
	}
	if reason == sealReasonRecheck {
		s.logger.DebugContext(ctx, "seal requested again",
			"pool_id", pool.ID.String(),
			"total_weight", pool.TotalWeight,
		)
		return
	}
	s.metrics.IncSealScheduled()
	s.auditor.Emit(ctx, audit.Event{
		Operation:     audit.OpSealScheduled,
		CorrelationID: requestcontext.RequestID(ctx),
		Subject:       pool.ID.String(),
		Metadata: map[string]any{
			"total_weight": pool.TotalWeight,
			"leaf_count":   pool.LeafCount(),
			"quorum":       s.quorum,
			"reason":       reason,
		},
	})
}

// SealPool computes the Merkle root over the pool's signatures in arrival
// order and commits it. A signature that lands between hashing and commit
// makes the commit fail; the seal is then recomputed, up to the configured
// number of attempts.
func (s *Service) SealPool(ctx context.Context, poolID domain.PoolID) (*merkle.SealResult, error) {
	ctx, span := s.tracer.Start(ctx, "governance.SealPool", trace.WithAttributes(
		attribute.String("pool_id", poolID.String()),
	))
	defer span.End()
	start := time.Now()

	var (
		result *merkle.SealResult
		sealed *models.Pool
		err    error
	)
	for attempt := 1; attempt <= s.maxSealAttempts; attempt++ {
		result, sealed, err = s.sealOnce(ctx, poolID)
		if !errors.Is(err, sentinel.ErrConflict) {
			break
		}
		s.metrics.IncSealRetry()
		s.logger.WarnContext(ctx, "pool changed while sealing, retrying",
			"pool_id", poolID.String(),
			"attempt", attempt,
		)
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			err = dErrors.New(dErrors.CodeConflict, "pool kept changing while sealing").
				WithRemediation("retry the seal once signature traffic settles")
		}
		err = translatePoolErr(err, "failed to seal pool")
		s.rejectSeal(ctx, span, poolID, err)
		return nil, s.correlate(ctx, err)
	}

	s.metrics.IncSeal("sealed")
	s.metrics.ObserveSeal(start, result.LeafCount, sealed.TotalWeight)
	span.SetAttributes(attribute.Int("leaf_count", result.LeafCount), attribute.String("merkle_root", result.Root.String()))
	s.logger.InfoContext(ctx, "pool sealed",
		"pool_id", poolID.String(),
		"region_slug", sealed.RegionSlug,
		"leaf_count", result.LeafCount,
		"total_weight", sealed.TotalWeight,
		"merkle_root", result.Root.String(),
	)
	s.auditor.Emit(ctx, audit.Event{
		Operation:     audit.OpPoolSealed,
		CorrelationID: requestcontext.RequestID(ctx),
		Subject:       poolID.String(),
		Message:       s.formatter.PoolSealed(string(sealed.RegionSlug), result.Root.String(), result.LeafCount, sealed.TotalWeight),
		Metadata: map[string]any{
			"region_slug":         string(sealed.RegionSlug),
			"target_complaint_id": sealed.TargetComplaintID.String(),
			"merkle_root":         result.Root.String(),
			"leaf_count":          result.LeafCount,
			"total_weight":        sealed.TotalWeight,
		},
	})
	s.announce(ctx, sealed)
	return result, nil
}

func (s *Service) sealOnce(ctx context.Context, poolID domain.PoolID) (*merkle.SealResult, *models.Pool, error) {
	pool, err := s.pools.FindByID(ctx, poolID)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.CanSeal(); err != nil {
		return nil, nil, err
	}
	result, err := s.sealer.Seal(pool.LeafHashes())
	if err != nil {
		return nil, nil, err
	}
	result.SealedAt = requestcontext.Now(ctx).UTC()

	sealed, err := s.pools.CompareAndSeal(ctx, poolID, result.LeafCount, result.Root, result.SealedAt)
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil, nil, dErrors.New(dErrors.CodeIllegalStateTransition, "pool already sealed")
		}
		return nil, nil, err
	}
	return &result, sealed, nil
}

func (s *Service) rejectSeal(ctx context.Context, span trace.Span, poolID domain.PoolID, err error) {
	code := dErrors.CodeOf(err)
	s.metrics.IncSeal(string(code))
	markSpan(span, err)

	if code == dErrors.CodeCryptographicFailure {
		s.logger.ErrorContext(ctx, "seal hashing failed", "pool_id", poolID.String(), "error", err)
	} else {
		s.logger.WarnContext(ctx, "seal rejected", "pool_id", poolID.String(), "code", code, "error", err)
	}
	s.auditor.Emit(ctx, audit.Event{
		Severity:      severityFor(code),
		Operation:     audit.OpSealRejected,
		CorrelationID: requestcontext.RequestID(ctx),
		Subject:       poolID.String(),
		Message:       err.Error(),
		Metadata:      map[string]any{"code": string(code)},
	})
}

// announce publishes the seal. The seal is already committed, so a failure
// here is recorded and never returned.
func (s *Service) announce(ctx context.Context, pool *models.Pool) {
	if s.announcer == nil {
		return
	}
	a := ports.SealAnnouncement{
		PoolID:            pool.ID,
		RegionSlug:        pool.RegionSlug,
		TargetComplaintID: pool.TargetComplaintID,
		MerkleRoot:        pool.MerkleRoot,
		LeafCount:         pool.LeafCount(),
		TotalWeight:       pool.TotalWeight,
	}
	if pool.SealedAt != nil {
		a.SealedAt = *pool.SealedAt
	}
	if err := s.announcer.AnnounceSeal(ctx, a); err != nil {
		s.metrics.IncAnnounceFailure()
		s.logger.ErrorContext(ctx, "failed to announce sealed pool",
			"pool_id", pool.ID.String(),
			"error", err,
		)
		s.auditor.Emit(ctx, audit.Event{
			Severity:      audit.SeverityError,
			Operation:     audit.OpSealAnnounceFailed,
			CorrelationID: requestcontext.RequestID(ctx),
			Subject:       pool.ID.String(),
			Message:       err.Error(),
			Metadata:      map[string]any{"merkle_root": pool.MerkleRoot.String()},
		})
	}
}

// GetPool returns the full pool including its signatures.
func (s *Service) GetPool(ctx context.Context, id domain.PoolID) (*models.Pool, error) {
	pool, err := s.pools.FindByID(ctx, id)
	if err != nil {
		return nil, s.correlate(ctx, translatePoolErr(err, "failed to load pool"))
	}
	return pool, nil
}

// GetPoolByTarget looks a pool up by its natural key.
func (s *Service) GetPoolByTarget(ctx context.Context, region domain.RegionSlug, target domain.ComplaintID) (*models.Pool, error) {
	return s.GetPool(ctx, domain.PoolIDFor(region, target))
}

func (s *Service) ListPools(ctx context.Context, filter models.ListFilter) ([]models.Snapshot, error) {
	snaps, err := s.pools.List(ctx, filter)
	if err != nil {
		return nil, s.correlate(ctx, translatePoolErr(err, "failed to list pools"))
	}
	return snaps, nil
}

// ProofResult is an inclusion proof for one signer of a sealed pool.
type ProofResult struct {
	PoolID    domain.PoolID    `json:"pool_id"`
	CitizenID domain.CitizenID `json:"citizen_id"`
	LeafHash  domain.HexDigest `json:"leaf_hash"`
	Proof     merkle.Proof     `json:"proof"`
}

// Proof builds the inclusion proof of citizen's signature in a sealed pool.
func (s *Service) Proof(ctx context.Context, poolID domain.PoolID, citizen domain.CitizenID) (*ProofResult, error) {
	ctx, span := s.tracer.Start(ctx, "governance.Proof", trace.WithAttributes(
		attribute.String("pool_id", poolID.String()),
	))
	defer span.End()

	pool, err := s.pools.FindByID(ctx, poolID)
	if err != nil {
		err = translatePoolErr(err, "failed to load pool")
		markSpan(span, err)
		return nil, s.correlate(ctx, err)
	}
	if !pool.IsSealed() {
		err := dErrors.New(dErrors.CodeIllegalStateTransition, "proofs are only issued for sealed pools").
			WithRemediation("seal the pool first")
		markSpan(span, err)
		return nil, s.correlate(ctx, err)
	}
	sig, ok := pool.SignatureOf(citizen)
	if !ok {
		err := dErrors.New(dErrors.CodeNotFound, "citizen has not signed this pool")
		markSpan(span, err)
		return nil, s.correlate(ctx, err)
	}
	proof, err := s.sealer.Prove(pool.LeafHashes(), sig.Seq)
	if err != nil {
		markSpan(span, err)
		return nil, s.correlate(ctx, err)
	}
	if proof.Root != pool.MerkleRoot {
		err := dErrors.New(dErrors.CodeCryptographicFailure, "recomputed root does not match the sealed root")
		s.logger.ErrorContext(ctx, "sealed pool failed re-verification",
			"pool_id", poolID.String(),
			"sealed_root", pool.MerkleRoot.String(),
			"recomputed_root", proof.Root.String(),
		)
		markSpan(span, err)
		return nil, s.correlate(ctx, err)
	}
	return &ProofResult{PoolID: poolID, CitizenID: citizen, LeafHash: sig.LeafHash, Proof: proof}, nil
}

func (s *Service) correlate(ctx context.Context, err error) error {
	return dErrors.Correlate(err, requestcontext.RequestID(ctx))
}

func markSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
}

func severityFor(code dErrors.Code) audit.Severity {
	switch code.DefaultSeverity() {
	case dErrors.SeverityCritical:
		return audit.SeverityCritical
	case dErrors.SeverityError:
		return audit.SeverityError
	default:
		return audit.SeverityWarning
	}
}

func translateAppendErr(err error, ceiling int) error {
	switch {
	case errors.Is(err, sentinel.ErrCapacity):
		return dErrors.Newf(dErrors.CodeIllegalStateTransition, "pool is full at %d signatures", ceiling).
			WithRemediation("the pool must be sealed; no further signatures are accepted")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeIllegalStateTransition, "pool is sealed").
			WithRemediation("sealed pools are immutable; the endorsement window has closed")
	case errors.Is(err, sentinel.ErrDuplicate):
		return dErrors.New(dErrors.CodeDuplicateEndorsement, "citizen already endorsed this complaint")
	}
	return translatePoolErr(err, "failed to ingest signature")
}

func translatePoolErr(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "pool not found")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
