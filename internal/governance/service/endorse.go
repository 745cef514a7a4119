package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"civictrust/internal/governance/models"
	"civictrust/internal/governance/ports"
	"civictrust/internal/privilege"
	"civictrust/pkg/domain"
	dErrors "civictrust/pkg/domain-errors"
	"civictrust/pkg/platform/audit"
	"civictrust/pkg/platform/sentinel"
	"civictrust/pkg/requestcontext"
)

// EndorseCommand is a citizen's request to back a complaint.
type EndorseCommand struct {
	CitizenID   domain.CitizenID
	ComplaintID domain.ComplaintID
	// RegionHint is the region the client believes the citizen signs in. It
	// is required for citizens without a geo anchor and must agree with the
	// anchor otherwise.
	RegionHint string
}

// EndorsementResult reports the accepted signature and the pool after it.
type EndorsementResult struct {
	Pool         models.Snapshot                `json:"pool"`
	LeafHash     domain.HexDigest               `json:"leaf_hash"`
	Weight       int                            `json:"weight"`
	SignedAt     time.Time                      `json:"signed_at"`
	Capabilities privilege.CapabilityAttributes `json:"capabilities"`
}

// Endorse runs the full endorsement path: load the signer and probe the
// hinted pool concurrently, gate on privileges, resolve the region, derive
// the canonical leaf and ingest it.
func (s *Service) Endorse(ctx context.Context, cmd EndorseCommand) (*EndorsementResult, error) {
	ctx, span := s.tracer.Start(ctx, "governance.Endorse", trace.WithAttributes(
		attribute.String("citizen_id", cmd.CitizenID.String()),
		attribute.String("complaint_id", cmd.ComplaintID.String()),
	))
	defer span.End()

	if s.citizens == nil || s.regions == nil {
		err := dErrors.New(dErrors.CodeInternal, "endorsements are not configured")
		markSpan(span, err)
		return nil, s.correlate(ctx, err)
	}
	if cmd.CitizenID.IsNil() || cmd.ComplaintID.IsNil() {
		return nil, s.correlate(ctx, dErrors.New(dErrors.CodeValidation, "citizen and complaint are required"))
	}

	var hint domain.RegionSlug
	if cmd.RegionHint != "" {
		parsed, err := domain.ParseRegionSlug(cmd.RegionHint)
		if err != nil {
			return nil, s.correlate(ctx, err)
		}
		hint = parsed
	}

	var profile *ports.CitizenProfile
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.citizens.Profile(gctx, cmd.CitizenID)
		if err != nil {
			return err
		}
		profile = p
		return nil
	})
	if hint != "" {
		g.Go(func() error {
			return s.probePool(gctx, domain.PoolIDFor(hint, cmd.ComplaintID))
		})
	}
	if err := g.Wait(); err != nil {
		s.metrics.IncEndorsement(string(dErrors.CodeOf(err)))
		markSpan(span, err)
		return nil, s.correlate(ctx, err)
	}

	caps := privilege.Resolve(profile.Role, profile.ReputationScore, profile.AssuranceLevel)
	if !caps.CanEndorsePublicComplaints {
		return nil, s.denyEndorsement(ctx, span, cmd, profile, caps)
	}

	region, err := s.signingRegion(ctx, profile, hint)
	if err != nil {
		s.metrics.IncEndorsement(string(dErrors.CodeOf(err)))
		markSpan(span, err)
		return nil, s.correlate(ctx, err)
	}

	signedAt := requestcontext.Now(ctx).UTC()
	leaf, err := models.LeafHash(cmd.CitizenID, cmd.ComplaintID, region, profile.AssuranceLevel, signedAt)
	if err != nil {
		markSpan(span, err)
		return nil, s.correlate(ctx, err)
	}
	snap, err := s.IngestSignature(ctx, domain.PoolIDFor(region, cmd.ComplaintID), models.SignatureIntent{
		CitizenID:         cmd.CitizenID,
		AssuranceLevel:    profile.AssuranceLevel,
		RegionSlug:        region,
		TargetComplaintID: cmd.ComplaintID,
		LeafHash:          leaf,
		SignedAt:          signedAt,
	})
	if err != nil {
		s.metrics.IncEndorsement(string(dErrors.CodeOf(err)))
		markSpan(span, err)
		return nil, err
	}

	weight, _ := profile.AssuranceLevel.Weight()
	s.metrics.IncEndorsement("accepted")
	s.auditor.Emit(ctx, audit.Event{
		Operation:     audit.OpEndorsementAccepted,
		CorrelationID: requestcontext.RequestID(ctx),
		Subject:       cmd.CitizenID.String(),
		Metadata: map[string]any{
			"complaint_id": cmd.ComplaintID.String(),
			"pool_id":      snap.PoolID.String(),
			"region_slug":  string(region),
			"weight":       weight,
		},
	})
	return &EndorsementResult{
		Pool:         *snap,
		LeafHash:     leaf,
		Weight:       weight,
		SignedAt:     signedAt,
		Capabilities: caps,
	}, nil
}

// probePool fails fast when the hinted pool is already sealed. A pool that
// does not exist yet is fine.
func (s *Service) probePool(ctx context.Context, id domain.PoolID) error {
	pool, err := s.pools.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return translatePoolErr(err, "failed to probe pool")
	}
	if pool.IsSealed() {
		return dErrors.New(dErrors.CodeIllegalStateTransition, "pool is sealed").
			WithRemediation("sealed pools are immutable; the endorsement window has closed")
	}
	return nil
}

// signingRegion derives the region from the citizen's anchor. Without an
// anchor the hint is used as given.
func (s *Service) signingRegion(ctx context.Context, profile *ports.CitizenProfile, hint domain.RegionSlug) (domain.RegionSlug, error) {
	if profile.Anchor == nil {
		if hint == "" {
			return "", dErrors.New(dErrors.CodeValidation, "citizen has no geo anchor").
				WithRemediation("pass region_hint or register the citizen with a geo anchor")
		}
		return hint, nil
	}
	region, err := s.regions.ResolveRegion(ctx, *profile.Anchor)
	if err != nil {
		return "", err
	}
	if hint != "" && hint != region {
		return "", dErrors.Newf(dErrors.CodeForbidden, "citizen signs in %s, not %s", region, hint)
	}
	return region, nil
}

func (s *Service) denyEndorsement(ctx context.Context, span trace.Span, cmd EndorseCommand, profile *ports.CitizenProfile, caps privilege.CapabilityAttributes) error {
	err := dErrors.New(dErrors.CodeForbidden, "citizen may not endorse public complaints")
	reason, message := "role_cannot_endorse", err.Error()
	if caps.IsOperatingInDegradedPrivilegeMode {
		reason = "degraded_privilege"
		message = s.formatter.DegradedPrivilege(string(profile.Role), profile.ReputationScore)
		err = err.WithRemediation("standing must return to the sanction threshold before endorsing")
	}
	s.metrics.IncEndorsement(string(dErrors.CodeForbidden))
	markSpan(span, err)
	s.logger.WarnContext(ctx, "endorsement denied",
		"citizen_id", cmd.CitizenID.String(),
		"complaint_id", cmd.ComplaintID.String(),
		"role", profile.Role,
		"reputation_score", profile.ReputationScore,
		"reason", reason,
	)
	s.auditor.Emit(ctx, audit.Event{
		Severity:      audit.SeverityWarning,
		Operation:     audit.OpEndorsementDenied,
		CorrelationID: requestcontext.RequestID(ctx),
		Subject:       cmd.CitizenID.String(),
		Message:       message,
		Metadata: map[string]any{
			"complaint_id": cmd.ComplaintID.String(),
			"reason":       reason,
		},
	})
	return s.correlate(ctx, err)
}
