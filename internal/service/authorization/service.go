// Package authorization resolves id tag verdicts from the local whitelist,
// fronted by a cache and backed by a configurable fail policy.
package authorization

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-central/internal/domain"
	"github.com/seu-repo/ocpp-central/internal/ports"
)

type Service struct {
	repo     ports.AuthorizationRepository
	cache    ports.Cache
	cacheTTL time.Duration
	failOpen bool
	log      *zap.Logger
}

// NewService builds the authorization service. When failOpen is true a
// station keeps charging through a storage outage: lookups that cannot reach
// the whitelist are answered Accepted instead of Invalid.
func NewService(repo ports.AuthorizationRepository, cache ports.Cache, cacheTTL time.Duration, failOpen bool, log *zap.Logger) ports.AuthorizationService {
	return &Service{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		failOpen: failOpen,
		log:      log,
	}
}

// Authorize resolves the verdict for an id tag. It never fails: unknown tags
// are Invalid, and an unreachable whitelist resolves through the fail policy.
func (s *Service) Authorize(ctx context.Context, stationID, idTag string) *domain.IdTagInfo {
	now := time.Now().UTC()

	if rec, ok := s.cached(ctx, idTag); ok {
		info := verdict(rec, now)
		s.audit(ctx, stationID, idTag, info.Status, domain.AuthSourceCache, now)
		return info
	}

	rec, err := s.repo.LookupAuthorization(ctx, idTag)
	if err != nil {
		status := domain.AuthInvalid
		if s.failOpen {
			status = domain.AuthAccepted
		}
		s.log.Warn("Authorization lookup failed, applying fail policy",
			zap.String("station_id", stationID),
			zap.String("id_tag", idTag),
			zap.Bool("fail_open", s.failOpen),
			zap.Error(err),
		)
		info := &domain.IdTagInfo{Status: status}
		s.audit(ctx, stationID, idTag, status, domain.AuthSourcePolicy, now)
		return info
	}
	if rec == nil {
		info := &domain.IdTagInfo{Status: domain.AuthInvalid}
		s.audit(ctx, stationID, idTag, domain.AuthInvalid, domain.AuthSourceDatabase, now)
		return info
	}

	s.store(ctx, idTag, rec)
	info := verdict(rec, now)
	s.audit(ctx, stationID, idTag, info.Status, domain.AuthSourceDatabase, now)
	return info
}

// verdict maps a whitelist record to the wire-facing IdTagInfo, applying the
// expiry downgrade at decision time.
func verdict(rec *domain.AuthorizationRecord, now time.Time) *domain.IdTagInfo {
	return &domain.IdTagInfo{
		Status:      rec.Effective(now),
		ExpiryDate:  rec.ExpiryDate,
		ParentIdTag: rec.ParentIdTag,
	}
}

// cached loads the whitelist record from the cache. The raw record is cached
// rather than the verdict so expiry downgrades still apply on cache hits.
func (s *Service) cached(ctx context.Context, idTag string) (*domain.AuthorizationRecord, bool) {
	if s.cache == nil {
		return nil, false
	}
	val, err := s.cache.Get(ctx, cacheKey(idTag))
	if err != nil || val == "" {
		return nil, false
	}
	var rec domain.AuthorizationRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		s.log.Warn("Discarding corrupt cached authorization", zap.String("id_tag", idTag), zap.Error(err))
		return nil, false
	}
	return &rec, true
}

func (s *Service) store(ctx context.Context, idTag string, rec *domain.AuthorizationRecord) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(idTag), string(data), s.cacheTTL); err != nil {
		s.log.Debug("Failed to cache authorization", zap.String("id_tag", idTag), zap.Error(err))
	}
}

// audit appends the decision to the trail, best effort.
func (s *Service) audit(ctx context.Context, stationID, idTag string, status domain.AuthorizationStatus, source string, at time.Time) {
	err := s.repo.AppendAuthorizationEvent(ctx, &domain.AuthorizationEvent{
		StationID: stationID,
		IdTag:     idTag,
		Status:    status,
		Source:    source,
		DecidedAt: at,
	})
	if err != nil {
		s.log.Debug("Failed to audit authorization",
			zap.String("station_id", stationID),
			zap.String("id_tag", idTag),
			zap.Error(err),
		)
	}
}

func cacheKey(idTag string) string {
	return fmt.Sprintf("idtag:%s", idTag)
}
