package app

import (
	"context"

	apperrors "github.com/subdogs/hub/internal/platform/errors"
	"github.com/subdogs/hub/internal/platform/requestctx"
	"github.com/subdogs/hub/internal/services/hubcache/freshness"
	"github.com/subdogs/hub/internal/services/hubcache/keys"
	hubstorage "github.com/subdogs/hub/internal/services/hubcache/storage"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ReadThrough answers req from the cache when a fresh or stale record exists
// and from the provider otherwise.
//
// A stale hit is returned immediately and refreshed in the background. A
// miss fetches, upserts, and archives before returning. Concurrent misses
// and refreshes for the same slot share one provider call. Cancelling ctx
// abandons the answer but not the store side effects.
func (s *Service) ReadThrough(ctx context.Context, req Request, scope string) (Result, error) {
	ctx, span := tracer.Start(ctx, "hubcache.ReadThrough", trace.WithAttributes(
		attribute.String("hubcache.kind", req.Kind.String()),
		attribute.Bool("hubcache.scoped", scope != ""),
	))
	defer span.End()

	result, err := s.readThrough(ctx, req, scope)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, string(apperrors.CodeOf(err)))
		return Result{}, err
	}
	span.SetAttributes(
		attribute.Bool("hubcache.cached", result.WasCached),
		attribute.Bool("hubcache.stale", result.IsStale),
		attribute.Bool("hubcache.degraded", result.Degraded),
	)
	return result, nil
}

// ReadThroughForCaller is ReadThrough with the scope taken from ctx.
func (s *Service) ReadThroughForCaller(ctx context.Context, req Request) (Result, error) {
	return s.ReadThrough(ctx, req, requestctx.ScopeFromContext(ctx))
}

func (s *Service) readThrough(ctx context.Context, req Request, scope string) (Result, error) {
	key, err := req.CacheKey()
	if err != nil {
		return Result{}, err
	}
	options := s.snapshot()
	policy, err := s.policyFor(options, req.Kind)
	if err != nil {
		return Result{}, err
	}

	if !options.Enabled {
		return s.fetchUncached(ctx, req, policy)
	}

	record, found, err := s.store.GetCacheRecord(ctx, req.Kind, key, scope)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeStoreUnavailable, "read cache record", err)
	}

	now := s.now()
	if found && !policy.IsExpired(now, record.ExpiresAt) {
		stale := policy.IsStale(now, record.ExpiresAt)
		if stale {
			s.scheduleRefresh(req, key, scope)
		}
		return cachedResult(record, stale), nil
	}

	fresh, err := s.refreshShared(ctx, req, key, scope)
	if err != nil {
		if found && options.ServeStaleOnError && apperrors.IsProviderError(err) {
			degraded := cachedResult(record, false)
			degraded.Degraded = true
			return degraded, nil
		}
		return Result{}, err
	}
	return Result{
		Payload:   fresh.Payload,
		FetchedAt: fresh.FetchedAt,
		ExpiresAt: fresh.ExpiresAt,
		IsStale:   policy.IsStale(s.now(), fresh.ExpiresAt),
	}, nil
}

// Peek returns the cached answer for req without contacting the provider or
// scheduling a refresh. Expired and absent records are NOT_FOUND.
func (s *Service) Peek(ctx context.Context, req Request, scope string) (Result, error) {
	key, err := req.CacheKey()
	if err != nil {
		return Result{}, err
	}
	policy, err := s.policyFor(s.snapshot(), req.Kind)
	if err != nil {
		return Result{}, err
	}
	record, found, err := s.store.GetCacheRecord(ctx, req.Kind, key, scope)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeStoreUnavailable, "read cache record", err)
	}
	now := s.now()
	if !found || policy.IsExpired(now, record.ExpiresAt) {
		return Result{}, apperrors.WithMetadata(apperrors.CodeNotFound, "cache record not found", map[string]string{
			"kind": req.Kind.String(),
			"key":  key,
		})
	}
	return cachedResult(record, policy.IsStale(now, record.ExpiresAt)), nil
}

func cachedResult(record hubstorage.CacheRecord, stale bool) Result {
	return Result{
		Payload:   record.Payload,
		FetchedAt: record.FetchedAt,
		ExpiresAt: record.ExpiresAt,
		IsStale:   stale,
		WasCached: true,
	}
}

func (s *Service) fetchUncached(ctx context.Context, req Request, policy freshness.Policy) (Result, error) {
	payload, err := s.fetch(ctx, req)
	if err != nil {
		return Result{}, err
	}
	fetchedAt := s.now().UTC()
	return Result{
		Payload:   payload,
		FetchedAt: fetchedAt,
		ExpiresAt: policy.ExpiresAt(fetchedAt),
	}, nil
}

func (s *Service) fetch(ctx context.Context, req Request) ([]byte, error) {
	if s.fetcher == nil {
		return nil, apperrors.New(apperrors.CodeProviderError, "provider fetcher is not configured")
	}
	payload, err := s.fetcher.Fetch(ctx, req.Kind, req)
	if err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeProviderError, "fetch from provider", map[string]string{"kind": req.Kind.String()}, err)
	}
	if len(payload) == 0 {
		return nil, apperrors.WithMetadata(apperrors.CodeProviderError, "provider returned an empty payload", map[string]string{"kind": req.Kind.String()})
	}
	return payload, nil
}

func flightKey(kind keys.Kind, key, scope string) string {
	return kind.String() + "\x00" + scope + "\x00" + key
}

// refreshShared joins or starts the refresh for one slot. The refresh runs
// detached from ctx so the store writes complete even if the caller leaves.
func (s *Service) refreshShared(ctx context.Context, req Request, key, scope string) (hubstorage.CacheRecord, error) {
	detached := context.WithoutCancel(ctx)
	ch := s.flights.DoChan(flightKey(req.Kind, key, scope), func() (any, error) {
		return s.refresh(detached, req, key, scope)
	})
	select {
	case <-ctx.Done():
		return hubstorage.CacheRecord{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return hubstorage.CacheRecord{}, res.Err
		}
		return res.Val.(hubstorage.CacheRecord), nil
	}
}

func (s *Service) scheduleRefresh(req Request, key, scope string) {
	s.tasks.Submit("refresh "+req.Kind.String()+" "+key, func(ctx context.Context) error {
		_, err := s.refreshShared(ctx, req, key, scope)
		return err
	})
}

// refresh fetches, upserts, and archives one slot. The returned record is
// the row as stored, which may be a newer concurrent write.
func (s *Service) refresh(ctx context.Context, req Request, key, scope string) (hubstorage.CacheRecord, error) {
	ctx, span := tracer.Start(ctx, "hubcache.refresh", trace.WithAttributes(
		attribute.String("hubcache.kind", req.Kind.String()),
	))
	defer span.End()

	options := s.snapshot()
	policy, err := s.policyFor(options, req.Kind)
	if err != nil {
		return hubstorage.CacheRecord{}, err
	}

	payload, err := s.fetch(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "provider fetch failed")
		return hubstorage.CacheRecord{}, err
	}

	fetchedAt := s.now().UTC()
	stored, err := s.store.UpsertCacheRecord(ctx, hubstorage.CacheRecord{
		Kind:      req.Kind,
		Key:       key,
		Scope:     scope,
		Payload:   payload,
		FetchedAt: fetchedAt,
		ExpiresAt: policy.ExpiresAt(fetchedAt),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "cache upsert failed")
		return hubstorage.CacheRecord{}, apperrors.Wrap(apperrors.CodeStoreUnavailable, "write cache record", err)
	}

	if err := s.archive(ctx, options, req, payload, scope); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "archive write failed")
		return hubstorage.CacheRecord{}, err
	}
	return stored, nil
}

func (s *Service) archive(ctx context.Context, options Options, req Request, payload []byte, scope string) error {
	if req.Kind == keys.KindGeocoding {
		return nil
	}
	write := func(ctx context.Context) error {
		_, err := s.archiver.WriteThrough(ctx, req.Kind, payload, req.archiveLocation(), scope)
		return err
	}
	if options.AsyncArchive {
		s.tasks.Submit("archive "+req.Kind.String(), write)
		return nil
	}
	return write(ctx)
}
