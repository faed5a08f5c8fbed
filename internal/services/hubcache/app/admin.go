package app

import (
	"context"
	"time"

	apperrors "github.com/subdogs/hub/internal/platform/errors"
	"github.com/subdogs/hub/internal/services/hubcache/keys"
	"github.com/subdogs/hub/internal/services/hubcache/recency"
	hubstorage "github.com/subdogs/hub/internal/services/hubcache/storage"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StatsReport classifies cache records against one instant.
type StatsReport struct {
	At      time.Time                            `json:"at"`
	PerKind map[keys.Kind]hubstorage.CacheCounts `json:"per_kind"`
	Total   hubstorage.CacheCounts               `json:"total"`
}

// SweepReport counts expired records removed per kind.
type SweepReport struct {
	At      time.Time         `json:"at"`
	PerKind map[keys.Kind]int `json:"per_kind"`
	Total   int               `json:"total"`
}

// ClearReport counts cleared cache records and recency entries.
type ClearReport struct {
	Cache  map[keys.Kind]int `json:"cache"`
	Recent map[string]int    `json:"recent"`
	Total  int               `json:"total"`
}

func kindsFor(kind keys.Kind) ([]keys.Kind, error) {
	if kind == "" {
		return keys.AllKinds(), nil
	}
	if !kind.Valid() {
		return nil, apperrors.WithMetadata(apperrors.CodeInvalidParameters, "unknown cache kind", map[string]string{"kind": kind.String()})
	}
	return []keys.Kind{kind}, nil
}

// Stats classifies records of kind, or every kind when kind is empty, as
// valid (expiring after now) or expired. On a store failure the report holds
// the kinds counted so far.
func (s *Service) Stats(ctx context.Context, kind keys.Kind) (StatsReport, error) {
	ctx, span := tracer.Start(ctx, "hubcache.Stats")
	defer span.End()

	kinds, err := kindsFor(kind)
	if err != nil {
		return StatsReport{}, err
	}
	report := StatsReport{
		At:      s.now().UTC(),
		PerKind: make(map[keys.Kind]hubstorage.CacheCounts, len(kinds)),
	}
	for _, k := range kinds {
		counts, err := s.store.CountCacheRecords(ctx, k, report.At)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, "count failed")
			return report, apperrors.WrapWithMetadata(apperrors.CodeStoreUnavailable, "count cache records", map[string]string{"kind": k.String()}, err)
		}
		report.PerKind[k] = counts
		report.Total.Total += counts.Total
		report.Total.Valid += counts.Valid
		report.Total.Expired += counts.Expired
	}
	return report, nil
}

// Sweep deletes expired records of every kind. Each delete is conditioned on
// the row's current expiration, so records replaced during the sweep are
// kept. On a store failure the report holds the kinds swept so far.
func (s *Service) Sweep(ctx context.Context) (SweepReport, error) {
	ctx, span := tracer.Start(ctx, "hubcache.Sweep")
	defer span.End()

	report := SweepReport{
		At:      s.now().UTC(),
		PerKind: make(map[keys.Kind]int, len(keys.AllKinds())),
	}
	for _, kind := range keys.AllKinds() {
		removed, err := s.store.DeleteExpiredCacheRecords(ctx, kind, report.At)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, "sweep failed")
			return report, apperrors.WrapWithMetadata(apperrors.CodeStoreUnavailable, "delete expired cache records", map[string]string{"kind": kind.String()}, err)
		}
		report.PerKind[kind] = removed
		report.Total += removed
	}
	span.SetAttributes(attribute.Int("hubcache.swept", report.Total))
	return report, nil
}

// Clear removes cache records of kind (every kind when empty). An empty
// scope clears every scope; otherwise only that scope is cleared.
func (s *Service) Clear(ctx context.Context, kind keys.Kind, scope string) (int, error) {
	ctx, span := tracer.Start(ctx, "hubcache.Clear", trace.WithAttributes(
		attribute.String("hubcache.kind", kind.String()),
		attribute.Bool("hubcache.scoped", scope != ""),
	))
	defer span.End()

	kinds, err := kindsFor(kind)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, k := range kinds {
		removed, err := s.clearKind(ctx, k, scope)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, "clear failed")
			return total, err
		}
		total += removed
	}
	return total, nil
}

func (s *Service) clearKind(ctx context.Context, kind keys.Kind, scope string) (int, error) {
	var (
		removed int
		err     error
	)
	if scope == "" {
		removed, err = s.store.DeleteAllCacheRecords(ctx, kind)
	} else {
		removed, err = s.store.DeleteCacheRecordsByScope(ctx, kind, scope)
	}
	if err != nil {
		return 0, apperrors.WrapWithMetadata(apperrors.CodeStoreUnavailable, "clear cache records", map[string]string{"kind": kind.String()}, err)
	}
	return removed, nil
}

// ClearAll clears every cache kind and every recency list for scope, or
// globally when scope is empty. Saved collections are left alone.
func (s *Service) ClearAll(ctx context.Context, scope string) (ClearReport, error) {
	report := ClearReport{
		Cache:  make(map[keys.Kind]int, len(keys.AllKinds())),
		Recent: make(map[string]int, 2),
	}
	for _, kind := range keys.AllKinds() {
		removed, err := s.clearKind(ctx, kind, scope)
		if err != nil {
			return report, err
		}
		report.Cache[kind] = removed
		report.Total += removed
	}
	for _, list := range []string{recency.RecentArticlesList, recency.RecentLocationsList} {
		removed, err := s.ClearRecency(ctx, list, scope)
		if err != nil {
			return report, err
		}
		report.Recent[list] = removed
		report.Total += removed
	}
	return report, nil
}

// ClearRecency empties a recency list by name. An empty scope clears the list
// for every scope.
func (s *Service) ClearRecency(ctx context.Context, list, scope string) (int, error) {
	type clearer interface {
		Clear(ctx context.Context, scope string) (int, error)
		ClearAll(ctx context.Context) (int, error)
	}
	var target clearer
	switch list {
	case recency.RecentArticlesList:
		target = s.recentArticles
	case recency.RecentLocationsList:
		target = s.recentLocations
	default:
		return 0, apperrors.WithMetadata(apperrors.CodeInvalidParameters, "unknown recency list", map[string]string{"list": list})
	}
	if scope == "" {
		return target.ClearAll(ctx)
	}
	return target.Clear(ctx, scope)
}
