package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/subdogs/hub/internal/platform/errors"
	"github.com/subdogs/hub/internal/services/hubcache/archive"
	"github.com/subdogs/hub/internal/services/hubcache/freshness"
	"github.com/subdogs/hub/internal/services/hubcache/keys"
	"github.com/subdogs/hub/internal/services/hubcache/recency"
	hubstorage "github.com/subdogs/hub/internal/services/hubcache/storage"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/singleflight"
)

const tracerName = "github.com/subdogs/hub/internal/services/hubcache/app"

var tracer = otel.Tracer(tracerName)

// Fetcher is the outbound provider client. Retries and timeouts are its
// concern.
type Fetcher interface {
	Fetch(ctx context.Context, kind keys.Kind, req Request) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, kind keys.Kind, req Request) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, kind keys.Kind, req Request) ([]byte, error) {
	return f(ctx, kind, req)
}

// Options are the runtime-adjustable service settings.
type Options struct {
	// Enabled turns the cache on. A disabled service always fetches and
	// never reads or writes the store.
	Enabled bool
	// ServeStaleOnError serves an expired, unswept record when the provider
	// fails.
	ServeStaleOnError bool
	// AsyncArchive moves archive write-through onto the task runner.
	AsyncArchive bool
	// Policies overrides per-kind freshness; nil uses the defaults.
	Policies freshness.Policies
	// Recent bounds the recent articles and locations lists.
	Recent recency.Options
	// TaskConcurrency bounds concurrent background refresh and archive tasks.
	TaskConcurrency int
}

// DefaultOptions returns an enabled cache with default policies.
func DefaultOptions() Options {
	return Options{
		Enabled:         true,
		AsyncArchive:    true,
		Policies:        freshness.Defaults(),
		Recent:          recency.Options{Capacity: recency.DefaultCapacity, DisplayLimit: recency.DefaultDisplayLimit},
		TaskConcurrency: defaultTaskConcurrency,
	}
}

func (o Options) normalized() (Options, error) {
	if o.Policies == nil {
		o.Policies = freshness.Defaults()
	} else {
		o.Policies = o.Policies.Clone()
	}
	if err := o.Policies.Validate(); err != nil {
		return Options{}, err
	}
	if o.TaskConcurrency <= 0 {
		o.TaskConcurrency = defaultTaskConcurrency
	}
	return o, nil
}

// Service is the hub cache facade.
type Service struct {
	store    hubstorage.Store
	fetcher  Fetcher
	archiver *archive.Archiver
	tasks    *TaskRunner
	flights  singleflight.Group
	now      func() time.Time

	recentArticles  *recency.List[recency.Article]
	recentLocations *recency.List[recency.Location]
	bookmarks       *recency.Collection[recency.Article]
	savedLocations  *recency.Collection[recency.Location]

	mu      sync.RWMutex
	options Options
}

// New builds a service over store. fetcher may be nil for processes that
// only administer the cache.
func New(store hubstorage.Store, fetcher Fetcher, options Options) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	normalized, err := options.normalized()
	if err != nil {
		return nil, err
	}
	return &Service{
		store:           store,
		fetcher:         fetcher,
		archiver:        archive.New(store),
		tasks:           NewTaskRunner(normalized.TaskConcurrency),
		now:             time.Now,
		recentArticles:  recency.NewRecentArticles(store, normalized.Recent),
		recentLocations: recency.NewRecentLocations(store, normalized.Recent),
		bookmarks:       recency.NewBookmarks(store),
		savedLocations:  recency.NewSavedLocations(store),
		options:         normalized,
	}, nil
}

// Reconfigure swaps the enable, stale-serve, archive mode, and policy
// settings. List bounds and task concurrency are fixed at construction.
func (s *Service) Reconfigure(options Options) error {
	normalized, err := options.normalized()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	normalized.Recent = s.options.Recent
	normalized.TaskConcurrency = s.options.TaskConcurrency
	s.options = normalized
	return nil
}

// Options returns the current settings.
func (s *Service) Options() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	options := s.options
	options.Policies = options.Policies.Clone()
	return options
}

func (s *Service) snapshot() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.options
}

func (s *Service) policyFor(options Options, kind keys.Kind) (freshness.Policy, error) {
	policy, err := options.Policies.For(kind)
	if err != nil {
		return freshness.Policy{}, apperrors.Wrap(apperrors.CodeInvalidParameters, "resolve freshness policy", err)
	}
	return policy, nil
}

// Archive exposes the history read paths.
func (s *Service) Archive() *archive.Archiver { return s.archiver }

// RecentArticles is the recently viewed articles list.
func (s *Service) RecentArticles() *recency.List[recency.Article] { return s.recentArticles }

// RecentLocations is the recently searched locations list.
func (s *Service) RecentLocations() *recency.List[recency.Location] { return s.recentLocations }

// Bookmarks is the bookmarked articles collection.
func (s *Service) Bookmarks() *recency.Collection[recency.Article] { return s.bookmarks }

// SavedLocations is the saved locations collection.
func (s *Service) SavedLocations() *recency.Collection[recency.Location] { return s.savedLocations }

// Wait blocks until queued background tasks finish.
func (s *Service) Wait() { s.tasks.Wait() }

// Close drains background tasks. The store is owned by the caller.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.tasks.Close()
}
