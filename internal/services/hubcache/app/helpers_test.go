package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/subdogs/hub/internal/services/hubcache/keys"
	hubstorage "github.com/subdogs/hub/internal/services/hubcache/storage"
	hubsqlite "github.com/subdogs/hub/internal/services/hubcache/storage/sqlite"
)

var t0 = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

const threeArticles = `{"status":"success","totalResults":3,"results":[` +
	`{"article_id":"a1","title":"One","category":["top"]},` +
	`{"article_id":"a2","title":"Two","category":["top"]},` +
	`{"article_id":"a3","title":"Three","category":["top","business"]}]}`

const threeDays = `{"latitude":40.71,"longitude":-74.01,"daily":{` +
	`"time":["2026-03-04","2026-03-05","2026-03-06"],` +
	`"temperature_2m_max":[10,11,12],"temperature_2m_min":[1,2,3]}}`

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: t0} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = at
}

type fakeFetcher struct {
	mu       sync.Mutex
	calls    int
	payloads map[keys.Kind]string
	err      error
	started  chan struct{}
	release  chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{payloads: map[keys.Kind]string{
		keys.KindNews:      threeArticles,
		keys.KindWeather:   threeDays,
		keys.KindGeocoding: `{"results":[{"name":"Paris","latitude":48.85341,"longitude":2.3488}]}`,
	}}
}

func (f *fakeFetcher) Fetch(_ context.Context, kind keys.Kind, _ Request) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	started, release := f.started, f.release
	err := f.err
	payload := f.payloads[kind]
	f.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if release != nil {
		<-release
	}
	if err != nil {
		return nil, err
	}
	return []byte(payload), nil
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFetcher) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func openStore(t *testing.T) *hubsqlite.Store {
	t.Helper()
	store, err := hubsqlite.Open(filepath.Join(t.TempDir(), "hubcache.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

type testEnv struct {
	service *Service
	store   hubstorage.Store
	fetcher *fakeFetcher
	clock   *testClock
}

func newTestEnv(t *testing.T, mutate func(*Options)) testEnv {
	t.Helper()
	return newTestEnvWithStore(t, openStore(t), mutate)
}

func newTestEnvWithStore(t *testing.T, store hubstorage.Store, mutate func(*Options)) testEnv {
	t.Helper()
	options := DefaultOptions()
	options.AsyncArchive = false
	if mutate != nil {
		mutate(&options)
	}
	fetcher := newFakeFetcher()
	service, err := New(store, fetcher, options)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	clock := newTestClock()
	service.now = clock.Now
	t.Cleanup(service.Close)
	return testEnv{service: service, store: store, fetcher: fetcher, clock: clock}
}

var errStoreDown = errors.New("database is locked")

// faultyStore fails selected calls and delegates the rest.
type faultyStore struct {
	hubstorage.Store
	failGet       bool
	failCountKind keys.Kind
	failSweepKind keys.Kind
}

func (s *faultyStore) GetCacheRecord(ctx context.Context, kind keys.Kind, key, scope string) (hubstorage.CacheRecord, bool, error) {
	if s.failGet {
		return hubstorage.CacheRecord{}, false, errStoreDown
	}
	return s.Store.GetCacheRecord(ctx, kind, key, scope)
}

func (s *faultyStore) CountCacheRecords(ctx context.Context, kind keys.Kind, now time.Time) (hubstorage.CacheCounts, error) {
	if kind == s.failCountKind {
		return hubstorage.CacheCounts{}, errStoreDown
	}
	return s.Store.CountCacheRecords(ctx, kind, now)
}

func (s *faultyStore) DeleteExpiredCacheRecords(ctx context.Context, kind keys.Kind, now time.Time) (int, error) {
	if kind == s.failSweepKind {
		return 0, errStoreDown
	}
	return s.Store.DeleteExpiredCacheRecords(ctx, kind, now)
}
