package metadatastore_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/metadatastore"
	"github.com/rohmanhakim/docs-crawler/pkg/retry"
	"github.com/rohmanhakim/docs-crawler/pkg/timeutil"
)

type metadataSinkMock struct {
	recordErrorCalled bool
	recordErrorCause  metadata.ErrorCause
}

func (m *metadataSinkMock) RecordFetch(string, int, time.Duration, string, int, int) {}
func (m *metadataSinkMock) RecordAssetFetch(string, int, time.Duration, int)         {}
func (m *metadataSinkMock) RecordArtifact(metadata.ArtifactKind, string, []metadata.Attribute) {
}

func (m *metadataSinkMock) RecordError(observedAt time.Time, packageName string, action string, cause metadata.ErrorCause, errorString string, attrs []metadata.Attribute) {
	m.recordErrorCalled = true
	m.recordErrorCause = cause
}

func testRetryParam() retry.RetryParam {
	return retry.NewRetryParam(
		5*time.Millisecond,
		2*time.Millisecond,
		42,
		3,
		timeutil.NewBackoffParam(5*time.Millisecond, 2.0, 100*time.Millisecond),
	)
}

func openTestStore(t *testing.T) (*metadatastore.BoltStore, *metadataSinkMock) {
	t.Helper()
	sink := &metadataSinkMock{}
	path := filepath.Join(t.TempDir(), "cache.db")
	store, err := metadatastore.Open(path, sink, testRetryParam())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, sink
}

func sampleEntry(url string) metadatastore.CacheEntry {
	return metadatastore.NewCacheEntry(
		url,
		metadatastore.ContentHashes{HTML: "h1", Markdown: "m1"},
		metadatastore.MediaSet{},
		metadatastore.LinkSet{},
		map[string]string{"title": "Example"},
		map[string]string{"content-type": "text/html"},
		nil,
		true,
		"etag-1",
		"",
		"fp-1",
		time.Unix(1700000000, 0).UTC(),
	)
}

func TestBoltStore_PutThenGet_RoundTrips(t *testing.T) {
	store, _ := openTestStore(t)

	entry := sampleEntry("https://example.com/docs/page")
	if err := store.Put(entry); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, found, err := store.Get("https://example.com/docs/page")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !found {
		t.Fatal("expected entry to be found")
	}
	if got.URL() != entry.URL() {
		t.Errorf("expected URL %s, got %s", entry.URL(), got.URL())
	}
	if got.ContentHashes() != entry.ContentHashes() {
		t.Errorf("expected content hashes %+v, got %+v", entry.ContentHashes(), got.ContentHashes())
	}
	if got.Success() != entry.Success() {
		t.Error("expected Success to round-trip")
	}
	if !got.CachedAt().Equal(entry.CachedAt()) {
		t.Errorf("expected CachedAt %v, got %v", entry.CachedAt(), got.CachedAt())
	}
}

func TestBoltStore_Get_MissingReturnsNotFound(t *testing.T) {
	store, _ := openTestStore(t)

	_, found, err := store.Get("https://example.com/missing")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if found {
		t.Error("expected found=false for missing entry")
	}
}

func TestBoltStore_Put_UpsertsLastWriterWins(t *testing.T) {
	store, _ := openTestStore(t)

	url := "https://example.com/docs/page"
	first := sampleEntry(url)
	if err := store.Put(first); err != nil {
		t.Fatalf("first put failed: %v", err)
	}

	second := metadatastore.NewCacheEntry(
		url,
		metadatastore.ContentHashes{HTML: "h2"},
		metadatastore.MediaSet{},
		metadatastore.LinkSet{},
		nil,
		nil,
		nil,
		false,
		"",
		"",
		"",
		time.Unix(1800000000, 0).UTC(),
	)
	if err := store.Put(second); err != nil {
		t.Fatalf("second put failed: %v", err)
	}

	got, found, err := store.Get(url)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !found {
		t.Fatal("expected entry to be found")
	}
	if got.ContentHashes().HTML != "h2" {
		t.Errorf("expected last-writer-wins HTML hash h2, got %s", got.ContentHashes().HTML)
	}
	if got.Success() {
		t.Error("expected Success to reflect the second write")
	}
}

func TestBoltStore_Count(t *testing.T) {
	store, _ := openTestStore(t)

	n, err := store.Count()
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty store to count 0, got %d", n)
	}

	urls := []string{"https://a.example.com", "https://b.example.com", "https://c.example.com"}
	for _, url := range urls {
		if err := store.Put(sampleEntry(url)); err != nil {
			t.Fatalf("put failed for %s: %v", url, err)
		}
	}

	n, err = store.Count()
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != len(urls) {
		t.Errorf("expected count %d, got %d", len(urls), n)
	}
}

func TestBoltStore_Clear_RemovesAllRowsButKeepsStoreUsable(t *testing.T) {
	store, _ := openTestStore(t)

	if err := store.Put(sampleEntry("https://example.com/a")); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	n, err := store.Count()
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 rows after clear, got %d", n)
	}

	if err := store.Put(sampleEntry("https://example.com/b")); err != nil {
		t.Fatalf("put after clear failed: %v", err)
	}
	if _, found, err := store.Get("https://example.com/b"); err != nil || !found {
		t.Errorf("expected store to remain usable after clear, found=%v err=%v", found, err)
	}
}

func TestBoltStore_Drop_ClosesUnderlyingDatabase(t *testing.T) {
	sink := &metadataSinkMock{}
	path := filepath.Join(t.TempDir(), "cache.db")
	store, err := metadatastore.Open(path, sink, testRetryParam())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	if err := store.Put(sampleEntry("https://example.com/a")); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	if err := store.Drop(); err != nil {
		t.Fatalf("drop failed: %v", err)
	}
}
