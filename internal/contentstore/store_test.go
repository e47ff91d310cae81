package contentstore_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/contentstore"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/hashutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type metadataSinkMock struct {
	recordArtifactCalled bool
	recordArtifactKind   metadata.ArtifactKind
	recordArtifactPath   string
	recordErrorCalled    bool
	recordErrorCause     metadata.ErrorCause
}

func (m *metadataSinkMock) RecordFetch(string, int, time.Duration, string, int, int) {}
func (m *metadataSinkMock) RecordAssetFetch(string, int, time.Duration, int)         {}

func (m *metadataSinkMock) RecordError(observedAt time.Time, packageName string, action string, cause metadata.ErrorCause, errorString string, attrs []metadata.Attribute) {
	m.recordErrorCalled = true
	m.recordErrorCause = cause
}

func (m *metadataSinkMock) RecordArtifact(kind metadata.ArtifactKind, path string, attrs []metadata.Attribute) {
	m.recordArtifactCalled = true
	m.recordArtifactKind = kind
	m.recordArtifactPath = path
}

func TestStore_Put_WritesBlobNamedByHash(t *testing.T) {
	sink := &metadataSinkMock{}
	store := contentstore.NewStore(t.TempDir(), hashutil.HashAlgoXXHash, sink)

	content := []byte("<html><body>hello</body></html>")
	result, err := store.Put(contentstore.KindHTML, "https://example.com/page", content)

	require.Nil(t, err)
	assert.False(t, result.Deduped())
	assert.NotEmpty(t, result.Hash())

	written, readErr := os.ReadFile(result.Path())
	require.NoError(t, readErr)
	assert.Equal(t, content, written)

	assert.True(t, sink.recordArtifactCalled)
	assert.Equal(t, result.Path(), sink.recordArtifactPath)
}

func TestStore_Put_DeterministicHash(t *testing.T) {
	sink := &metadataSinkMock{}
	store := contentstore.NewStore(t.TempDir(), hashutil.HashAlgoXXHash, sink)

	content := []byte("same content")
	first, err := store.Put(contentstore.KindMarkdown, "https://a.example.com", content)
	require.Nil(t, err)

	second, err := store.Put(contentstore.KindMarkdown, "https://b.example.com", content)
	require.Nil(t, err)

	assert.Equal(t, first.Hash(), second.Hash())
	assert.Equal(t, first.Path(), second.Path())
}

func TestStore_Put_SkipsWriteWhenBlobAlreadyExists(t *testing.T) {
	sink := &metadataSinkMock{}
	baseDir := t.TempDir()
	store := contentstore.NewStore(baseDir, hashutil.HashAlgoXXHash, sink)

	content := []byte("idempotent content")
	first, err := store.Put(contentstore.KindCleanedHTML, "https://example.com", content)
	require.Nil(t, err)
	assert.False(t, first.Deduped())

	// Mutate the on-disk blob directly so we can detect whether Put
	// rewrites it on a second call with identical content.
	require.NoError(t, os.WriteFile(first.Path(), []byte("tampered"), 0644))

	second, err := store.Put(contentstore.KindCleanedHTML, "https://example.com", content)
	require.Nil(t, err)
	assert.True(t, second.Deduped())

	onDisk, readErr := os.ReadFile(second.Path())
	require.NoError(t, readErr)
	assert.Equal(t, []byte("tampered"), onDisk, "skip-if-exists write must not overwrite an existing blob")
}

func TestStore_Put_SeparatesKindsIntoSubdirectories(t *testing.T) {
	sink := &metadataSinkMock{}
	baseDir := t.TempDir()
	store := contentstore.NewStore(baseDir, hashutil.HashAlgoXXHash, sink)

	content := []byte("shared bytes")
	htmlResult, err := store.Put(contentstore.KindHTML, "https://example.com", content)
	require.Nil(t, err)
	mdResult, err := store.Put(contentstore.KindMarkdown, "https://example.com", content)
	require.Nil(t, err)

	assert.Equal(t, htmlResult.Hash(), mdResult.Hash(), "same bytes hash the same regardless of kind")
	assert.NotEqual(t, htmlResult.Path(), mdResult.Path(), "each kind gets its own subdirectory")
	assert.Equal(t, filepath.Join(baseDir, "html"), filepath.Dir(htmlResult.Path()))
	assert.Equal(t, filepath.Join(baseDir, "markdown"), filepath.Dir(mdResult.Path()))
}

func TestStore_Get_RoundTrips(t *testing.T) {
	sink := &metadataSinkMock{}
	store := contentstore.NewStore(t.TempDir(), hashutil.HashAlgoXXHash, sink)

	content := []byte("round trip me")
	result, err := store.Put(contentstore.KindExtracted, "https://example.com", content)
	require.Nil(t, err)

	got, found, getErr := store.Get(contentstore.KindExtracted, result.Hash())
	require.Nil(t, getErr)
	assert.True(t, found)
	assert.Equal(t, content, got)
}

func TestStore_Get_MissingBlobReturnsNotFound(t *testing.T) {
	store := contentstore.NewStore(t.TempDir(), hashutil.HashAlgoXXHash, &metadataSinkMock{})

	got, found, err := store.Get(contentstore.KindScreenshot, "deadbeefdeadbeef")
	require.Nil(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestStore_Put_RecordsErrorWhenBaseDirIsUnwritable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses permission checks")
	}

	baseDir := t.TempDir()
	require.NoError(t, os.Chmod(baseDir, 0555))
	defer os.Chmod(baseDir, 0755)

	sink := &metadataSinkMock{}
	store := contentstore.NewStore(filepath.Join(baseDir, "sub"), hashutil.HashAlgoXXHash, sink)

	_, err := store.Put(contentstore.KindHTML, "https://example.com", []byte("x"))
	assert.NotNil(t, err)
	assert.True(t, sink.recordErrorCalled)
}
