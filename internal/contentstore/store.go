package contentstore

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"github.com/rohmanhakim/docs-crawler/pkg/fileutil"
	"github.com/rohmanhakim/docs-crawler/pkg/hashutil"
)

/*
Responsibilities
- Persist large crawl artifacts (raw/cleaned HTML, markdown, extracted
  content, screenshots, PDFs) under one subdirectory per kind
- Name every blob by its own content hash, so identical content fetched
  from different URLs is written once
- Skip writes when the blob already exists (write-once, append-only)

This store never interprets content; it is a dumb, hash-addressed
filesystem layer sitting under the metadata store (C4), which is what
maps a URL to the hashes recorded here.
*/

// Store is a hash-addressed blob store, one subdirectory per Kind.
type Store struct {
	baseDir      string
	hashAlgo     hashutil.HashAlgo
	metadataSink metadata.MetadataSink
}

// NewStore constructs a Store rooted at baseDir, hashing blobs with algo.
func NewStore(baseDir string, hashAlgo hashutil.HashAlgo, metadataSink metadata.MetadataSink) *Store {
	return &Store{
		baseDir:      baseDir,
		hashAlgo:     hashAlgo,
		metadataSink: metadataSink,
	}
}

var artifactKindByKind = map[Kind]metadata.ArtifactKind{
	KindHTML:        metadata.ArtifactMarkdown, // raw HTML has no dedicated ArtifactKind; recorded alongside markdown artifacts
	KindCleanedHTML: metadata.ArtifactMarkdown,
	KindMarkdown:    metadata.ArtifactMarkdown,
	KindExtracted:   metadata.ArtifactMarkdown,
	KindScreenshot:  metadata.ArtifactScreenshot,
	KindPDF:         metadata.ArtifactPDF,
}

var extensionByKind = map[Kind]string{
	KindHTML:        ".html",
	KindCleanedHTML: ".html",
	KindMarkdown:    ".md",
	KindExtracted:   ".json",
	KindScreenshot:  ".png",
	KindPDF:         ".pdf",
}

// Put writes content under kind's subdirectory, named by its content
// hash. If a blob with that hash already exists, the write is skipped
// and PutResult.Deduped reports true.
func (s *Store) Put(kind Kind, sourceURL string, content []byte) (PutResult, failure.ClassifiedError) {
	hash, err := hashutil.HashBytes(content, s.hashAlgo)
	if err != nil {
		return PutResult{}, &ContentStoreError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseHashComputationFailed,
		}
	}

	dir := filepath.Join(s.baseDir, kind.dirName())
	if dirErr := fileutil.EnsureDir(dir); dirErr != nil {
		storeErr := &ContentStoreError{
			Message:   dirErr.Error(),
			Retryable: dirErr.Severity() == failure.SeverityRecoverable,
			Cause:     ErrCausePathError,
			Path:      dir,
		}
		return PutResult{}, s.recordAndWrap("Put", sourceURL, dir, storeErr)
	}

	path := filepath.Join(dir, hash+extensionByKind[kind])

	if _, statErr := os.Stat(path); statErr == nil {
		result := newPutResult(hash, path, true)
		s.recordArtifact(kind, sourceURL, result)
		return result, nil
	}

	if writeErr := os.WriteFile(path, content, 0644); writeErr != nil {
		cause := ErrCauseWriteFailure
		retryable := false
		if errors.Is(writeErr, syscall.ENOSPC) {
			cause = ErrCauseDiskFull
			retryable = true
		}
		storeErr := &ContentStoreError{
			Message:   writeErr.Error(),
			Retryable: retryable,
			Cause:     cause,
			Path:      path,
		}
		return PutResult{}, s.recordAndWrap("Put", sourceURL, path, storeErr)
	}

	result := newPutResult(hash, path, false)
	s.recordArtifact(kind, sourceURL, result)
	return result, nil
}

// Get reads back a previously stored blob by kind and hash. The second
// return value is false when no such blob exists.
func (s *Store) Get(kind Kind, hash string) ([]byte, bool, failure.ClassifiedError) {
	path := filepath.Join(s.baseDir, kind.dirName(), hash+extensionByKind[kind])
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, &ContentStoreError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseReadFailure,
			Path:      path,
		}
	}
	return content, true, nil
}

// Path returns the on-disk path a blob with hash would occupy under
// kind, whether or not it currently exists.
func (s *Store) Path(kind Kind, hash string) string {
	return filepath.Join(s.baseDir, kind.dirName(), hash+extensionByKind[kind])
}

func (s *Store) recordArtifact(kind Kind, sourceURL string, result PutResult) {
	if s.metadataSink == nil {
		return
	}
	s.metadataSink.RecordArtifact(
		artifactKindByKind[kind],
		result.Path(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, sourceURL),
			metadata.NewAttr(metadata.AttrWritePath, result.Path()),
			metadata.NewAttr(metadata.AttrField, result.Hash()),
		},
	)
}

func (s *Store) recordAndWrap(action, sourceURL, path string, err failure.ClassifiedError) failure.ClassifiedError {
	if s.metadataSink == nil {
		return err
	}
	var storeErr *ContentStoreError
	cause := metadata.CauseStorageFailure
	if errors.As(err, &storeErr) {
		cause = mapContentStoreErrorToMetadataCause(storeErr)
	}
	s.metadataSink.RecordError(
		time.Now(),
		"contentstore",
		action,
		cause,
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, sourceURL),
			metadata.NewAttr(metadata.AttrWritePath, path),
		},
	)
	return err
}
