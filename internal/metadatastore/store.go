package metadatastore

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"github.com/rohmanhakim/docs-crawler/pkg/fileutil"
	"github.com/rohmanhakim/docs-crawler/pkg/retry"
	"go.etcd.io/bbolt"
)

func parentDir(path string) string {
	return filepath.Dir(path)
}

/*
Responsibilities
- Keep one CacheEntry row per normalized URL
- Upsert on Put (last writer wins)
- Serialize concurrent writers through a single bbolt handle, retrying
  with backoff instead of failing on a contended put

This store never looks at the content it points to; it only ever sees
the hashes and fields that C3 and the pipeline hand it.
*/

var bucketName = []byte("cache_entries")

// Store is the C4 contract: a single keyed table over CacheEntry rows.
type Store interface {
	Get(url string) (CacheEntry, bool, failure.ClassifiedError)
	Put(entry CacheEntry) failure.ClassifiedError
	Count() (int, failure.ClassifiedError)
	Clear() failure.ClassifiedError
	Drop() failure.ClassifiedError
}

// BoltStore is a bbolt-backed Store. bbolt serializes writers internally
// through a single file lock, which already satisfies "access is
// serialized"; retryParam governs how Put backs off when that lock is
// held by a concurrent writer for longer than expected.
type BoltStore struct {
	db           *bbolt.DB
	metadataSink metadata.MetadataSink
	retryParam   retry.RetryParam
}

// Open opens (creating if absent) a bbolt database at path and ensures
// the cache_entries bucket exists.
func Open(path string, metadataSink metadata.MetadataSink, retryParam retry.RetryParam) (*BoltStore, failure.ClassifiedError) {
	if err := fileutil.EnsureDir(parentDir(path)); err != nil {
		return nil, &MetadataStoreError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseOpenFailed,
		}
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, &MetadataStoreError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseOpenFailed,
		}
	}

	createErr := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if createErr != nil {
		db.Close()
		return nil, &MetadataStoreError{
			Message:   createErr.Error(),
			Retryable: false,
			Cause:     ErrCauseOpenFailed,
		}
	}

	return &BoltStore{db: db, metadataSink: metadataSink, retryParam: retryParam}, nil
}

// Close releases the underlying bbolt file handle.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Get looks up the row for url. found is false when no row exists.
func (s *BoltStore) Get(url string) (CacheEntry, bool, failure.ClassifiedError) {
	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(url))
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return CacheEntry{}, false, s.recordAndWrap("Get", url, &MetadataStoreError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseTransactionFailed,
			URL:       url,
		})
	}
	if raw == nil {
		return CacheEntry{}, false, nil
	}

	var wire cacheEntryWire
	if unmarshalErr := json.Unmarshal(raw, &wire); unmarshalErr != nil {
		return CacheEntry{}, false, s.recordAndWrap("Get", url, &MetadataStoreError{
			Message:   unmarshalErr.Error(),
			Retryable: false,
			Cause:     ErrCauseDecodingFailed,
			URL:       url,
		})
	}
	return fromWire(wire), true, nil
}

// Put upserts entry, retrying with exponential backoff if the underlying
// transaction fails to acquire the writer lock.
func (s *BoltStore) Put(entry CacheEntry) failure.ClassifiedError {
	result := retry.Retry(s.retryParam, func() (struct{}, failure.ClassifiedError) {
		return struct{}{}, s.put(entry)
	})
	if result.IsFailure() {
		return s.recordAndWrap("Put", entry.URL(), result.Err())
	}

	s.metadataSink.RecordArtifact(
		metadata.ArtifactMarkdown,
		entry.URL(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, entry.URL()),
		},
	)
	return nil
}

func (s *BoltStore) put(entry CacheEntry) failure.ClassifiedError {
	raw, err := json.Marshal(toWire(entry))
	if err != nil {
		return &MetadataStoreError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseEncodingFailed,
			URL:       entry.URL(),
		}
	}

	updateErr := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(entry.URL()), raw)
	})
	if updateErr != nil {
		return &MetadataStoreError{
			Message:   updateErr.Error(),
			Retryable: true,
			Cause:     ErrCauseTransactionFailed,
			URL:       entry.URL(),
		}
	}
	return nil
}

// Count returns the number of rows currently stored.
func (s *BoltStore) Count() (int, failure.ClassifiedError) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketName).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, s.recordAndWrap("Count", "", &MetadataStoreError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseTransactionFailed,
		})
	}
	return n, nil
}

// Clear removes every row but keeps the bucket (and the file) in place.
func (s *BoltStore) Clear() failure.ClassifiedError {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketName); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(bucketName)
		return err
	})
	if err != nil {
		return s.recordAndWrap("Clear", "", &MetadataStoreError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseTransactionFailed,
		})
	}
	return nil
}

// Drop removes the bucket and closes the underlying database handle.
// The store is unusable after Drop; callers reopen via Open.
func (s *BoltStore) Drop() failure.ClassifiedError {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketName); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return s.recordAndWrap("Drop", "", &MetadataStoreError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseTransactionFailed,
		})
	}
	if closeErr := s.db.Close(); closeErr != nil {
		return s.recordAndWrap("Drop", "", &MetadataStoreError{
			Message:   closeErr.Error(),
			Retryable: false,
			Cause:     ErrCauseTransactionFailed,
		})
	}
	return nil
}

func (s *BoltStore) recordAndWrap(action, url string, err failure.ClassifiedError) failure.ClassifiedError {
	if s.metadataSink == nil {
		return err
	}
	var storeErr *MetadataStoreError
	cause := metadata.CauseStorageFailure
	if errors.As(err, &storeErr) {
		cause = mapMetadataStoreErrorToMetadataCause(storeErr)
	}
	attrs := []metadata.Attribute{}
	if url != "" {
		attrs = append(attrs, metadata.NewAttr(metadata.AttrURL, url))
	}
	s.metadataSink.RecordError(
		time.Now(),
		"metadatastore",
		action,
		cause,
		err.Error(),
		attrs,
	)
	return err
}
