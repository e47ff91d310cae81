package metadatastore

import (
	"fmt"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

type MetadataStoreErrorCause string

const (
	ErrCauseOpenFailed       MetadataStoreErrorCause = "database open failed"
	ErrCauseTransactionFailed MetadataStoreErrorCause = "transaction failed"
	ErrCauseEncodingFailed   MetadataStoreErrorCause = "encoding failed"
	ErrCauseDecodingFailed   MetadataStoreErrorCause = "decoding failed"
	ErrCauseNotFound         MetadataStoreErrorCause = "entry not found"
)

type MetadataStoreError struct {
	Message   string
	Retryable bool
	Cause     MetadataStoreErrorCause
	URL       string
}

func (e *MetadataStoreError) Error() string {
	return fmt.Sprintf("metadatastore error: %s", e.Cause)
}

func (e *MetadataStoreError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *MetadataStoreError) IsRetryable() bool {
	return e.Retryable
}

// mapMetadataStoreErrorToMetadataCause maps metadatastore-local error
// semantics to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapMetadataStoreErrorToMetadataCause(err *MetadataStoreError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseOpenFailed, ErrCauseTransactionFailed:
		return metadata.CauseStorageFailure
	case ErrCauseEncodingFailed, ErrCauseDecodingFailed:
		return metadata.CauseInvariantViolation
	default:
		return metadata.CauseUnknown
	}
}
