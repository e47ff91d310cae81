package assets

import (
	"fmt"

	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
)

type AssetsErrorCause string

const (
	ErrCauseImageDownloadFailure  AssetsErrorCause = "failed to download image"
	ErrCauseNetworkFailure        AssetsErrorCause = "network failure"
	ErrCauseHashError             AssetsErrorCause = "hash error"
	ErrCauseWriteFailure          AssetsErrorCause = "write failure"
	ErrCausePathError             AssetsErrorCause = "path error"
	ErrCauseAssetTooLarge         AssetsErrorCause = "asset too large"
	ErrCauseRequest5xx            AssetsErrorCause = "server error"
	ErrCauseRequestTooMany        AssetsErrorCause = "rate limited"
	ErrCauseRequestPageForbidden  AssetsErrorCause = "request forbidden"
	ErrCauseRedirectLimitExceeded AssetsErrorCause = "redirect limit exceeded"
	ErrCauseReadResponseBodyError AssetsErrorCause = "read response body error"
	ErrCauseDiskFull              AssetsErrorCause = "disk full"
)

type AssetsError struct {
	Message   string
	Retryable bool
	Cause     AssetsErrorCause
}

func (e *AssetsError) Error() string {
	return fmt.Sprintf("assets error: %s", e.Cause)
}

func (e *AssetsError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapAssetsErrorToMetadataCause maps assets-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapAssetsErrorToMetadataCause(err AssetsError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseImageDownloadFailure, ErrCauseNetworkFailure, ErrCauseRequest5xx, ErrCauseRequestTooMany:
		return metadata.CauseNetworkFailure
	case ErrCausePathError, ErrCauseWriteFailure, ErrCauseDiskFull:
		return metadata.CauseStorageFailure
	case ErrCauseAssetTooLarge, ErrCauseRequestPageForbidden, ErrCauseRedirectLimitExceeded, ErrCauseReadResponseBodyError, ErrCauseHashError:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
