package cachevalidator

import (
	"fmt"

	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

type ValidatorErrorCause string

const (
	ErrCauseTimeout         ValidatorErrorCause = "timeout"
	ErrCauseNetworkFailure  ValidatorErrorCause = "network failure"
	ErrCauseUnexpectedStatus ValidatorErrorCause = "unexpected status"
)

// ValidatorError always classifies as recoverable: per §7, validator
// errors never fail the crawl, they only degrade SMART to a full fetch.
type ValidatorError struct {
	Message string
	Cause   ValidatorErrorCause
}

func (e *ValidatorError) Error() string {
	return fmt.Sprintf("cache validator error: %s: %s", e.Cause, e.Message)
}

func (e *ValidatorError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}
