// Package cachevalidator implements C5: deciding whether a cached
// CrawlResult is still usable without performing a full fetch.
package cachevalidator

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/fingerprint"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
)

// Outcome is one of the four results §4.5 defines.
type Outcome string

const (
	Fresh   Outcome = "fresh"
	Stale   Outcome = "stale"
	Unknown Outcome = "unknown"
	Error   Outcome = "error"
)

// headReadLimit bounds the streamed GET performed in step 2/3: the
// validator reads at most this many bytes, or up to and including
// </head>, whichever comes first.
const headReadLimit = 64 * 1024

// Input carries whatever validation metadata the caller has stored for
// url from a previous crawl.
type Input struct {
	URL                   string
	StoredETag            string
	StoredLastModified    string
	StoredHeadFingerprint string
}

// Result reports the validation outcome plus any fresher metadata the
// caller should persist. The validator never rewrites the cache itself.
type Result struct {
	Outcome            Outcome
	Reason             string
	NewETag            string
	NewLastModified    string
	NewHeadFingerprint string
}

// Validator runs the §4.5 algorithm over an HTTP(S) URL.
type Validator struct {
	client       *http.Client
	timeout      time.Duration
	metadataSink metadata.MetadataSink
}

// New builds a Validator. client should be HTTP/2-capable (Go's
// net/http.Client negotiates HTTP/2 automatically over TLS; no separate
// client library is required). timeout bounds every request the
// validator issues, default 10s per §4.5/§5.
func New(client *http.Client, timeout time.Duration, metadataSink metadata.MetadataSink) *Validator {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Validator{client: client, timeout: timeout, metadataSink: metadataSink}
}

// Validate runs the five-step algorithm described in §4.5.
func (v *Validator) Validate(ctx context.Context, in Input) Result {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	hasConditional := in.StoredETag != "" || in.StoredLastModified != ""
	hasFingerprint := in.StoredHeadFingerprint != ""

	if !hasConditional && !hasFingerprint {
		// Step 4: nothing to validate against.
		return Result{Outcome: Unknown, Reason: "no validation data"}
	}

	var newETag, newLastModified string
	if hasConditional {
		var fresh bool
		var err error
		fresh, newETag, newLastModified, err = v.conditionalHead(ctx, in)
		if err != nil {
			return v.recordAndReturnError("conditionalHead", in.URL, err)
		}
		if fresh {
			return Result{
				Outcome:         Fresh,
				Reason:          "304",
				NewETag:         newETag,
				NewLastModified: newLastModified,
			}
		}
		// Server returned 200 (or no conditional support): fall through to
		// fingerprint comparison (step 2) when we have one to compare
		// against; otherwise treat the 200 itself as staleness evidence.
		if !hasFingerprint {
			return Result{Outcome: Stale, Reason: "200", NewETag: newETag, NewLastModified: newLastModified}
		}
	}

	// Step 2/3: fingerprint comparison via a bounded streamed GET.
	newFingerprint, err := v.streamedHeadFingerprint(ctx, in.URL)
	if err != nil {
		return v.recordAndReturnError("streamedHeadFingerprint", in.URL, err)
	}

	if newFingerprint == in.StoredHeadFingerprint {
		return Result{Outcome: Fresh, Reason: "fingerprint-match", NewETag: newETag, NewLastModified: newLastModified, NewHeadFingerprint: newFingerprint}
	}
	return Result{Outcome: Stale, Reason: "fingerprint-mismatch", NewETag: newETag, NewLastModified: newLastModified, NewHeadFingerprint: newFingerprint}
}

// conditionalHead issues a HEAD with If-None-Match/If-Modified-Since.
// fresh=true means the server replied 304.
func (v *Validator) conditionalHead(ctx context.Context, in Input) (fresh bool, etag, lastModified string, err error) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodHead, in.URL, nil)
	if reqErr != nil {
		return false, "", "", &ValidatorError{Message: reqErr.Error(), Cause: ErrCauseNetworkFailure}
	}
	if in.StoredETag != "" {
		req.Header.Set("If-None-Match", in.StoredETag)
	}
	if in.StoredLastModified != "" {
		req.Header.Set("If-Modified-Since", in.StoredLastModified)
	}

	resp, doErr := v.client.Do(req)
	if doErr != nil {
		return false, "", "", classifyErr(ctx, doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return true, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), nil
	}
	return false, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), nil
}

// streamedHeadFingerprint performs a streamed GET, aborting after reading
// </head> or headReadLimit bytes, and fingerprints what it read.
func (v *Validator) streamedHeadFingerprint(ctx context.Context, rawURL string) (string, error) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if reqErr != nil {
		return "", &ValidatorError{Message: reqErr.Error(), Cause: ErrCauseNetworkFailure}
	}

	resp, doErr := v.client.Do(req)
	if doErr != nil {
		return "", classifyErr(ctx, doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &ValidatorError{
			Message: resp.Status,
			Cause:   ErrCauseUnexpectedStatus,
		}
	}

	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for len(buf) < headReadLimit && !strings.Contains(strings.ToLower(string(buf)), "</head>") {
		want := headReadLimit - len(buf)
		if want > len(chunk) {
			want = len(chunk)
		}
		n, readErr := resp.Body.Read(chunk[:want])
		buf = append(buf, chunk[:n]...)
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", &ValidatorError{Message: readErr.Error(), Cause: ErrCauseNetworkFailure}
		}
	}

	head := extractHeadPrefix(string(buf))
	return fingerprint.Fingerprint(head), nil
}

// extractHeadPrefix returns everything up to and including </head> if
// present, else the whole (bounded) body handed to it.
func extractHeadPrefix(body string) string {
	lower := strings.ToLower(body)
	if idx := strings.Index(lower, "</head>"); idx >= 0 {
		return body[:idx+len("</head>")]
	}
	return body
}

func classifyErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return &ValidatorError{Message: err.Error(), Cause: ErrCauseTimeout}
	}
	return &ValidatorError{Message: err.Error(), Cause: ErrCauseNetworkFailure}
}

func (v *Validator) recordAndReturnError(action, url string, err error) Result {
	if v.metadataSink != nil {
		v.metadataSink.RecordError(
			time.Now(),
			"cachevalidator",
			action,
			metadata.CauseNetworkFailure,
			err.Error(),
			[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, url)},
		)
	}
	return Result{Outcome: Error, Reason: err.Error()}
}
