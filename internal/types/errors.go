package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrMissingCredentials = errors.New("token and fakeid are required")
	ErrRateLimited        = errors.New("listing rate limited by platform")
	ErrEmptyContent       = errors.New("no usable article content found")
	ErrNotImage           = errors.New("response is not an image")
	ErrInvalidImage       = errors.New("downloaded file failed image validation")
	ErrInvalidURL         = errors.New("invalid URL")
	ErrManifestEmpty      = errors.New("failed manifest has no entries")
)

// FetchError wraps errors that occur during fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// FeedError wraps a non-zero status in the listing API envelope.
type FeedError struct {
	Ret     int
	Message string
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("feed error ret=%d: %s", e.Ret, e.Message)
}

// RateLimited reports whether the envelope status means frequency
// control rather than a hard failure.
func (e *FeedError) RateLimited() bool {
	return e.Ret == 200013 || strings.Contains(strings.ToLower(e.Message), "freq control")
}

func (e *FeedError) Unwrap() error {
	if e.RateLimited() {
		return ErrRateLimited
	}
	return nil
}

// ExtractError wraps errors that occur while pulling content from an
// article page.
type ExtractError struct {
	URL string
	Err error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract error for %s: %v", e.URL, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// RenderError wraps errors from a single output format.
type RenderError struct {
	Format string
	Path   string
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render error (%s) for %s: %v", e.Format, e.Path, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
