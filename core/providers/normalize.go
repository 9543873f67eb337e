package providers

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"

	"github.com/adalundhe/scriptorium/core/errors"
)

// normalizeError maps a raw SDK error onto the shared taxonomy. Callers
// get back a ClassedError they can test with errors.Is; the raw error
// stays wrapped underneath for logging.
func normalizeError(provider string, err error) error {
	if err == nil {
		return nil
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.New(errors.ClassTimeout, provider+" call timed out", err)
	}
	if stderrors.Is(err, context.Canceled) {
		return err
	}

	if status, retryAfter, message, ok := extractAPIError(err); ok {
		return classifyStatus(provider, status, retryAfter, message, err)
	}

	// Connection-level failures (no HTTP response) are transient.
	return errors.New(errors.ClassProviderUnavailable, provider+" unreachable", err)
}

// extractAPIError pulls status code, retry-after hint, and message out of
// either SDK's API error type.
func extractAPIError(err error) (status int, retryAfter time.Duration, message string, ok bool) {
	var oaErr *openai.Error
	if stderrors.As(err, &oaErr) {
		return oaErr.StatusCode, retryAfterHeader(oaErr.Response), oaErr.Message, true
	}

	var anErr *anthropic.Error
	if stderrors.As(err, &anErr) {
		return anErr.StatusCode, retryAfterHeader(anErr.Response), anErr.Error(), true
	}

	return 0, 0, "", false
}

func retryAfterHeader(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func classifyStatus(provider string, status int, retryAfter time.Duration, message string, err error) error {
	if isContentPolicyMessage(message) {
		return errors.New(errors.ClassContentPolicy, provider+" refused the content", err).
			WithStatusCode(status)
	}

	switch {
	case status == http.StatusTooManyRequests:
		return errors.New(errors.ClassRateLimited, provider+" rate limited", err).
			WithStatusCode(status).
			WithRetryAfter(retryAfter)
	case status == http.StatusRequestTimeout:
		return errors.New(errors.ClassTimeout, provider+" request timed out", err).
			WithStatusCode(status)
	case status >= 500:
		return errors.New(errors.ClassProviderUnavailable, provider+" unavailable", err).
			WithStatusCode(status)
	default:
		// 4xx without a policy signature is a caller or configuration bug.
		return errors.New(errors.ClassInvalidRequest, provider+" rejected the request", err).
			WithStatusCode(status)
	}
}

// isContentPolicyMessage matches the phrasing both backends use for
// moderation rejections.
func isContentPolicyMessage(message string) bool {
	lowered := strings.ToLower(message)
	for _, marker := range []string{"content policy", "content_filter", "content management policy", "refusal"} {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// isStaleThreadError reports whether a resume attempt failed because the
// provider no longer knows the thread ref. The adapter reconciles these
// by replaying local history on a fresh thread.
func isStaleThreadError(err error) bool {
	status, _, message, ok := extractAPIError(err)
	if !ok {
		return false
	}
	if status == http.StatusNotFound {
		return true
	}
	return status == http.StatusBadRequest && strings.Contains(strings.ToLower(message), "previous_response")
}
