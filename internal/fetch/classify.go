package fetch

import (
	"context"
	"errors"
	"net"

	"github.com/ternarybob/crawlkit/internal/models"
)

// classifyStatus maps an HTTP status code to a failure kind when the
// response itself (not a transport error) signals trouble.
func classifyStatus(code int) models.FailureKind {
	switch {
	case code == 0:
		return models.FailureNone
	case code == 404 || code == 410:
		return models.FailureNotFound
	case code == 403 || code == 401 || code == 429:
		return models.FailureBlocked
	case code >= 500:
		return models.FailureTransient
	case code >= 400:
		return models.FailureInvalidContent
	default:
		return models.FailureNone
	}
}

// classifyError maps a transport-level error to a failure kind.
func classifyError(err error) models.FailureKind {
	if err == nil {
		return models.FailureNone
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return models.FailureTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return models.FailureTransient
		}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return models.FailureFatal
	}
	return models.FailureTransient
}

// IsRetryable reports whether a failed fetch should be retried with the
// same strategy (as opposed to falling forward to the next one).
func IsRetryable(kind models.FailureKind) bool {
	return kind == models.FailureTransient
}

// ErrorKindFor maps a FetchResult's failure classification onto the
// client-facing ErrorKind attached to a Document, so e.g. a 429 surfaces as
// FetchBlocked rather than the generic FetchFailed the string message alone
// would collapse everything to.
func ErrorKindFor(kind models.FailureKind) models.ErrorKind {
	switch kind {
	case models.FailureBlocked:
		return models.ErrFetchBlocked
	case models.FailureNotFound:
		return models.ErrNotFound
	default:
		return models.ErrFetchFailed
	}
}

// ShouldFallForward reports whether the selector should try the next
// fetcher strategy rather than retry the current one.
func ShouldFallForward(kind models.FailureKind) bool {
	return kind == models.FailureBlocked || kind == models.FailureInvalidContent
}
