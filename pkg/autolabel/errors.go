package autolabel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/menta2k/yolo-annotator/pkg/client"
)

var (
	// ErrAuth marks a missing or invalid credential for the detection
	// backend. Terminal; surfaced to the user.
	ErrAuth = errors.New("authentication failed")
	// ErrQuota marks a rate or quota limit. Terminal; surfaced with a
	// retry-later message.
	ErrQuota = errors.New("quota or rate limit exceeded")
	// ErrNetwork marks a transport failure that survived the retry policy.
	ErrNetwork = errors.New("network error")
)

// Classify maps a terminal detection-call error onto the error taxonomy so
// the caller can branch on errors.Is instead of string-matching transport
// noise. Parse failures keep their sentinel from the client package.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, client.ErrParse) ||
		errors.Is(err, ErrAuth) || errors.Is(err, ErrQuota) || errors.Is(err, ErrNetwork) {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "api key") ||
		strings.Contains(msg, "status 401") ||
		strings.Contains(msg, "status 403"):
		return fmt.Errorf("%w: %v", ErrAuth, err)
	case strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "status 429"):
		return fmt.Errorf("%w: %v", ErrQuota, err)
	default:
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
}

// IsModelUnavailable reports whether an error looks like the not-found class
// of failure for a model identifier, which triggers the fallback model.
func IsModelUnavailable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "status 404")
}
