package fallback

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/zen-systems/ecoscan/pkg/adapter"
)

// Class is the failure classification that drives fallback control flow.
type Class int

const (
	// Other is a non-transient failure; the run aborts.
	Other Class = iota
	// Quota is a rate or resource exhaustion signal; the next candidate is tried.
	Quota
	// NotFound means the model is unavailable to the active credential.
	NotFound
	// Auth is a credential rejection. It aborts like Other.
	Auth
	// Timeout means a single attempt hit its deadline; treated like Quota.
	Timeout
)

func (c Class) String() string {
	switch c {
	case Quota:
		return "quota"
	case NotFound:
		return "not_found"
	case Auth:
		return "auth"
	case Timeout:
		return "timeout"
	default:
		return "other"
	}
}

// Transient reports whether the orchestrator moves on to the next candidate.
func (c Class) Transient() bool {
	return c == Quota || c == NotFound || c == Timeout
}

// Descriptor is the provider-neutral view of an error used for classification.
type Descriptor struct {
	Status  int
	Code    string
	Message string
	Timeout bool
}

// Describe flattens err into a Descriptor. Adapter errors contribute their
// status and code; anything else contributes only its message.
func Describe(err error) Descriptor {
	if err == nil {
		return Descriptor{}
	}
	d := Descriptor{Message: err.Error()}

	var adapterErr *adapter.Error
	if errors.As(err, &adapterErr) {
		d.Status = adapterErr.Status
		d.Code = adapterErr.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		d.Timeout = true
	}
	return d
}

var (
	quotaCodes = map[string]bool{
		"RESOURCE_EXHAUSTED":  true,
		"RATE_LIMIT_EXCEEDED": true,
		"RATE_LIMIT_ERROR":    true,
		"INSUFFICIENT_QUOTA":  true,
	}
	notFoundCodes = map[string]bool{
		"NOT_FOUND":       true,
		"MODEL_NOT_FOUND": true,
		"NOT_FOUND_ERROR": true,
	}
	authCodes = map[string]bool{
		"UNAUTHENTICATED":      true,
		"PERMISSION_DENIED":    true,
		"INVALID_API_KEY":      true,
		"AUTHENTICATION_ERROR": true,
		"PERMISSION_ERROR":     true,
	}
)

// Classify maps a Descriptor to a Class. Status codes win over provider
// codes, which win over message markers.
func Classify(d Descriptor) Class {
	if d.Timeout {
		return Timeout
	}

	switch d.Status {
	case http.StatusTooManyRequests:
		return Quota
	case http.StatusNotFound:
		return NotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return Auth
	}

	code := strings.ToUpper(d.Code)
	switch {
	case quotaCodes[code]:
		return Quota
	case notFoundCodes[code]:
		return NotFound
	case authCodes[code]:
		return Auth
	}

	msg := d.Message
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "RESOURCE_EXHAUSTED"), strings.Contains(lower, "quota exceeded"):
		return Quota
	case strings.Contains(msg, "404"), strings.Contains(msg, "Requested entity was not found"):
		return NotFound
	case strings.Contains(lower, "api key not valid"), strings.Contains(lower, "invalid api key"), strings.Contains(lower, "incorrect api key"):
		return Auth
	}
	return Other
}

// ClassifyError is Classify(Describe(err)).
func ClassifyError(err error) Class {
	return Classify(Describe(err))
}
