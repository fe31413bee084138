package providers

import (
	"errors"
	"fmt"
	"strings"
)

// Error is a typed business error safe to show to the end user verbatim.
// Code is stable and consumed by the presentation layer for localized
// messaging; everything that is not an *Error surfaces generically.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

var (
	// ErrWrongCredentials means the provider rejected the stored secrets.
	ErrWrongCredentials = &Error{Code: "wrong_credentials", Message: "the ticketing system rejected the configured credentials"}

	// ErrMissingEventRights means the credentials are valid but lack the
	// event-scoped rights the synchronization needs.
	ErrMissingEventRights = &Error{Code: "missing_event_rights", Message: "the configured API key is missing event-scoped rights"}

	// ErrInvalidDomain means the configured tenant domain does not resolve
	// to an account on the provider side.
	ErrInvalidDomain = &Error{Code: "invalid_domain", Message: "the configured domain name does not match a known account"}

	// ErrFirewallBlocked means the provider's firewall rejected the request
	// before it reached the API.
	ErrFirewallBlocked = &Error{Code: "firewall_blocked", Message: "the ticketing system firewall blocked the request"}

	// ErrTooMuchToRetrieve aborts a pass whose pagination totals exceed the
	// safety ceiling, rather than returning a truncated, misleading result.
	ErrTooMuchToRetrieve = &Error{Code: "too_much_to_retrieve", Message: "the result set is too large to retrieve safely"}

	// ErrDuplicateDeclaration is pattern-matched from remote conflict
	// messages reporting a duplicate or ambiguous declaration.
	ErrDuplicateDeclaration = &Error{Code: "duplicate_declaration", Message: "the remote system reports an ambiguous duplicate declaration"}
)

// IsBusiness reports whether err carries a stable code for the presentation
// layer.
func IsBusiness(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// StatusError is a non-2xx response that did not match any known signature.
// It propagates unchanged so callers see the raw provider payload.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// conflictPatterns maps remote error-message substrings to typed errors.
// The remote side has no stable error code, so matching is textual; keeping
// the table explicit keeps it auditable as remote error text drifts.
var conflictPatterns = []struct {
	substring string
	err       *Error
}{
	{substring: "already been declared", err: ErrDuplicateDeclaration},
	{substring: "duplicate declaration", err: ErrDuplicateDeclaration},
	{substring: "declaration en doublon", err: ErrDuplicateDeclaration},
	{substring: "plusieurs declarations possibles", err: ErrDuplicateDeclaration},
}

// MatchConflict returns the typed error matching a remote conflict message,
// or nil when no pattern applies (the caller then propagates the raw error).
func MatchConflict(message string) error {
	normalized := strings.ToLower(message)
	for _, p := range conflictPatterns {
		if strings.Contains(normalized, p.substring) {
			return p.err
		}
	}
	return nil
}
