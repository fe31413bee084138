package providers

import (
	"context"
	"time"

	"ticketing-sync/feature/ticketing/models"
)

// Supported provider names, as stored on an organization's ticketing
// configuration.
const (
	Billetweb   = "billetweb"
	Dice        = "dice"
	Shotgun     = "shotgun"
	Supersoniks = "supersoniks"
	Yurplan     = "yurplan"
)

// Credentials holds the secrets configured for one organization. AccessKey
// is unused by providers that authenticate with a single token; Supersoniks
// carries its tenant domain there.
type Credentials struct {
	AccessKey string `json:"access_key,omitempty"`
	SecretKey string `json:"secret_key"`
}

// Connector is the contract every provider implements. Connectors are
// stateless aside from their credentials and, where a provider needs a
// rarely-changing side lookup, an in-process cache shared across instances.
type Connector interface {
	// Provider returns the provider name constant.
	Provider() string

	// TestConnection issues a minimal, cheap request to validate the stored
	// credentials without pulling real data. It returns false for wrong
	// credentials, and a typed business error when the credentials are valid
	// but the account is misconfigured (missing event rights, invalid
	// domain); only the latter is shown verbatim to the end user.
	TestConnection(ctx context.Context) (bool, error)

	// GetEventsSeries returns every serie that had at least one ticket
	// mutation (sale, refund, transfer) since from. to bounds the result in
	// controlled scenarios only; when nil, a result set too large to walk
	// safely fails with ErrTooMuchToRetrieve instead of being truncated.
	GetEventsSeries(ctx context.Context, from time.Time, to *time.Time) ([]models.EventSerieWrapper, error)
}
