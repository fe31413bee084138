package models

import "time"

// EventSerie is the declarable unit representing one show, potentially
// spanning several dated performances.
type EventSerie struct {
	// InternalTicketingSystemID is the provider-side identifier, unique per
	// provider + organization. Providers whose native IDs are not globally
	// unique must namespace it (see NamespacedID).
	InternalTicketingSystemID string `json:"internal_ticketing_system_id"`

	// Name is the display name of the serie.
	Name string `json:"name"`

	// StartAt is the start of the serie span. Nil for providers without a
	// notion of series span.
	StartAt *time.Time `json:"start_at,omitempty"`

	// EndAt is the end of the serie span.
	EndAt *time.Time `json:"end_at,omitempty"`

	// TaxRate is the serie-level tax rate. Nil when the provider exposes it
	// per event instead.
	TaxRate *float64 `json:"tax_rate,omitempty"`
}

// Event is one dated performance within a serie. For providers with no
// sub-event grouping, serie and event collapse 1:1.
type Event struct {
	// InternalTicketingSystemID is unique within its serie, or globally
	// unique when the provider has no sub-event grouping.
	InternalTicketingSystemID string `json:"internal_ticketing_system_id"`

	StartAt time.Time  `json:"start_at"`
	EndAt   *time.Time `json:"end_at,omitempty"`

	// Pre-aggregated revenue fields, populated only by providers that report
	// sales at event granularity instead of exposing per-category sales.
	TicketingRevenueIncludingTaxes *float64 `json:"ticketing_revenue_including_taxes,omitempty"`
	TicketingRevenueExcludingTaxes *float64 `json:"ticketing_revenue_excluding_taxes,omitempty"`
	TicketingRevenueTaxRate        *float64 `json:"ticketing_revenue_tax_rate,omitempty"`
	FreeTickets                    *int     `json:"free_tickets,omitempty"`
	PaidTickets                    *int     `json:"paid_tickets,omitempty"`
}

// TicketCategory is a priced tier (e.g. "Adult", "Child").
type TicketCategory struct {
	InternalTicketingSystemID string  `json:"internal_ticketing_system_id"`
	Name                      string  `json:"name"`
	Description               *string `json:"description,omitempty"`

	// Price is the unit price excluding any ticketing-platform commission.
	// The declared amount must reflect what the venue ultimately earns, so
	// commission is subtracted before this value is produced.
	Price float64 `json:"price"`
}

// Sale links one Event to one TicketCategory with a ticket count. The pair
// of internal IDs is unique within a wrapper.
type Sale struct {
	InternalEventTicketingSystemID          string `json:"internal_event_ticketing_system_id"`
	InternalTicketCategoryTicketingSystemID string `json:"internal_ticket_category_ticketing_system_id"`
	Total                                   int    `json:"total"`
}

// Key returns the composite uniqueness key of the sale.
func (s Sale) Key() string {
	return s.InternalEventTicketingSystemID + "|" + s.InternalTicketCategoryTicketingSystemID
}

// EventSerieWrapper is the top-level synchronization unit produced fresh on
// every pass. Sales may be empty when the provider reports revenue at event
// granularity only; consumers must key off the serie shape.
type EventSerieWrapper struct {
	Serie            EventSerie       `json:"serie"`
	Events           []Event          `json:"events"`
	TicketCategories []TicketCategory `json:"ticket_categories"`
	Sales            []Sale           `json:"sales"`
}
