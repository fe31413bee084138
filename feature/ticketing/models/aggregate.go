package models

import "fmt"

// NamespacedID builds a deterministic identifier for providers whose native
// IDs are not globally unique across accounts. Prefixing with the account or
// domain scope guarantees that re-adding the same credentials never collides
// with, nor silently merges into, another organization's prior data.
func NamespacedID(scope, native string) string {
	return fmt.Sprintf("%s_%s", scope, native)
}

// NetPrice subtracts the platform commission from a gross unit price so the
// canonical price reflects what the venue ultimately earns. A commission
// larger than the price clamps to zero rather than going negative.
func NetPrice(gross, commission float64) float64 {
	net := gross - commission
	if net < 0 {
		return 0
	}
	return net
}

// RatedTicket carries the per-ticket figures needed for tax-rate and
// free/paid aggregation when a provider reports at ticket granularity.
type RatedTicket struct {
	// Price is the normalized unit price (commission already subtracted).
	Price float64
	// TaxRate is the rate reported for this ticket (e.g. 0.055 for 5.5%).
	TaxRate float64
}

// AggregateTaxRate reconciles per-ticket tax rates into one event-level rate.
// Free tickets (price 0) are excluded: a free ticket reporting 0% does not
// constitute a second rate. When the remaining tickets mix multiple distinct
// non-zero rates the result is nil (indeterminate) rather than a guess.
func AggregateTaxRate(tickets []RatedTicket) *float64 {
	nonZero := make(map[float64]struct{})
	paidSeen := false

	for _, t := range tickets {
		if t.Price == 0 {
			continue
		}
		paidSeen = true
		if t.TaxRate != 0 {
			nonZero[t.TaxRate] = struct{}{}
		}
	}

	switch len(nonZero) {
	case 0:
		if !paidSeen {
			return nil
		}
		zero := 0.0
		return &zero
	case 1:
		for rate := range nonZero {
			return &rate
		}
	}
	return nil
}

// CountTickets tallies free and paid tickets. A zero normalized price is
// always classified as free regardless of category metadata.
func CountTickets(prices []float64) (free, paid int) {
	for _, p := range prices {
		if p == 0 {
			free++
		} else {
			paid++
		}
	}
	return free, paid
}
