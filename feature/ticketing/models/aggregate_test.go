package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNetPrice tests commission subtraction with the zero clamp.
func TestNetPrice(t *testing.T) {
	tests := []struct {
		name       string
		gross      float64
		commission float64
		expected   float64
	}{
		{name: "commission subtracted", gross: 1000, commission: 50, expected: 950},
		{name: "no commission", gross: 25.5, commission: 0, expected: 25.5},
		{name: "free ticket stays free", gross: 0, commission: 0, expected: 0},
		{name: "commission above price clamps to zero", gross: 2, commission: 3, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NetPrice(tt.gross, tt.commission))
		})
	}
}

// TestAggregateTaxRate tests the event-level tax rate reconciliation rules.
func TestAggregateTaxRate(t *testing.T) {
	rate := func(v float64) *float64 { return &v }

	tests := []struct {
		name     string
		tickets  []RatedTicket
		expected *float64
	}{
		{
			name:     "no tickets",
			tickets:  nil,
			expected: nil,
		},
		{
			name: "single rate",
			tickets: []RatedTicket{
				{Price: 20, TaxRate: 0.055},
				{Price: 30, TaxRate: 0.055},
			},
			expected: rate(0.055),
		},
		{
			name: "mixed non-zero rates are indeterminate",
			tickets: []RatedTicket{
				{Price: 20, TaxRate: 0.055},
				{Price: 30, TaxRate: 0.2},
			},
			expected: nil,
		},
		{
			name: "free ticket zero rate does not count as a second rate",
			tickets: []RatedTicket{
				{Price: 20, TaxRate: 0.2},
				{Price: 0, TaxRate: 0},
			},
			expected: rate(0.2),
		},
		{
			name: "only free tickets",
			tickets: []RatedTicket{
				{Price: 0, TaxRate: 0},
				{Price: 0, TaxRate: 0},
			},
			expected: nil,
		},
		{
			name: "paid tickets all untaxed",
			tickets: []RatedTicket{
				{Price: 20, TaxRate: 0},
				{Price: 30, TaxRate: 0},
			},
			expected: rate(0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AggregateTaxRate(tt.tickets)
			if tt.expected == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.expected, *got, 1e-12)
		})
	}
}

// TestCountTickets tests that a zero price is always classified as free.
func TestCountTickets(t *testing.T) {
	free, paid := CountTickets([]float64{0, 12.5, 0, 30, 30})
	assert.Equal(t, 2, free)
	assert.Equal(t, 3, paid)

	free, paid = CountTickets(nil)
	assert.Equal(t, 0, free)
	assert.Equal(t, 0, paid)
}

// TestNamespacedID tests that distinct scopes can never produce colliding
// identifiers for the same native ID.
func TestNamespacedID(t *testing.T) {
	a := NamespacedID("venue-a", "42")
	b := NamespacedID("venue-b", "42")

	assert.Equal(t, "venue-a_42", a)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, NamespacedID("venue-a", "42"))
}

// TestSaleKey tests the composite uniqueness key.
func TestSaleKey(t *testing.T) {
	sale := Sale{
		InternalEventTicketingSystemID:          "ev-1",
		InternalTicketCategoryTicketingSystemID: "cat-2",
	}
	assert.Equal(t, "ev-1|cat-2", sale.Key())

	other := Sale{
		InternalEventTicketingSystemID:          "ev-1",
		InternalTicketCategoryTicketingSystemID: "cat-3",
	}
	assert.NotEqual(t, sale.Key(), other.Key())
}
