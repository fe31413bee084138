// Package providers defines the contract every ticketing provider connector
// implements, the typed error taxonomy shared by all of them, and the strict
// payload validation applied to remote responses.
//
// Each supported platform (Billetweb, Dice, Shotgun, Supersoniks, Yurplan)
// lives in its own subpackage and translates its provider-specific wire
// format into the canonical model of feature/ticketing/models. Pagination
// strategies, authentication schemes and data quirks are deliberately not
// unified: only the external contract is shared.
package providers
