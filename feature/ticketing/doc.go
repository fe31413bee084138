// Package ticketing implements the ticketing synchronization feature.
//
// It pulls sales and attendance data from external ticketing providers,
// normalizes it into the canonical serie/event/category/sale model and
// reconciles it against the previously stored snapshots:
//  1. Providers: Billetweb, Dice, Shotgun, Supersoniks, Yurplan.
//  2. Diffing: The `core/diffs` engine classifies each fetched serie.
//  3. Snapshots: The store package persists the last accepted state.
//
// # Components
//
//   - Service: Validates requests and drives the sync orchestrator.
//   - Handler: Exposes HTTP endpoints to trigger passes and check credentials.
//   - Feature: Registers the feature with the application loader.
//
// # HTTP Endpoints
//
//   - POST /ticketing/sync  : Run one reconciled synchronization pass.
//   - POST /ticketing/check : Validate the configured provider credentials.
package ticketing
