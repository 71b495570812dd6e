// Package tim holds the domain model for Traveler Information Message
// broadcasts.
//
// Concepts
//
// A Document is one concrete broadcast instance: the contribution of one
// originating request to one roadside unit. An Aggregate is the consolidated
// broadcast the device actually receives for one (device, category, code)
// key; it merges the Documents of overlapping requests and carries the
// widest delivery window of its members.
//
// The aggregate is the unit of consistency: the request path, the
// reconciliation tick, and the device-confirmation consumer all mutate it,
// serialized through the store's per-aggregate version check.
package tim
