// Package events declares the payloads published on the in-process event
// bus. Subscribers (telemetry, tests) receive them; the publishing code has
// no dependency on any telemetry backend.
package events

import "time"

// ResolveStart is emitted when a top-level resolution call begins.
type ResolveStart struct {
	Mode     string // "blocking" or "suspending"
	MaxDepth int
}

// ResolveFinish is emitted when a top-level resolution call ends.
type ResolveFinish struct {
	Mode     string
	MaxDepth int
	// Buckets is the number of target-collection buckets scanned.
	Buckets int
	// Fetched is the number of objects materialized into the object map.
	Fetched  int
	Err      error
	Duration time.Duration
}

// FetchStart is emitted before a bulk lookup against one collection.
type FetchStart struct {
	Collection string
	// IDs is the number of identifiers requested after deduplication.
	IDs int
}

// FetchFinish is emitted after a bulk lookup against one collection.
type FetchFinish struct {
	Collection string
	Found      int
	Err        error
	Duration   time.Duration
}
