// Package engine implements the dual-feed correlation and timing core.
//
// correlator.go provides the pure, single-threaded Correlator: a keyed
// matching table that pairs the two feeds' arrivals for the same update
// identifier, computes the inter-arrival gap, and maintains bounded
// recent-history windows so memory stays constant under indefinite ingestion.
//
// engine.go provides the Engine wrapper: one owning goroutine consumes
// arrival events and snapshot requests from channels, so all Correlator
// mutation and every read are serialized without locks. Completed pairs are
// handed to an optional sink through a callback that must not block.
//
// Correlation is by identifier, not wall-clock proximity: push cadence
// differs between feeds, and nearest-timestamp pairing would mis-attribute
// ordering under bursty delivery. The pending table pairs each key at most
// once, yielding exactly one timing sample per key regardless of delivery
// order or retransmission.
package engine
