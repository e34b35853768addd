// Package primitives provides the foundational data structures for the chart engine:
// the declarative chart source (DocumentConfig and friends), the Event record, the
// scoped variable Context and the fluent DocumentBuilder.
//
// Nothing in this package executes a chart. Configs are plain values with json and
// yaml tags so they can be authored in Go, decoded from files, or embedded in
// snapshots. internal/model compiles them into the immutable node arena the
// interpreter runs against.
//
// Core invariants:
//   - Events are values; consumers never mutate a received Event
//   - Context lookups delegate to the parent scope, writes stay in the scope that
//     already defines the name
//   - Child order in configs is document order, it is the only tie-break the
//     interpreter uses
package primitives
