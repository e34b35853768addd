// Package model compiles a declarative chart into an immutable arena of nodes.
//
// Nodes refer to each other by NodeID, an index into the arena. Index 0 is a
// synthetic root that owns the top-level states; it is compound and never part
// of a configuration. Nodes are laid out in pre-order, so comparing indices
// compares document order.
//
// A compiled Document is read-only and safe to share between executors.
package model
