// Package core provides the runtime tier of the chart engine: the semantics
// engine, the configuration legality checker, history tracking, the invocation
// manager and the Machine that drives the macrostep loop.
//
// A Machine runs one step at a time. Other goroutines (event sources, invoked
// children) only ever enqueue events; the step loop drains them.
package core
