// Package engine implements the core runtime loop: a single goroutine that
// ticks at a fixed interval, owns every state manager and is the only code
// that mutates them.
//
// # Architecture
//
// Components never touch shared state. Each one holds a secondary copy of
// its own progress plus queue managers, one per message family. Every tick
// the engine:
//
//  1. Delivers UI events queued through Dispatch to active components.
//  2. Rebuilds the component set if navigation changed since the last tick
//     (or on the first tick).
//  3. Drains every family each active component is permitted to emit and
//     replays the messages onto the primary managers through one handler
//     per family.
//  4. Snapshots the managers and runs the snapshot through the integrity
//     engine. A snapshot that is not perfectly valid is a defect in this
//     process and stops the loop with SELF_CHECK_FAILED.
//  5. Hands the canonical snapshot to the persistence sink when it changed
//     this tick or the periodic interval elapsed.
//
// # Failure isolation
//
// Component-progress failures are component-local: a panic while draining,
// a spoofed sender id or a rejected replay tears down that one component and
// removes it from every polling map. Its siblings keep running. Failures in
// the overall-progress, navigation and settings families are fatal, as are
// deployment defects found while instantiating a page.
//
// # Thread-safety
//
// CRITICAL: Tick and Run must be called from exactly one goroutine.
// Dispatch is safe from any goroutine; it is the only way in.
package engine
