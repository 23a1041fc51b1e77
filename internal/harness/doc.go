// Package harness runs learner scenarios against the real runtime loop.
//
// A scenario starts from a fresh (or supplied) progress bundle, drives the
// engine one tick at a time on a fake clock and checks the final state.
// Nothing is persisted; snapshots handed off by the engine are counted by an
// in-memory sink.
//
// # Scenario Format
//
//	name: finish_welcome
//	description: "Learner completes the welcome lesson"
//	registry: ../registry.yaml      # relative to the scenario file
//	owner: https://learner.example/profile#me
//	initial: bundles/half-done.json # optional, repaired on load
//	start: { entity: 1, page: 0 }   # optional
//	steps:
//	  - tick: 1
//	  - interact: { component: 1000001, action: click }
//	  - advance: 1m
//	  - interact:
//	      component: 1000101
//	      action: setCheckbox
//	      args: { index: 0, checked: true }
//	  - interact: { component: 1000001, action: explode, reject: true }
//	  - navigate: { entity: 100, page: 1 }
//	expect:
//	  lessonsCompleted: [100]
//	  domainsCompleted: []
//	  streak: 1
//	  navigation: { entity: 101, page: 0 }
//	  active: [1000200, 1000201]
//	  settings: { theme: dark }
//	  components:
//	    1000101: { complete: true }
//	  fatal: HANDLER_FAILED         # optional, expected engine error code
//
// # Steps
//
// Every step is exactly one of:
//
//   - tick: run N engine ticks
//   - advance: move the fake clock forward
//   - interact: dispatch a UI event and run the tick that delivers it
//   - navigate: move the learner directly and run one tick
//
// A navigation change takes effect at the start of the following tick, so
// the components of a new page are live one tick after the change.
//
// # Deterministic Execution
//
// The clock starts at testutil.Epoch and only moves on advance steps. Two
// runs of the same scenario produce byte-identical canonical snapshots, which
// RunWithGolden compares against testdata/golden/<name>.golden.
package harness
