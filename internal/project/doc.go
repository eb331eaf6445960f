// Package project defines the records the pipeline engine reads and writes.
//
// A [Project] carries its [PipelineState] (one [PhaseState] per entered
// phase) and a typed [Artifacts] bag. The concept phase's council run is
// tracked in [CouncilProgress], whose per-agent entries only move forward
// through pending → running → completed|failed; the transition helpers on
// CouncilProgress reject anything else.
//
// Records are plain values. Concurrency control lives in the store and
// keymutex packages; callers that share a record across goroutines must
// [Project.Clone] it first.
package project
