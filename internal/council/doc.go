// Package council runs a panel of evaluator agents concurrently against one
// concept and turns their evaluations into a verdict.
//
// A run is identified by a run id stored on the project's CouncilProgress.
// Each agent is a goroutine that records pending → running → completed or
// failed through store.Updater, so concurrent completions never overwrite
// each other. One coordinator goroutine per run waits for either every agent
// to settle or the panel-wide deadline; on the deadline it force-fails the
// unsettled agents. Only the coordinator synthesizes, so synthesis happens
// exactly once per run.
//
// Every background write checks the run id first. Writes from a run that has
// been replaced by a retry are dropped.
package council
