// Package logging provides structured logging for the foundry engine.
//
// Logs are JSON lines written through log/slog to {data_dir}/logs/foundry.log
// (or stderr when no directory is configured). Child loggers carry project,
// phase, agent and council-run context so a single council run can be
// followed across its concurrent agents:
//
//	logger, err := logging.NewLogger(logDir, "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	runLog := logger.WithProject(p.ID).WithPhase("concept").WithRun(runID)
//	runLog.WithAgent("market-analyst").Info("agent completed", "score", 7.5)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"agent completed","project_id":"...","phase":"concept","run_id":"...","agent":"market-analyst","score":7.5}
//
// # Log Rotation
//
// [NewLoggerWithRotation] wraps the file in a [RotatingWriter]. Rotated files
// are named foundry.log.1 (newest) through foundry.log.N, with a .gz suffix
// when compression is enabled.
//
// # Reading Logs
//
// [ReadEntries] and [FilterEntries] back the `foundry logs` command, which
// narrows the log to one project, phase, agent or run.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers share
// the parent's writer.
package logging
