// Package teardown terminates cluster processes with bounded parallelism.
//
// TeardownByHandles is the safe path: it only signals pids this run recorded.
// TeardownByName is the broad path: it looks up every process on the host
// whose command line matches an allow-listed parsec executable name and
// signals all of them, including processes a different run started.
//
// Both paths size their worker pool to ceil(sqrt(N)). A failed kill is logged
// and collected; it never stops the rest of the batch.
package teardown
