// Package preflight validates the environment before indexing starts.
//
// The package checks:
//   - Disk space at the data directory (minimum 100MB)
//   - Available memory (minimum 1GB)
//   - Write permissions in the data directory
//   - File descriptor limits (minimum 1024)
//   - Embedding and generation backend reachability (warnings only)
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New(preflight.WithEmbedder(embedder))
//	results := checker.RunAll(ctx, dataDir)
//	if checker.HasCriticalFailures(results) {
//	    // Refuse to index
//	}
//
// A marker file under the data directory records a passing run so the
// checks only gate the first index.
package preflight
