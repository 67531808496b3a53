// Package logging provides file-based JSON logging with rotation for rigqa.
// With --debug set, full diagnostics are written to ~/.rigqa/logs/; otherwise
// logging stays minimal on stderr. Serve mode (MCP over stdio) logs to file
// only, since the protocol owns stdout.
package logging
