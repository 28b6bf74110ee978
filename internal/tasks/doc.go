// Package tasks runs batch operations over many composition sources with progress reporting.
//
// # Bulk Export
//
// [Exporter.BulkExport] resolves every source through a [Resolver], renders a
// [formatter.Report] for each composition and writes it into an output directory, one file
// per source, followed by a manifest summarizing successes and failures.
//
// Sources are handed to a fixed set of worker goroutines. Duplicate sources are resolved
// once: the resolver's task cache shares the in-flight load between workers.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters and a message. Updates use
// select with default so a slow reader never stalls the export.
package tasks
