// Package diagnostics implements the capture providers and the resource
// monitoring that feeds them.
//
// The package implements these components:
//
//   - ReportWriter: Writes a JSON process report with the process, host and
//     system state, the monitor history, goroutine stacks and a redacted
//     environment.
//
//   - HeapSnapshotter: Writes a pprof heap profile after a forced collection.
//
//   - CoreCollector: Runs an external core dumper against the own process and
//     packages the core, the executable and the mapped shared libraries into
//     one compressed archive.
//
//   - ResourceMonitor: Periodically tracks file descriptors, goroutines, memory
//     usage and capture counts. Detects concerning trends like FD leaks.
//
//   - ToolRunner: Runs external tools with pre-flight health checks and a
//     timeout.
//
// Each provider satisfies core.Producer and names its artifacts with a shared
// core.Namer so sequence numbers stay unique across kinds.
package diagnostics
