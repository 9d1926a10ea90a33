// Package diagnostics provides best-effort host and GPU probes. The sample
// profiling daemon serves these from its health and inventory endpoints;
// every probe degrades to zero values rather than failing.
package diagnostics
