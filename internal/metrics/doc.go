// Package metrics holds the per-frame measurements a benchmark run produces
// and the sinks that export them.
//
// A run is described by a Run (identity and backend selection) and a
// sequence of Records, one per processed frame, in processing order. Sinks
// receive both after the run ends, including runs that halted early: the
// records of frames processed before the failure are complete and valid.
//
// # Sinks
//
//   - JSONSink: one indented JSON document per run
//   - PrometheusSink: stage latency histograms and match counters on a
//     caller-owned registry, optionally written as a node_exporter
//     textfile
//   - PostgresSink: bulk COPY into the frame_metrics table
//   - MultiSink: fans out to several sinks and joins their errors
package metrics
