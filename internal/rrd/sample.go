// Package rrd reads and parses the most recent sample recorded by
// SmokePing into an RRD file, using rrdtool as an external reader.
package rrd

// Sample is the parsed result of one "rrdtool lastupdate" read. LatencyMS
// is the median round-trip time of the valid probes in milliseconds, and
// LossPct is lost probes as a percentage of the configured cycle total,
// in [0,100]. Both are nullable: a Sample with both null and no Error is
// a legitimate outcome (e.g. a cycle with 100% loss has no latency).
// Timestamp is the UTC RFC3339 rendering of the data line's unix
// timestamp, set on successful parses only. When Error is set, both
// numeric fields are null.
type Sample struct {
	LatencyMS *float64 `json:"latency_ms"`
	LossPct   *float64 `json:"loss_pct"`
	Timestamp string   `json:"timestamp,omitempty"`
	Error     string   `json:"error,omitempty"`
}

func errorSample(msg string) Sample {
	return Sample{Error: msg}
}
