package rrd

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ParseLastUpdate parses "rrdtool lastupdate" output into a Sample.
//
// Expected shape:
//
//	uptime ping1 ping2 ... pingN loss
//
//	1735840200: 123456 1.23e-02 1.45e-02 ... 0
//
// The last non-blank line containing a colon is the data line: a unix
// timestamp, then an uptime counter, per-probe round-trip times in
// seconds, and finally the count of lost probes. Probe tokens that are
// no-reply sentinels (U/nan/-nan, any case), unparseable, or not strictly
// positive are skipped without failing the parse. The loss percentage is
// computed against totalPings, the configured probes per cycle, never the
// observed token count.
func ParseLastUpdate(output string, totalPings int) Sample {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) < 2 {
		return errorSample("Invalid RRD output")
	}

	var dataLine string
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" && strings.Contains(line, ":") {
			dataLine = line
			break
		}
	}
	if dataLine == "" {
		return errorSample("No data line found")
	}

	parts := strings.Split(dataLine, ":")
	if len(parts) != 2 {
		return errorSample("Malformed data line")
	}

	timestamp, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return errorSample("Invalid timestamp")
	}

	values := strings.Fields(parts[1])
	if len(values) < 2 {
		return errorSample("Not enough values")
	}

	// First value is the uptime counter (unused), last is the loss count;
	// everything between is a per-probe round-trip time in seconds.
	var pings []float64
	for _, v := range values[1 : len(values)-1] {
		switch strings.ToLower(v) {
		case "u", "nan", "-nan":
			continue
		}
		val, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		if val > 0 {
			pings = append(pings, val)
		}
	}

	sample := Sample{
		Timestamp: time.Unix(timestamp, 0).UTC().Format(time.RFC3339),
	}

	if len(pings) > 0 {
		latency := round(median(pings)*1000, 2)
		sample.LatencyMS = &latency
	}

	if totalPings > 0 {
		if raw, err := strconv.ParseFloat(values[len(values)-1], 64); err == nil && !math.IsNaN(raw) && !math.IsInf(raw, 0) {
			// Clamp the raw count into [0, totalPings] before truncating;
			// float-to-int64 conversion is undefined beyond the int64 range.
			if raw > float64(totalPings) {
				raw = float64(totalPings)
			}
			if raw < 0 {
				raw = 0
			}
			lossCount := int64(raw) // truncate toward zero
			loss := round(float64(lossCount)/float64(totalPings)*100, 1)
			sample.LossPct = &loss
		}
	}

	return sample
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func round(v float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}
