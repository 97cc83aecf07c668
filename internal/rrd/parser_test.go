package rrd_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ryanplanchart/smokeping-api/internal/rrd"
)

func f64(v float64) *float64 { return &v }

func TestRRD_ParseLastUpdate_Samples(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		output     string
		totalPings int
		want       rrd.Sample
	}{
		{
			name: "five pings no loss",
			output: "uptime ping1 ping2 ping3 ping4 ping5 loss\n\n" +
				"1735840200: 123456 1.23e-02 1.45e-02 1.50e-02 1.35e-02 1.40e-02 0",
			totalPings: 20,
			want: rrd.Sample{
				LatencyMS: f64(14.0),
				LossPct:   f64(0.0),
				Timestamp: "2025-01-02T17:50:00Z",
			},
		},
		{
			name: "all pings unknown",
			output: "uptime ping1 ping2 ping3 loss\n\n" +
				"1735840200: 123456 U U U 20",
			totalPings: 20,
			want: rrd.Sample{
				LatencyMS: nil,
				LossPct:   f64(100.0),
				Timestamp: "2025-01-02T17:50:00Z",
			},
		},
		{
			name: "partial unknowns use remaining pings",
			output: "uptime ping1 ping2 ping3 ping4 ping5 loss\n\n" +
				"1735840200: 123456 1.00e-02 U 2.00e-02 U 1.50e-02 10",
			totalPings: 20,
			want: rrd.Sample{
				LatencyMS: f64(15.0),
				LossPct:   f64(50.0),
				Timestamp: "2025-01-02T17:50:00Z",
			},
		},
		{
			name: "single ping",
			output: "uptime ping1 loss\n\n" +
				"1735840200: 123456 2.50e-02 0",
			totalPings: 20,
			want: rrd.Sample{
				LatencyMS: f64(25.0),
				LossPct:   f64(0.0),
				Timestamp: "2025-01-02T17:50:00Z",
			},
		},
		{
			name: "even ping count averages central pair",
			output: "uptime ping1 ping2 ping3 ping4 loss\n\n" +
				"1735840200: 123456 1.00e-02 2.00e-02 3.00e-02 4.00e-02 0",
			totalPings: 20,
			want: rrd.Sample{
				LatencyMS: f64(25.0),
				LossPct:   f64(0.0),
				Timestamp: "2025-01-02T17:50:00Z",
			},
		},
		{
			name: "scientific notation rounds to two decimals",
			output: "uptime ping1 loss\n\n" +
				"1735840200: 123456 1.234e-02 0",
			totalPings: 20,
			want: rrd.Sample{
				LatencyMS: f64(12.34),
				LossPct:   f64(0.0),
				Timestamp: "2025-01-02T17:50:00Z",
			},
		},
		{
			name: "negative and zero pings ignored",
			output: "uptime ping1 ping2 ping3 loss\n\n" +
				"1735840200: 123456 -1.00e-02 0 2.00e-02 0",
			totalPings: 20,
			want: rrd.Sample{
				LatencyMS: f64(20.0),
				LossPct:   f64(0.0),
				Timestamp: "2025-01-02T17:50:00Z",
			},
		},
		{
			name: "nan variants skipped case-insensitively",
			output: "uptime ping1 ping2 ping3 loss\n\n" +
				"1735840200: 123456 nan -nan NaN 20",
			totalPings: 20,
			want: rrd.Sample{
				LatencyMS: nil,
				LossPct:   f64(100.0),
				Timestamp: "2025-01-02T17:50:00Z",
			},
		},
		{
			name: "loss beyond total capped at hundred",
			output: "uptime ping1 loss\n\n" +
				"1735840200: 123456 1.50e-02 25",
			totalPings: 20,
			want: rrd.Sample{
				LatencyMS: f64(15.0),
				LossPct:   f64(100.0),
				Timestamp: "2025-01-02T17:50:00Z",
			},
		},
		{
			name: "loss count beyond int64 range still caps at hundred",
			output: "uptime ping1 loss\n\n" +
				"1735840200: 123456 1.50e-02 1e19",
			totalPings: 20,
			want: rrd.Sample{
				LatencyMS: f64(15.0),
				LossPct:   f64(100.0),
				Timestamp: "2025-01-02T17:50:00Z",
			},
		},
		{
			name: "fractional loss count truncates",
			output: "uptime ping1 loss\n\n" +
				"1735840200: 123456 1.50e-02 5.9",
			totalPings: 20,
			want: rrd.Sample{
				LatencyMS: f64(15.0),
				LossPct:   f64(25.0),
				Timestamp: "2025-01-02T17:50:00Z",
			},
		},
		{
			name: "negative loss clamped to zero",
			output: "uptime ping1 loss\n\n" +
				"1735840200: 123456 1.50e-02 -5",
			totalPings: 20,
			want: rrd.Sample{
				LatencyMS: f64(15.0),
				LossPct:   f64(0.0),
				Timestamp: "2025-01-02T17:50:00Z",
			},
		},
		{
			name: "unparseable loss left null without error",
			output: "uptime ping1 loss\n\n" +
				"1735840200: 123456 1.50e-02 U",
			totalPings: 20,
			want: rrd.Sample{
				LatencyMS: f64(15.0),
				LossPct:   nil,
				Timestamp: "2025-01-02T17:50:00Z",
			},
		},
		{
			name: "nan loss left null without error",
			output: "uptime ping1 loss\n\n" +
				"1735840200: 123456 1.50e-02 nan",
			totalPings: 20,
			want: rrd.Sample{
				LatencyMS: f64(15.0),
				LossPct:   nil,
				Timestamp: "2025-01-02T17:50:00Z",
			},
		},
		{
			name: "loss scaled against configured total",
			output: "uptime ping1 loss\n\n" +
				"1735840200: 123456 1.50e-02 10",
			totalPings: 40,
			want: rrd.Sample{
				LatencyMS: f64(15.0),
				LossPct:   f64(25.0),
				Timestamp: "2025-01-02T17:50:00Z",
			},
		},
		{
			name: "uptime and loss only leaves latency null",
			output: "uptime loss\n\n" +
				"1735840200: 123456 5",
			totalPings: 20,
			want: rrd.Sample{
				LatencyMS: nil,
				LossPct:   f64(25.0),
				Timestamp: "2025-01-02T17:50:00Z",
			},
		},
		{
			name: "last data line wins",
			output: "uptime ping1 loss\n\n" +
				"1735836600: 123456 1.00e-02 0\n" +
				"1735840200: 123456 2.00e-02 0",
			totalPings: 20,
			want: rrd.Sample{
				LatencyMS: f64(20.0),
				LossPct:   f64(0.0),
				Timestamp: "2025-01-02T17:50:00Z",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := rrd.ParseLastUpdate(tt.output, tt.totalPings)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("sample mismatch (-want +got): %s\n", diff)
			}
		})
	}
}

func TestRRD_ParseLastUpdate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		output  string
		wantErr string
	}{
		{
			name:    "empty output",
			output:  "",
			wantErr: "Invalid RRD output",
		},
		{
			name:    "single line without structure",
			output:  "garbage data without colon",
			wantErr: "Invalid RRD output",
		},
		{
			name:    "no line carries a data separator",
			output:  "uptime ping1 loss\nstill just headers",
			wantErr: "No data line found",
		},
		{
			name:    "multiple separators on data line",
			output:  "uptime ping1 loss\n\n12:34:56 1.50e-02 0",
			wantErr: "Malformed data line",
		},
		{
			name:    "non-numeric timestamp",
			output:  "uptime ping1 loss\n\nnot_a_number: 123456 1.50e-02 0",
			wantErr: "Invalid timestamp",
		},
		{
			name:    "single value after timestamp",
			output:  "header\n\n1735840200: 123456",
			wantErr: "Not enough values",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			want := rrd.Sample{Error: tt.wantErr}
			got := rrd.ParseLastUpdate(tt.output, 20)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("sample mismatch (-want +got): %s\n", diff)
			}
		})
	}
}

func TestRRD_ParseLastUpdate_Idempotent(t *testing.T) {
	t.Parallel()

	output := "uptime ping1 ping2 loss\n\n" +
		"1735840200: 123456 1.40e-02 1.60e-02 2"
	first := rrd.ParseLastUpdate(output, 20)
	second := rrd.ParseLastUpdate(output, 20)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated parse mismatch (-first +second): %s\n", diff)
	}
}
