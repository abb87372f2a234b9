package service

import (
	"go.opentelemetry.io/otel/metric"

	intotel "github.com/kisschan/monachat-like/internal/otel"
)

var (
	// Session lifecycle metrics
	startAttempts  metric.Int64Counter
	startConflicts metric.Int64Counter
	liveSessions   metric.Int64UpDownCounter

	// Token metrics
	tokensIssued metric.Int64Counter

	// Edge admission metrics
	edgeAdmitted metric.Int64Counter
	edgeDenied   metric.Int64Counter

	// Sweeper metrics
	sweeperRuns      metric.Int64Counter
	sweeperReclaimed metric.Int64Counter
)

func init() {
	f := intotel.NewFactory("live.service", intotel.PrefixLive)

	f.Int64Counter(&startAttempts, "start.attempts",
		metric.WithDescription("Total broadcast start attempts"))

	f.Int64Counter(&startConflicts, "start.conflicts",
		metric.WithDescription("Start attempts rejected because another publisher holds the lock"))

	f.Int64UpDownCounter(&liveSessions, "sessions.live",
		metric.WithDescription("Number of rooms currently live"))

	f.Int64Counter(&tokensIssued, "tokens.issued",
		metric.WithDescription("Total stream tokens issued"))

	f.Int64Counter(&edgeAdmitted, "edge.admitted",
		metric.WithDescription("Edge auth callbacks admitted"))

	f.Int64Counter(&edgeDenied, "edge.denied",
		metric.WithDescription("Edge auth callbacks denied"))

	f.Int64Counter(&sweeperRuns, "sweeper.runs",
		metric.WithDescription("Total sweep cycles executed"))

	f.Int64Counter(&sweeperReclaimed, "sweeper.reclaimed",
		metric.WithDescription("Total sessions reclaimed after lock TTL expiry"))
}
