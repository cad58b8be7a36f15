package orchestrator

import (
	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-bitso/internal/types"
)

// StatsFileName is the report written into a session's run folder.
const StatsFileName = "stats.yaml"

// Report snapshots the ledger's performance. tradesFile names the trade
// journal the report belongs to and may be empty.
func (o *Orchestrator) Report(tradesFile string) types.PerformanceReport {
	return types.PerformanceReport{
		ID:          uuid.New().String(),
		GeneratedAt: o.now(),
		Pairs:       o.pairs,
		Strategy:    o.strategy.Name(),
		DryRun:      o.cfg.DryRun,
		Stats:       o.ledger.PerformanceStats(),
		OpenLots:    o.ledger.AllLots(),
		TradesFile:  tradesFile,
	}
}

// WriteReport writes Report(tradesFile) as YAML to path.
func (o *Orchestrator) WriteReport(path, tradesFile string) (types.PerformanceReport, error) {
	report := o.Report(tradesFile)

	return report, types.WritePerformanceReport(path, report)
}
