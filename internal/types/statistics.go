package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PerformanceStats summarizes the ledger's trade history.
type PerformanceStats struct {
	// Empty is true when no trade has been recorded yet.
	Empty bool `yaml:"empty" json:"empty"`

	// TotalTrades counts BUY records.
	TotalTrades int `yaml:"total_trades" json:"total_trades"`
	// CompletedTrades counts SELL records.
	CompletedTrades  int     `yaml:"completed_trades" json:"completed_trades"`
	ProfitableTrades int     `yaml:"profitable_trades" json:"profitable_trades"`
	LosingTrades     int     `yaml:"losing_trades" json:"losing_trades"`
	WinRate          float64 `yaml:"win_rate" json:"win_rate"`

	TotalRealizedPnL   float64 `yaml:"total_realized_pnl" json:"total_realized_pnl"`
	TotalUnrealizedPnL float64 `yaml:"total_unrealized_pnl" json:"total_unrealized_pnl"`
	TotalFeesPaid      float64 `yaml:"total_fees_paid" json:"total_fees_paid"`
	AverageProfit      float64 `yaml:"average_profit" json:"average_profit"`
	AverageLoss        float64 `yaml:"average_loss" json:"average_loss"`
	MaxProfit          float64 `yaml:"max_profit" json:"max_profit"`
	MaxLoss            float64 `yaml:"max_loss" json:"max_loss"`
	MaxDrawdown        float64 `yaml:"max_drawdown" json:"max_drawdown"`
}

// PerformanceReport is the document written at the end of a session.
type PerformanceReport struct {
	ID          string           `yaml:"id" json:"id"`
	GeneratedAt time.Time        `yaml:"generated_at" json:"generated_at"`
	Pairs       []Pair           `yaml:"pairs" json:"pairs"`
	Strategy    string           `yaml:"strategy" json:"strategy"`
	DryRun      bool             `yaml:"dry_run" json:"dry_run"`
	Stats       PerformanceStats `yaml:"stats" json:"stats"`
	OpenLots    []Lot            `yaml:"open_lots" json:"open_lots"`
	TradesFile  string           `yaml:"trades_file" json:"trades_file"`
}

// WritePerformanceReport writes the report to a YAML file.
func WritePerformanceReport(path string, report PerformanceReport) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal performance report to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write performance report to file: %w", err)
	}

	return nil
}

// ReadPerformanceReport reads a report written by WritePerformanceReport.
func ReadPerformanceReport(path string) (PerformanceReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PerformanceReport{}, fmt.Errorf("failed to read performance report: %w", err)
	}

	var report PerformanceReport
	if err := yaml.Unmarshal(data, &report); err != nil {
		return PerformanceReport{}, fmt.Errorf("failed to unmarshal performance report: %w", err)
	}

	return report, nil
}
