package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-bitso/internal/logger"
	"github.com/rxtech-lab/argo-bitso/internal/types"
	"github.com/rxtech-lab/argo-bitso/pkg/errors"
	"go.uber.org/zap"
)

// TradesFileName is the journal file inside a run folder.
const TradesFileName = "trades.parquet"

const tradesTable = "trades"

var tradeColumns = []string{
	"id", "action", "asset", "amount", "price", "fee_rate", "fee_value", "pnl", "timestamp", "reason",
}

// TradesWriter journals ledger trade records to a parquet file. Every write
// re-exports the whole table, so the file on disk is always complete.
type TradesWriter struct {
	db         *sql.DB
	sq         squirrel.StatementBuilderType
	outputPath string
	mu         sync.Mutex
	logger     *logger.Logger
}

// NewTradesWriter creates a writer for outputPath. Call Initialize before use.
func NewTradesWriter(outputPath string, log *logger.Logger) *TradesWriter {
	return &TradesWriter{
		sq:         squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		outputPath: outputPath,
		logger:     log,
	}
}

// Initialize opens the in-memory table and loads an existing journal at outputPath.
func (w *TradesWriter) Initialize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.outputPath), 0755); err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to create journal directory", err)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to open duckdb", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id TEXT,
			action TEXT,
			asset TEXT,
			amount DOUBLE,
			price DOUBLE,
			fee_rate DOUBLE,
			fee_value DOUBLE,
			pnl DOUBLE,
			"timestamp" TIMESTAMP,
			reason TEXT
		)
	`)
	if err != nil {
		db.Close()

		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to create trades table", err)
	}

	if _, err := os.Stat(w.outputPath); err == nil {
		query := fmt.Sprintf("INSERT INTO %s SELECT * FROM read_parquet(%s)", tradesTable, quoteLiteral(w.outputPath))
		if _, err := db.Exec(query); err != nil {
			w.logger.Warn("Existing trade journal unreadable, starting empty",
				zap.String("path", w.outputPath),
				zap.Error(err),
			)
		}
	}

	w.db = db

	return nil
}

// RecordTrade appends a trade and exports the journal.
func (w *TradesWriter) RecordTrade(trade types.TradeRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return errors.New(errors.ErrCodeJournalWriteFailed, "writer not initialized")
	}

	query, args, err := w.sq.Insert(tradesTable).
		Columns(quoteColumns(tradeColumns)...).
		Values(
			trade.ID,
			string(trade.Action),
			trade.Asset,
			trade.Amount,
			trade.Price,
			trade.FeeRate,
			trade.FeeValue,
			trade.PnL,
			trade.Timestamp.UTC(),
			string(trade.Reason),
		).
		ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to build insert", err)
	}

	if _, err := w.db.Exec(query, args...); err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to insert trade", err)
	}

	return w.exportToParquet()
}

// Flush forces an export to parquet.
func (w *TradesWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return errors.New(errors.ErrCodeJournalWriteFailed, "writer not initialized")
	}

	return w.exportToParquet()
}

// OutputPath returns the parquet file path.
func (w *TradesWriter) OutputPath() string {
	return w.outputPath
}

// Close releases database resources.
func (w *TradesWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return nil
	}

	err := w.db.Close()
	w.db = nil

	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to close database", err)
	}

	return nil
}

func (w *TradesWriter) exportToParquet() error {
	query := fmt.Sprintf(`COPY (SELECT * FROM %s ORDER BY "timestamp" ASC) TO %s (FORMAT PARQUET)`,
		tradesTable, quoteLiteral(w.outputPath))

	if _, err := w.db.Exec(query); err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to export to parquet", err)
	}

	return nil
}

// Count returns the number of journaled trades.
func (w *TradesWriter) Count() (int, error) {
	var count int

	err := w.scalar(w.sq.Select("COUNT(*)").From(tradesTable), func(row *sql.Row) error {
		return row.Scan(&count)
	})

	return count, err
}

// TotalPnL sums the realized P&L of the journaled sells.
func (w *TradesWriter) TotalPnL() (float64, error) {
	return w.sum("pnl")
}

// TotalFees sums the fees of the journaled sells.
func (w *TradesWriter) TotalFees() (float64, error) {
	return w.sum("fee_value")
}

func (w *TradesWriter) sum(column string) (float64, error) {
	var total sql.NullFloat64

	err := w.scalar(w.sq.Select(fmt.Sprintf("SUM(%s)", column)).From(tradesTable), func(row *sql.Row) error {
		return row.Scan(&total)
	})
	if err != nil {
		return 0, err
	}

	return total.Float64, nil
}

func (w *TradesWriter) scalar(builder squirrel.SelectBuilder, scan func(*sql.Row) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return errors.New(errors.ErrCodeQueryFailed, "writer not initialized")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to build query", err)
	}

	if err := scan(w.db.QueryRow(query, args...)); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "journal query failed", err)
	}

	return nil
}

// ReadTrades loads a journal file, oldest trade first.
func ReadTrades(path string) ([]types.TradeRecord, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to open duckdb", err)
	}
	defer db.Close()

	query, args, err := squirrel.Select(quoteColumns(tradeColumns)...).
		From(fmt.Sprintf("read_parquet(%s)", quoteLiteral(path))).
		OrderBy(`"timestamp" ASC`).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build query", err)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to read %s", path)
	}
	defer rows.Close()

	var trades []types.TradeRecord

	for rows.Next() {
		var (
			trade     types.TradeRecord
			action    string
			reason    string
			timestamp time.Time
		)

		if err := rows.Scan(&trade.ID, &action, &trade.Asset, &trade.Amount, &trade.Price,
			&trade.FeeRate, &trade.FeeValue, &trade.PnL, &timestamp, &reason); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to scan %s", path)
		}

		trade.Action = types.TradeAction(action)
		trade.Reason = types.TradeReason(reason)
		trade.Timestamp = timestamp.UTC()
		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to read %s", path)
	}

	return trades, nil
}

func quoteColumns(columns []string) []string {
	quoted := make([]string, len(columns))
	for i, column := range columns {
		quoted[i] = `"` + column + `"`
	}

	return quoted
}

func quoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
