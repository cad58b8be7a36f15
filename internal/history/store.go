// Package history persists per-pair price samples as CSV files and reloads
// the most recent file at startup. DuckDB does the CSV reading and writing.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
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

const (
	filePrefix       = "price_history_"
	legacyFilePrefix = "historical_prices_"
	fileTimeLayout   = "20060102_150405"

	stagingTable = "price_history"
)

// Store reads and writes price history files under a data directory.
type Store struct {
	dir    string
	db     *sql.DB
	sq     squirrel.StatementBuilderType
	now    func() time.Time
	mu     sync.Mutex
	logger *logger.Logger
}

// NewStore opens an in-memory DuckDB database used for CSV conversion.
func NewStore(dir string, log *logger.Logger) (*Store, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to open duckdb", err)
	}

	return &Store{
		dir:    dir,
		db:     db,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:    time.Now,
		logger: log,
	}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// FileName returns the file name for a pair saved at the given time.
func FileName(pair types.Pair, at time.Time) string {
	return fmt.Sprintf("%s%s_%s.csv", filePrefix, pair, at.Format(fileTimeLayout))
}

// Save writes the samples of one pair to a new timestamped CSV file with a
// timestamp,price header and returns its path. Nothing is written for an
// empty slice.
func (s *Store) Save(pair types.Pair, samples []types.PriceSample) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", errors.Wrapf(errors.ErrCodeMarketDataWriteFailed, err, "failed to create %s", s.dir)
	}

	if _, err := s.db.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %s; CREATE TABLE %s ("timestamp" TIMESTAMP, price DOUBLE);`, stagingTable, stagingTable)); err != nil {
		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to prepare staging table", err)
	}

	insert := s.sq.Insert(stagingTable).Columns(`"timestamp"`, "price")
	for _, sample := range samples {
		insert = insert.Values(sample.Timestamp.UTC(), sample.Price)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to build insert", err)
	}

	if _, err := s.db.Exec(query, args...); err != nil {
		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to stage price history", err)
	}

	path := filepath.Join(s.dir, FileName(pair, s.now()))

	copyQuery := fmt.Sprintf(
		`COPY (SELECT strftime("timestamp", '%%Y-%%m-%%d %%H:%%M:%%S.%%f') AS "timestamp", price FROM %s ORDER BY "timestamp") TO %s (HEADER, DELIMITER ',')`,
		stagingTable, quoteLiteral(path),
	)
	if _, err := s.db.Exec(copyQuery); err != nil {
		return "", errors.Wrapf(errors.ErrCodeMarketDataWriteFailed, err, "failed to write %s", path)
	}

	s.logger.Info("Saved price history",
		zap.String("pair", pair.String()),
		zap.String("path", path),
		zap.Int("samples", len(samples)),
	)

	return path, nil
}

// SaveAll writes one file per pair and returns the paths written.
func (s *Store) SaveAll(histories map[types.Pair][]types.PriceSample) ([]string, error) {
	pairs := make([]types.Pair, 0, len(histories))
	for pair := range histories {
		pairs = append(pairs, pair)
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i] < pairs[j] })

	paths := make([]string, 0, len(pairs))

	for _, pair := range pairs {
		path, err := s.Save(pair, histories[pair])
		if err != nil {
			return paths, err
		}

		if path != "" {
			paths = append(paths, path)
		}
	}

	return paths, nil
}

// Files lists the history files of a pair, newest modification time first.
func (s *Store) Files(pair types.Pair) ([]string, error) {
	var files []string

	for _, prefix := range []string{filePrefix, legacyFilePrefix} {
		matches, err := filepath.Glob(filepath.Join(s.dir, prefix+pair.String()+"_*.csv"))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "invalid history pattern", err)
		}

		files = append(files, matches...)
	}

	modTimes := make(map[string]time.Time, len(files))

	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}

		modTimes[file] = info.ModTime()
	}

	sort.SliceStable(files, func(i, j int) bool {
		return modTimes[files[i]].After(modTimes[files[j]])
	})

	return files, nil
}

// LoadLatest reads the most recently modified history file of a pair.
// It returns ErrCodeDataNotFound when the pair has no file.
func (s *Store) LoadLatest(pair types.Pair) ([]types.PriceSample, string, error) {
	files, err := s.Files(pair)
	if err != nil {
		return nil, "", err
	}

	if len(files) == 0 {
		return nil, "", errors.Newf(errors.ErrCodeDataNotFound, "no price history for %s in %s", pair, s.dir)
	}

	samples, err := s.Load(files[0])
	if err != nil {
		return nil, files[0], err
	}

	s.logger.Info("Loaded price history",
		zap.String("pair", pair.String()),
		zap.String("path", files[0]),
		zap.Int("samples", len(samples)),
		zap.Int("candidates", len(files)),
	)

	return samples, files[0], nil
}

// Load reads one CSV file. It needs timestamp and price columns, at least
// one row, parseable values and strictly positive prices. Rows are
// returned oldest first.
func (s *Store) Load(path string) ([]types.PriceSample, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataNotFound, err, "cannot read %s", path)
	}

	if info.Size() == 0 {
		return nil, errors.Newf(errors.ErrCodeMarketDataParseFailed, "%s is empty", path)
	}

	source := fmt.Sprintf("read_csv(%s, header = true, all_varchar = true)", quoteLiteral(path))

	if err := s.checkColumns(source, path); err != nil {
		return nil, err
	}

	query, args, err := s.sq.
		Select(`TRY_CAST("timestamp" AS TIMESTAMP) AS ts`, "TRY_CAST(price AS DOUBLE) AS price").
		From(source).
		OrderBy("ts ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build query", err)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "failed to read %s", path)
	}
	defer rows.Close()

	var samples []types.PriceSample

	for rows.Next() {
		var (
			timestamp sql.NullTime
			price     sql.NullFloat64
		)

		if err := rows.Scan(&timestamp, &price); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "failed to scan %s", path)
		}

		if !timestamp.Valid || !price.Valid {
			return nil, errors.Newf(errors.ErrCodeMarketDataParseFailed, "%s has an unparseable row", path)
		}

		if price.Float64 <= 0 {
			return nil, errors.Newf(errors.ErrCodeMarketDataParseFailed, "%s has a non-positive price %v", path, price.Float64)
		}

		samples = append(samples, types.PriceSample{Timestamp: timestamp.Time.UTC(), Price: price.Float64})
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "failed to read %s", path)
	}

	if len(samples) == 0 {
		return nil, errors.Newf(errors.ErrCodeMarketDataParseFailed, "%s has no rows", path)
	}

	return samples, nil
}

func (s *Store) checkColumns(source, path string) error {
	rows, err := s.db.Query("SELECT * FROM " + source + " LIMIT 0")
	if err != nil {
		return errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "failed to read %s", path)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "failed to read columns of %s", path)
	}

	present := make(map[string]bool, len(columns))
	for _, column := range columns {
		present[strings.ToLower(strings.TrimSpace(column))] = true
	}

	for _, required := range []string{"timestamp", "price"} {
		if !present[required] {
			return errors.Newf(errors.ErrCodeMarketDataParseFailed, "%s is missing the %q column", path, required)
		}
	}

	return nil
}

func quoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
