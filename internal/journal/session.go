// Package journal keeps the on-disk record of a trading session: a run
// folder per process start and a parquet journal of ledger trades inside it.
package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-bitso/internal/logger"
	"github.com/rxtech-lab/argo-bitso/pkg/errors"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

var (
	runPattern  = regexp.MustCompile(`^run_(\d+)$`)
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Session owns the run folder of one process:
//
//	{root}/{YYYY-MM-DD}/run_N/
type Session struct {
	root      string
	runID     string
	runNumber int
	startedAt time.Time
	date      string
	runPath   string
	now       func() time.Time
	mu        sync.Mutex
	logger    *logger.Logger
}

// NewSession creates an uninitialized session.
func NewSession(log *logger.Logger) *Session {
	return &Session{
		now:    time.Now,
		logger: log,
	}
}

// Initialize picks the next run number for today under root and creates its folder.
func (s *Session) Initialize(root string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.root = root
	s.startedAt = s.now()
	s.date = s.startedAt.Format(dateLayout)

	runNumber, err := nextRunNumber(filepath.Join(root, s.date))
	if err != nil {
		return err
	}

	s.runNumber = runNumber
	s.runID = fmt.Sprintf("run_%d", runNumber)

	if err := s.createRunFolder(); err != nil {
		return err
	}

	s.logger.Info("Session initialized",
		zap.String("run_id", s.runID),
		zap.String("date", s.date),
		zap.String("path", s.runPath),
	)

	return nil
}

func nextRunNumber(datePath string) (int, error) {
	entries, err := os.ReadDir(datePath)
	if os.IsNotExist(err) {
		return 1, nil
	}

	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeJournalWriteFailed, err, "failed to read %s", datePath)
	}

	highest := 0

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		matches := runPattern.FindStringSubmatch(entry.Name())
		if len(matches) != 2 {
			continue
		}

		if num, err := strconv.Atoi(matches[1]); err == nil && num > highest {
			highest = num
		}
	}

	return highest + 1, nil
}

func (s *Session) createRunFolder() error {
	s.runPath = filepath.Join(s.root, s.date, s.runID)

	if err := os.MkdirAll(s.runPath, 0755); err != nil {
		return errors.Wrapf(errors.ErrCodeJournalWriteFailed, err, "failed to create run folder %s", s.runPath)
	}

	return nil
}

// HandleDateBoundary moves the session to a folder for the new date, keeping
// the run number, when timestamp falls on another day. It reports whether a
// new folder was created.
func (s *Session) HandleDateBoundary(timestamp time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	date := timestamp.Format(dateLayout)
	if date == s.date {
		return false, nil
	}

	previous := s.date
	s.date = date

	if err := s.createRunFolder(); err != nil {
		return false, err
	}

	s.logger.Info("Date boundary crossed",
		zap.String("old_date", previous),
		zap.String("new_date", date),
		zap.String("path", s.runPath),
	)

	return true, nil
}

// RunPath returns the current run folder.
func (s *Session) RunPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.runPath
}

// RunID returns the run folder name, e.g. "run_2".
func (s *Session) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.runID
}

func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.startedAt
}

// FilePath joins filename onto the current run folder.
func (s *Session) FilePath(filename string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return filepath.Join(s.runPath, filename)
}

// ListRuns returns the run folders of a date ordered by run number.
func ListRuns(root, date string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(root, date))
	if os.IsNotExist(err) {
		return []string{}, nil
	}

	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataNotFound, err, "failed to read runs of %s", date)
	}

	runs := []string{}

	for _, entry := range entries {
		if entry.IsDir() && runPattern.MatchString(entry.Name()) {
			runs = append(runs, entry.Name())
		}
	}

	sort.Slice(runs, func(i, j int) bool {
		numI, _ := strconv.Atoi(runs[i][len("run_"):])
		numJ, _ := strconv.Atoi(runs[j][len("run_"):])

		return numI < numJ
	})

	return runs, nil
}

// ListDates returns the dates under root that hold runs, oldest first.
func ListDates(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return []string{}, nil
	}

	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataNotFound, err, "failed to read %s", root)
	}

	dates := []string{}

	for _, entry := range entries {
		if entry.IsDir() && datePattern.MatchString(entry.Name()) {
			dates = append(dates, entry.Name())
		}
	}

	sort.Strings(dates)

	return dates, nil
}

// LatestRun returns the path of the newest run folder under root.
func LatestRun(root string) (string, error) {
	dates, err := ListDates(root)
	if err != nil {
		return "", err
	}

	for i := len(dates) - 1; i >= 0; i-- {
		runs, err := ListRuns(root, dates[i])
		if err != nil {
			return "", err
		}

		if len(runs) > 0 {
			return filepath.Join(root, dates[i], runs[len(runs)-1]), nil
		}
	}

	return "", errors.Newf(errors.ErrCodeDataNotFound, "no runs under %s", root)
}
