package scorecard

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"jobline/internal/metrics"
)

// actualColumns maps a month to the column holding its actual figures.
// The financial year starts in November; each month has a target column
// followed by an actual column.
var actualColumns = map[int]int{
	11: 5, 12: 7, 1: 9, 2: 11, 3: 13, 4: 15,
	5: 17, 6: 19, 7: 21, 8: 23, 9: 25, 10: 27,
}

// Cell is one metric written to the scorecard. Rows 14, 16, 32, 34 and 36
// hold formulas and are never written.
type Cell struct {
	Key   string
	Label string
	Row   int
	value func(metrics.MonthlyMetrics) any
}

// Layout lists the cells in sheet order.
var Layout = []Cell{
	{"revenue", "Revenue/Sales Income", 8, func(m metrics.MonthlyMetrics) any { return m.Revenue }},
	{"gross_profit_dollars", "Gross Profit $", 10, func(m metrics.MonthlyMetrics) any { return m.GrossProfit }},
	{"net_profit_dollars", "Net Profit $", 12, func(m metrics.MonthlyMetrics) any { return m.NetProfit }},
	{"completed_jobs", "Number of completed jobs", 18, func(m metrics.MonthlyMetrics) any { return m.CompletedJobs }},
	{"average_job_value", "Average job value", 20, func(m metrics.MonthlyMetrics) any { return m.AverageJobValue }},
	{"primary_client_jobs", "Primary Client - # jobs", 24, func(m metrics.MonthlyMetrics) any { return m.PrimaryClientJobs }},
	{"primary_client_value", "Primary Client - $ value", 26, func(m metrics.MonthlyMetrics) any { return m.PrimaryClientValue }},
	{"other_client_jobs", "Other Clients - # jobs", 28, func(m metrics.MonthlyMetrics) any { return m.OtherClientJobs }},
	{"other_client_value", "Other Clients - $ value", 30, func(m metrics.MonthlyMetrics) any { return m.OtherClientValue }},
}

// ActualColumn returns the 1-based actual column for month.
func ActualColumn(month int) (int, error) {
	col, ok := actualColumns[month]
	if !ok {
		return 0, fmt.Errorf("invalid month %d: must be 1-12", month)
	}
	return col, nil
}

// Writer updates a scorecard workbook in place.
type Writer struct {
	Path   string
	Logger zerolog.Logger
	Now    func() time.Time
}

// New returns a writer for the workbook at path.
func New(path string, logger zerolog.Logger) *Writer {
	return &Writer{Path: path, Logger: logger, Now: time.Now}
}

// Apply writes m into the month's actual column of the active sheet after
// backing the workbook up. Every failure is logged and reported as false.
func (w *Writer) Apply(m metrics.MonthlyMetrics, month int) bool {
	if _, err := os.Stat(w.Path); err != nil {
		w.Logger.Error().Err(err).Str("path", w.Path).Msg("scorecard not found")
		return false
	}
	if err := w.apply(m, month); err != nil {
		w.Logger.Error().Err(err).Str("path", w.Path).Msg("scorecard update failed")
		return false
	}
	w.Logger.Info().Str("path", w.Path).Int("month", month).Msg("scorecard updated")
	return true
}

func (w *Writer) apply(m metrics.MonthlyMetrics, month int) error {
	col, err := ActualColumn(month)
	if err != nil {
		return err
	}
	backup, err := w.Backup()
	if err != nil {
		return err
	}
	w.Logger.Info().Str("backup", backup).Msg("scorecard backed up")

	f, err := excelize.OpenFile(w.Path)
	if err != nil {
		return errors.Wrap(err, "open workbook")
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	for _, c := range Layout {
		ref, err := excelize.CoordinatesToCellName(col, c.Row)
		if err != nil {
			return errors.Wrapf(err, "cell for %s", c.Key)
		}
		v := c.value(m)
		if err := f.SetCellValue(sheet, ref, v); err != nil {
			return errors.Wrapf(err, "write %s to %s!%s", c.Key, sheet, ref)
		}
		w.Logger.Debug().Str("cell", ref).Str("metric", c.Label).Interface("value", v).Msg("set")
	}
	return errors.Wrap(f.Save(), "save workbook")
}

// Backup copies the workbook to <name>.backup_YYYYMMDD_HHMMSS.xlsx next to
// it and returns the copy's path. A backup taken in the same second is
// overwritten.
func (w *Writer) Backup() (string, error) {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	base := strings.TrimSuffix(w.Path, filepath.Ext(w.Path))
	dst := base + ".backup_" + now().Format("20060102_150405") + ".xlsx"

	src, err := os.Open(w.Path)
	if err != nil {
		return "", errors.Wrap(err, "open for backup")
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return "", errors.Wrap(err, "stat for backup")
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return "", errors.Wrap(err, "create backup")
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return "", errors.Wrap(err, "copy backup")
	}
	if err := out.Close(); err != nil {
		return "", errors.Wrap(err, "close backup")
	}
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	return dst, nil
}

// CurrentValues reads the month's actual column keyed by metric. It
// returns an empty map when the workbook cannot be read.
func (w *Writer) CurrentValues(month int) map[string]string {
	values := make(map[string]string)
	col, err := ActualColumn(month)
	if err != nil {
		w.Logger.Error().Err(err).Msg("read scorecard")
		return values
	}
	f, err := excelize.OpenFile(w.Path)
	if err != nil {
		w.Logger.Error().Err(err).Str("path", w.Path).Msg("read scorecard")
		return values
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	for _, c := range Layout {
		ref, _ := excelize.CoordinatesToCellName(col, c.Row)
		v, err := f.GetCellValue(sheet, ref)
		if err != nil {
			w.Logger.Error().Err(err).Str("cell", ref).Msg("read scorecard")
			return map[string]string{}
		}
		values[c.Key] = v
	}
	return values
}
